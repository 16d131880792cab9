// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package expression

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultSelection = ColumnSelection{ID: "Gene", FC: "log2FC", PValue: "pvalue"}

func mustRead(t *testing.T, text string) *Table {
	t.Helper()
	tbl, err := ReadTable(strings.NewReader(text))
	require.NoError(t, err)
	return tbl
}

func recordByID(t *testing.T, res *Result, id string) GeneRecord {
	t.Helper()
	for _, r := range res.Records {
		if r.GeneID == id {
			return r
		}
	}
	t.Fatalf("gene %s not found", id)
	return GeneRecord{}
}

func TestNormalize_DuplicatesAndMultiGeneRows(t *testing.T) {
	tbl := mustRead(t, "Gene,log2FC,pvalue\n"+
		"A,1.0,0.01\n"+
		"B,-2.0,0.2\n"+
		"b ,-1.0,0.03\n"+
		"C///D,0.5,0.04\n")

	res, err := Normalize(tbl, defaultSelection)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D"}, res.IDs())
	assert.Len(t, res.Background(), 4)

	a := recordByID(t, res, "A")
	assert.Equal(t, 1.0, a.Log2FC)
	assert.Equal(t, 0.01, a.PValue)
	assert.Equal(t, 1, a.Members)

	b := recordByID(t, res, "B")
	assert.InDelta(t, -1.5, b.Log2FC, 1e-12)
	product := 0.2 * 0.03
	assert.InDelta(t, product*(1-math.Log(product)), b.PValue, 1e-9)
	assert.Equal(t, 2, b.Members)

	for _, id := range []string{"C", "D"} {
		r := recordByID(t, res, id)
		assert.Equal(t, 0.5, r.Log2FC, id)
		assert.Equal(t, 0.04, r.PValue, id)
	}

	assert.Equal(t, 4, res.Diagnostics.InputRows)
	assert.Equal(t, 1, res.Diagnostics.SplitRows)
	assert.Equal(t, 1, res.Diagnostics.CollapsedGenes)
	assert.Empty(t, res.Diagnostics.DroppedGenes)
}

func TestNormalize_InvalidValues(t *testing.T) {
	tbl := mustRead(t, "Gene\tlog2FC\tpvalue\n"+
		"KEEP\t2.0\t0.01\n"+
		"KEEP\tNA\t0.5\n"+
		"NOFC\tn/a\t0.01\n"+
		"BADP\t1.0\t1.5\n"+
		"MIXED\t1.0\tabc\n"+
		"MIXED\tinf\t0.02\n"+
		"\t1.0\t0.01\n"+
		" /// \t1.0\t0.01\n")

	res, err := Normalize(tbl, defaultSelection)
	require.NoError(t, err)

	assert.Equal(t, []string{"KEEP", "MIXED"}, res.IDs())

	keep := recordByID(t, res, "KEEP")
	assert.Equal(t, 2.0, keep.Log2FC, "NA fold change excluded from the mean")
	assert.InDelta(t, 0.005*(1-math.Log(0.005)), keep.PValue, 1e-9)

	mixed := recordByID(t, res, "MIXED")
	assert.Equal(t, 1.0, mixed.Log2FC)
	assert.Equal(t, 0.02, mixed.PValue)

	d := res.Diagnostics
	assert.Equal(t, []string{"BADP", "NOFC"}, d.DroppedGenes)
	assert.Equal(t, 2, d.EmptyIDRows)
	assert.Equal(t, 3, d.InvalidFC)
	assert.Equal(t, 2, d.InvalidPValue)
}

func TestNormalize_SameGeneTwiceInOneCell(t *testing.T) {
	tbl := mustRead(t, "Gene,log2FC,pvalue\nA///a///B,1,0.01\n")
	res, err := Normalize(tbl, defaultSelection)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, res.IDs())
	assert.Equal(t, 1, recordByID(t, res, "A").Members)
}

func TestNormalize_NoValidGenes(t *testing.T) {
	tbl := mustRead(t, "Gene,log2FC,pvalue\nA,x,0.1\nB,1,y\n")
	res, err := Normalize(tbl, defaultSelection)
	assert.ErrorIs(t, err, ErrNoValidGenes)
	require.NotNil(t, res)
	assert.Equal(t, []string{"A", "B"}, res.Diagnostics.DroppedGenes)
}

func TestNormalize_ColumnSelection(t *testing.T) {
	tbl := mustRead(t, "Gene,log2FC,pvalue,padj\nA,1,0.01,0.02\n")

	tests := []struct {
		name    string
		sel     ColumnSelection
		wantErr error
	}{
		{"missing role", ColumnSelection{ID: "Gene", FC: "log2FC"}, ErrColumnRequired},
		{"unknown column", ColumnSelection{ID: "Symbol", FC: "log2FC", PValue: "pvalue"}, ErrColumnNotFound},
		{"duplicate role", ColumnSelection{ID: "Gene", FC: "pvalue", PValue: "pvalue"}, ErrColumnsNotDistinct},
		{"unsafe name", ColumnSelection{ID: "Gene<script>", FC: "log2FC", PValue: "pvalue"}, ErrInvalidColumnName},
		{"too long", ColumnSelection{ID: strings.Repeat("g", 101), FC: "log2FC", PValue: "pvalue"}, ErrInvalidColumnName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tbl, tt.sel)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	res, err := Normalize(tbl, ColumnSelection{ID: "Gene", FC: "log2FC", PValue: "padj"})
	require.NoError(t, err)
	assert.Equal(t, 0.02, res.Records[0].PValue)
}

func TestNormalize_Deterministic(t *testing.T) {
	text := "Gene,log2FC,pvalue\nZ,1,0.01\nY,2,0.02\nX///Z,3,0.03\nY,-1,0.5\n"
	first, err := Normalize(mustRead(t, text), defaultSelection)
	require.NoError(t, err)
	second, err := Normalize(mustRead(t, text), defaultSelection)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReadTable(t *testing.T) {
	t.Run("comma", func(t *testing.T) {
		tbl := mustRead(t, "\xef\xbb\xbfGene, log2FC ,pvalue\nA,1,0.01\n\n")
		assert.Equal(t, []string{"Gene", "log2FC", "pvalue"}, tbl.Header)
		assert.Equal(t, ',', tbl.Delimiter)
		assert.Len(t, tbl.Rows, 1)
		assert.Equal(t, 1, tbl.Column("log2FC"))
		assert.Equal(t, -1, tbl.Column("missing"))
	})

	t.Run("tab with commas in cells", func(t *testing.T) {
		tbl := mustRead(t, "Gene\tnote\tlog2FC\tpvalue\nA\tx,y\t1\t0.01\n")
		assert.Equal(t, '\t', tbl.Delimiter)
		assert.Equal(t, "x,y", tbl.Rows[0][1])
	})

	t.Run("head", func(t *testing.T) {
		tbl := mustRead(t, "Gene,v\nA,1\nB,2\nC,3\n")
		head := tbl.Head(2)
		require.Len(t, head, 2)
		assert.Equal(t, "B", head[1]["Gene"])
		assert.Len(t, tbl.Head(10), 3)
	})

	errs := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"empty", "", ErrEmptyFile},
		{"whitespace", " \n\n", ErrEmptyFile},
		{"header only", "Gene,log2FC,pvalue\n", ErrNoDataRows},
		{"ragged", "Gene,log2FC,pvalue\nA,1\n", ErrMalformedFile},
		{"duplicate header", "Gene,Gene,pvalue\nA,B,0.1\n", ErrDuplicateHeader},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.text))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, '\t', SniffDelimiter("a\tb,c"))
	assert.Equal(t, ',', SniffDelimiter("a,b,c"))
	assert.Equal(t, ',', SniffDelimiter("single"))
}
