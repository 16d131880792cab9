// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureFiles returns a small but complete reference data set.
//
// KE 1 reaches TP53, MDM2 and CDKN1A through two pathways, KE 2 shares
// MDM2 and CDKN1A, KE 3 maps to BAX only (node 4 has no symbol) and
// KE 4 points at a pathway with no genes.
func fixtureFiles() map[string]string {
	return map[string]string{
		FileKEPathway: "KE_ID,WP_ID\n" +
			"KE 1,wp100\n" +
			"KE 1,WP200\n" +
			"KE 2, WP200\n" +
			"KE 3,WP300\n" +
			"KE 4,WP999\n",
		FilePathwayGene: "WPID,gene_id,edge_id\n" +
			"WP100,1.0,e1\n" +
			"WP100,2.0,e2\n" +
			"WP200,2,e3\n" +
			"WP200,3,e4\n" +
			"WP300,4,e5\n" +
			"WP300,5,e6\n",
		FileGeneNodes: "GeneID,GeneName,Type\n" +
			"1.0,tp53,GeneProduct\n" +
			"2.0,MDM2,GeneProduct\n" +
			"3,cdkn1a,GeneProduct\n" +
			"4,,GeneProduct\n" +
			"5,BAX,GeneProduct\n",
		FileAOPKEMap: "AOP_ID,KE_ID\n" +
			"1,KE 1\n" +
			"1,KE 2\n" +
			"1,KE 3\n" +
			"1,KE 2\n" +
			"2.0,KE 3\n",
		FileAOPKEREdges: "AOP_ID,Source_KE,Target_KE,KER_ID\n" +
			"1,KE 1,KE 2,10\n" +
			"1,KE 2,KE 3,11\n" +
			"9,KE 1,KE 3,12\n",
		FileKEMetadata: "KE_ID,Title,Type\n" +
			"KE 1,DNA damage,MolecularInitiatingEvent\n" +
			"KE 2,p53 activation,KeyEvent\n" +
			"KE 3,Apoptosis,AdverseOutcome\n",
	}
}

func mapSource(files map[string]string) Source {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(body)}
	}
	return NewFSSource(fsys, "test")
}

func buildFixture(t *testing.T) *Reference {
	t.Helper()
	ref, err := Build(context.Background(), mapSource(fixtureFiles()), Options{
		Labels: map[string]string{"1": "Genotoxicity"},
	})
	require.NoError(t, err)
	return ref
}

func TestBuild_GeneSets(t *testing.T) {
	ref := buildFixture(t)

	assert.Equal(t, []string{"CDKN1A", "MDM2", "TP53"}, ref.GeneSet("KE 1"))
	assert.Equal(t, []string{"CDKN1A", "MDM2"}, ref.GeneSet("KE 2"))
	assert.Equal(t, []string{"BAX"}, ref.GeneSet("KE 3"))
	assert.Nil(t, ref.GeneSet("KE 4"), "pathway without genes drops out of the inner join")

	assert.True(t, ref.InGeneSet("KE 1", "TP53"))
	assert.False(t, ref.InGeneSet("KE 3", "TP53"))
	assert.Equal(t, 3, ref.GeneSetSize("KE 1"))
}

func TestBuild_AOPs(t *testing.T) {
	ref := buildFixture(t)

	aop, ok := ref.AOP("1")
	require.True(t, ok)
	assert.Equal(t, "Genotoxicity", aop.Label)
	assert.Equal(t, []string{"KE 1", "KE 2", "KE 3"}, aop.KEs, "first-appearance order, duplicates removed")
	assert.Equal(t, []KER{
		{ID: "10", Source: "KE 1", Target: "KE 2"},
		{ID: "11", Source: "KE 2", Target: "KE 3"},
	}, aop.KERs)

	second, ok := ref.AOP("2")
	require.True(t, ok, "AOP id written as float is coerced")
	assert.Equal(t, "2", second.Label)
	assert.Empty(t, second.KERs)

	_, ok = ref.AOP("9")
	assert.False(t, ok)

	ids := []string{}
	for _, a := range ref.AOPs() {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestBuild_KEMetadata(t *testing.T) {
	ref := buildFixture(t)

	ke, ok := ref.KE("KE 1")
	require.True(t, ok)
	assert.Equal(t, KETypeMIE, ke.Type)
	assert.Equal(t, "DNA damage", ke.Title)

	meta := ref.KEMetadata()
	require.Len(t, meta, 3)
	assert.Equal(t, KETypeIntermediate, meta[1].Type)
	assert.Equal(t, KETypeAO, meta[2].Type)
}

func TestBuild_Summary(t *testing.T) {
	ref := buildFixture(t)
	assert.Equal(t, Summary{GeneSets: 3, UniqueGenes: 4, AOPs: 2, KEs: 3, KERs: 2}, ref.Summary())
}

func TestBuild_AccessorsReturnCopies(t *testing.T) {
	ref := buildFixture(t)

	genes := ref.GeneSet("KE 1")
	genes[0] = "MUTATED"
	assert.Equal(t, "CDKN1A", ref.GeneSet("KE 1")[0])

	aop, _ := ref.AOP("1")
	aop.KEs[0] = "MUTATED"
	aop.KERs = nil
	fresh, _ := ref.AOP("1")
	assert.Equal(t, "KE 1", fresh.KEs[0])
	assert.Len(t, fresh.KERs, 2)
}

func TestBuild_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(files map[string]string)
		file    string
		wantErr error
	}{
		{
			name:    "missing file",
			mutate:  func(f map[string]string) { delete(f, FileGeneNodes) },
			file:    FileGeneNodes,
			wantErr: ErrFileMissing,
		},
		{
			name:    "missing column",
			mutate:  func(f map[string]string) { f[FileKEMetadata] = "KE_ID,Title\nKE 1,x\n" },
			file:    FileKEMetadata,
			wantErr: ErrMissingColumn,
		},
		{
			name:    "ragged rows",
			mutate:  func(f map[string]string) { f[FileAOPKEMap] = "AOP_ID,KE_ID\n1,KE 1,extra\n" },
			file:    FileAOPKEMap,
			wantErr: ErrMalformedTable,
		},
		{
			name:    "empty file",
			mutate:  func(f map[string]string) { f[FileAOPKEREdges] = "" },
			file:    FileAOPKEREdges,
			wantErr: ErrEmptyTable,
		},
		{
			name:    "no symbols resolve",
			mutate:  func(f map[string]string) { f[FileGeneNodes] = "GeneID,GeneName\n100,X\n" },
			file:    FileKEPathway,
			wantErr: ErrNoGeneSets,
		},
		{
			name:    "no aops",
			mutate:  func(f map[string]string) { f[FileAOPKEMap] = "AOP_ID,KE_ID\n" },
			file:    FileAOPKEMap,
			wantErr: ErrNoAOPs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := fixtureFiles()
			tt.mutate(files)

			ref, err := Build(context.Background(), mapSource(files), Options{})
			require.Error(t, err)
			assert.Nil(t, ref)
			assert.ErrorIs(t, err, tt.wantErr)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.file, loadErr.File)
		})
	}
}

func TestBuild_NilSource(t *testing.T) {
	_, err := Build(context.Background(), nil, Options{})
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	for name, body := range fixtureFiles() {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}

	ref, err := Build(context.Background(), NewDirSource(dir), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, ref.Summary().AOPs)

	_, err = NewDirSource(t.TempDir()).Open(context.Background(), FileKEPathway)
	assert.ErrorIs(t, err, ErrFileMissing)
}

func TestNew(t *testing.T) {
	ref := New(
		map[string][]string{"KE A": {" a ", "c", "A"}, "KE EMPTY": {""}},
		[]AOP{{ID: "7", KEs: []string{"KE A"}}, {ID: "7", Label: "dup"}},
		[]KEMetadata{{ID: "KE A", Title: "Alpha", Type: KETypeMIE}},
	)

	assert.Equal(t, []string{"A", "C"}, ref.GeneSet("KE A"))
	assert.Nil(t, ref.GeneSet("KE EMPTY"))

	aop, ok := ref.AOP("7")
	require.True(t, ok)
	assert.Equal(t, "7", aop.Label, "first definition wins and label falls back to id")
}

func TestCoerceID(t *testing.T) {
	tests := map[string]string{
		"1234.0":    "1234",
		" 42 ":      "42",
		"7":         "7",
		"1.5":       "1.5",
		"ENSG0001":  "ENSG0001",
		"":          "",
		"NaN":       "NaN",
		"1e3":       "1000",
		"WP1234":    "WP1234",
		"-3.0":      "-3",
		"Inf":       "Inf",
		"123456789": "123456789",
	}
	for in, want := range tests {
		assert.Equal(t, want, coerceID(in), in)
	}
}

func TestParseKEType(t *testing.T) {
	tests := map[string]KEType{
		"MIE":                        KETypeMIE,
		"Molecular Initiating Event": KETypeMIE,
		"MolecularInitiatingEvent":   KETypeMIE,
		"ao":                         KETypeAO,
		"AdverseOutcome":             KETypeAO,
		"KeyEvent":                   KETypeIntermediate,
		"":                           KETypeIntermediate,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseKEType(in), in)
	}
}
