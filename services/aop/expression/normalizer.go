// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package expression turns uploaded differential-expression tables into
// one record per gene.
package expression

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/AleutianAI/aopenrich/services/aop/stats"
)

// MultiGeneSeparator joins several gene symbols in one identifier cell.
const MultiGeneSeparator = "///"

// GeneRecord is one gene after duplicate aggregation.
type GeneRecord struct {
	GeneID string  `json:"gene_id"`
	Log2FC float64 `json:"log2fc"`
	PValue float64 `json:"pvalue"`

	// Members is how many input occurrences were aggregated.
	Members int `json:"members"`
}

// Diagnostics reports data-quality events seen while normalizing.
type Diagnostics struct {
	InputRows int `json:"input_rows"`

	// EmptyIDRows counts rows whose identifier cell held no symbol.
	EmptyIDRows int `json:"empty_id_rows"`

	// SplitRows counts rows whose identifier held several symbols.
	SplitRows int `json:"split_rows"`

	// CollapsedGenes counts genes built from more than one occurrence.
	CollapsedGenes int `json:"collapsed_genes"`

	// InvalidFC and InvalidPValue count occurrences whose value was
	// missing, non-numeric or out of range.
	InvalidFC     int `json:"invalid_fc"`
	InvalidPValue int `json:"invalid_pvalue"`

	// DroppedGenes lists genes removed because no valid fold change or
	// no valid p-value remained.
	DroppedGenes []string `json:"dropped_genes"`
}

// Result is the output of Normalize.
type Result struct {
	// Records is sorted by GeneID.
	Records     []GeneRecord `json:"records"`
	Diagnostics Diagnostics  `json:"diagnostics"`
}

// Background returns the gene universe: every GeneID in Records.
func (r *Result) Background() map[string]struct{} {
	bg := make(map[string]struct{}, len(r.Records))
	for _, rec := range r.Records {
		bg[rec.GeneID] = struct{}{}
	}
	return bg
}

// IDs returns every GeneID in order.
func (r *Result) IDs() []string {
	ids := make([]string, len(r.Records))
	for i, rec := range r.Records {
		ids[i] = rec.GeneID
	}
	return ids
}

// geneAccumulator gathers the valid values seen for one gene.
type geneAccumulator struct {
	fcs     []float64
	ps      []float64
	members int
}

// Normalize converts a table into gene-level records.
//
// Description:
//
//	The column selection is validated against the header before any row
//	is read. Each identifier cell is split on "///", and every piece is
//	trimmed and uppercased. Occurrences are grouped by identifier; the
//	group's log2FC is the mean of its valid fold changes and its p-value
//	is the Fisher combination of its valid p-values. A fold change is
//	valid when it parses as a finite number; a p-value additionally has
//	to lie in [0, 1]. Genes without at least one valid value of each
//	kind are dropped and listed in the diagnostics.
//
// Inputs:
//
//	t - Parsed input table.
//	sel - Column roles.
//
// Outputs:
//
//	*Result - Records sorted by gene id, plus diagnostics.
//	error - A column selection error, or ErrNoValidGenes when nothing survives.
//
// Thread Safety: Pure function; safe for concurrent use.
func Normalize(t *Table, sel ColumnSelection) (*Result, error) {
	idx, err := sel.resolve(t.Header)
	if err != nil {
		return nil, err
	}

	res := &Result{Diagnostics: Diagnostics{InputRows: len(t.Rows), DroppedGenes: []string{}}}
	groups := make(map[string]*geneAccumulator)

	for _, row := range t.Rows {
		ids := splitIDs(row[idx.id])
		if len(ids) == 0 {
			res.Diagnostics.EmptyIDRows++
			continue
		}
		if len(ids) > 1 {
			res.Diagnostics.SplitRows++
		}

		fc, fcOK := parseFC(row[idx.fc])
		p, pOK := parsePValue(row[idx.p])

		for _, id := range ids {
			acc := groups[id]
			if acc == nil {
				acc = &geneAccumulator{}
				groups[id] = acc
			}
			acc.members++
			if fcOK {
				acc.fcs = append(acc.fcs, fc)
			} else {
				res.Diagnostics.InvalidFC++
			}
			if pOK {
				acc.ps = append(acc.ps, p)
			} else {
				res.Diagnostics.InvalidPValue++
			}
		}
	}

	for id, acc := range groups {
		if len(acc.fcs) == 0 || len(acc.ps) == 0 {
			res.Diagnostics.DroppedGenes = append(res.Diagnostics.DroppedGenes, id)
			continue
		}
		combined, err := stats.CombinePValues(acc.ps)
		if err != nil {
			res.Diagnostics.DroppedGenes = append(res.Diagnostics.DroppedGenes, id)
			continue
		}
		if acc.members > 1 {
			res.Diagnostics.CollapsedGenes++
		}
		res.Records = append(res.Records, GeneRecord{
			GeneID:  id,
			Log2FC:  mean(acc.fcs),
			PValue:  combined,
			Members: acc.members,
		})
	}

	slices.SortFunc(res.Records, func(a, b GeneRecord) int {
		return strings.Compare(a.GeneID, b.GeneID)
	})
	slices.Sort(res.Diagnostics.DroppedGenes)

	if len(res.Records) == 0 {
		return res, ErrNoValidGenes
	}
	return res, nil
}

// splitIDs splits a cell on "///", canonicalises each piece and removes
// empties and repeats within the cell.
func splitIDs(cell string) []string {
	parts := strings.Split(cell, MultiGeneSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" || slices.Contains(out, p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func parseFC(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parsePValue(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || !stats.ValidPValue(v) {
		return 0, false
	}
	return v, true
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
