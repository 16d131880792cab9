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
	"regexp"
	"strconv"
	"strings"
)

// detectSampleRows is how many rows are inspected for numeric content.
const detectSampleRows = 50

// namePattern scores a header against one role.
type namePattern struct {
	re    *regexp.Regexp
	score float64
}

var (
	idPatterns = []namePattern{
		{regexp.MustCompile(`^(gene[_ .]?)?symbols?$`), 1.0},
		{regexp.MustCompile(`^gene([_ .]?(id|name))?$`), 0.95},
		{regexp.MustCompile(`^(id|identifier)$`), 0.8},
		{regexp.MustCompile(`^(probe([_ .]?id)?|probeset([_ .]?id)?)$`), 0.7},
		{regexp.MustCompile(`^(ensembl([_ .]?(gene[_ .]?)?id)?|entrez([_ .]?id)?)$`), 0.7},
		{regexp.MustCompile(`gene|symbol`), 0.5},
	}
	fcPatterns = []namePattern{
		{regexp.MustCompile(`^log2[_ .]?(fold[_ .]?change|fc)$`), 1.0},
		{regexp.MustCompile(`^log[_ .]?fc$`), 0.95},
		{regexp.MustCompile(`^l2fc$`), 0.9},
		{regexp.MustCompile(`^(fold[_ .]?change|fc)$`), 0.6},
		{regexp.MustCompile(`log.*(fc|fold)`), 0.5},
	}
	pPatterns = []namePattern{
		{regexp.MustCompile(`^p[_ .]?val(ue)?$`), 1.0},
		{regexp.MustCompile(`^(adj[_ .]?p[_ .]?val(ue)?|p[_ .]?adj|padj)$`), 0.9},
		{regexp.MustCompile(`^(fdr|q[_ .]?val(ue)?)$`), 0.7},
		{regexp.MustCompile(`^p$`), 0.6},
		{regexp.MustCompile(`p[_ .]?val`), 0.5},
	}
)

// Detection is the outcome of DetectColumns. Empty fields mean no
// column scored above zero for that role.
type Detection struct {
	ID         string             `json:"id_column"`
	FC         string             `json:"fc_column"`
	PValue     string             `json:"pvalue_column"`
	Confidence map[string]float64 `json:"confidence"`
}

// Selection converts the detection into a ColumnSelection.
func (d Detection) Selection() ColumnSelection {
	return ColumnSelection{ID: d.ID, FC: d.FC, PValue: d.PValue}
}

// DetectColumns guesses the id, fold change and p-value columns.
//
// Description:
//
//	Headers are scored against name patterns per role. Fold change and
//	p-value scores are scaled by the share of sampled cells that parse
//	as numbers (for p-values, as numbers in [0, 1]); the id score is
//	scaled by the share of non-numeric cells. Each column is assigned to
//	at most one role, highest score first.
func DetectColumns(t *Table) Detection {
	type candidate struct {
		role  string
		col   int
		score float64
	}

	sample := t.Rows[:min(len(t.Rows), detectSampleRows)]
	var cands []candidate
	for i, h := range t.Header {
		name := strings.ToLower(strings.TrimSpace(h))
		numeric, unit := numericShare(sample, i)

		if s := bestScore(name, idPatterns); s > 0 {
			cands = append(cands, candidate{"id", i, s * (1 - numeric*0.5)})
		}
		if s := bestScore(name, fcPatterns); s > 0 {
			cands = append(cands, candidate{"fc", i, s * numeric})
		}
		if s := bestScore(name, pPatterns); s > 0 {
			cands = append(cands, candidate{"pvalue", i, s * unit})
		}
	}

	d := Detection{Confidence: map[string]float64{}}
	usedCol := map[int]bool{}
	for {
		best := -1
		for ci, c := range cands {
			if c.score <= 0 || usedCol[c.col] {
				continue
			}
			if _, done := d.Confidence[c.role]; done {
				continue
			}
			if best < 0 || c.score > cands[best].score {
				best = ci
			}
		}
		if best < 0 {
			break
		}
		c := cands[best]
		usedCol[c.col] = true
		d.Confidence[c.role] = math.Round(c.score*100) / 100
		switch c.role {
		case "id":
			d.ID = t.Header[c.col]
		case "fc":
			d.FC = t.Header[c.col]
		case "pvalue":
			d.PValue = t.Header[c.col]
		}
	}
	return d
}

func bestScore(name string, patterns []namePattern) float64 {
	best := 0.0
	for _, p := range patterns {
		if p.score > best && p.re.MatchString(name) {
			best = p.score
		}
	}
	return best
}

// numericShare returns the share of non-empty cells in column col that
// parse as finite numbers, and the share that also fall in [0, 1].
func numericShare(rows [][]string, col int) (numeric, unit float64) {
	var total, num, inUnit int
	for _, row := range rows {
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		total++
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		num++
		if v >= 0 && v <= 1 {
			inUnit++
		}
	}
	if total == 0 {
		return 0, 0
	}
	return float64(num) / float64(total), float64(inUnit) / float64(total)
}
