// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package enrichment

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AleutianAI/aopenrich/services/aop/reference"
	"github.com/AleutianAI/aopenrich/services/aop/stats"
)

// EmptyPolicy decides how key events without testable genes enter the
// multiple-testing family.
type EmptyPolicy string

const (
	// EmptyExclude reports the KE with p = 1 and FDR = 1 but leaves it out
	// of the Benjamini-Hochberg family.
	EmptyExclude EmptyPolicy = "exclude"

	// EmptyInclude enters p = 1 into the family.
	EmptyInclude EmptyPolicy = "include"
)

// ParseEmptyPolicy maps a config string to an EmptyPolicy. Empty input
// yields EmptyExclude.
func ParseEmptyPolicy(s string) (EmptyPolicy, error) {
	switch EmptyPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", EmptyExclude:
		return EmptyExclude, nil
	case EmptyInclude:
		return EmptyInclude, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEmptyPolicy, s)
}

// Options tunes a Run.
type Options struct {
	Alternative stats.Alternative `json:"alternative"`
	EmptyPolicy EmptyPolicy       `json:"empty_ke_policy"`
}

// DefaultOptions is two-sided testing with empty KEs excluded.
func DefaultOptions() Options {
	return Options{Alternative: stats.TwoSided, EmptyPolicy: EmptyExclude}
}

// Ratio is an odds ratio that serialises non-finite values as JSON null.
type Ratio float64

// MarshalJSON implements json.Marshaler.
func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// String renders NaN as "NA" and +Inf as "Inf".
func (r Ratio) String() string {
	f := float64(r)
	switch {
	case math.IsNaN(f):
		return "NA"
	case math.IsInf(f, 1):
		return "Inf"
	}
	return strconv.FormatFloat(f, 'g', 6, 64)
}

// Row is the enrichment outcome for one key event.
type Row struct {
	KEID   string           `json:"ke_id"`
	Title  string           `json:"ke_title"`
	KEType reference.KEType `json:"ke_type"`

	// OverlapGenes are the significant testable genes, sorted.
	OverlapGenes []string `json:"overlap_genes"`
	OverlapCount int      `json:"overlap_count"`

	// KESetSize is the testable set: reference genes observed in the dataset.
	KESetSize int `json:"ke_set_size"`

	// ReferenceSize is the full reference gene set size.
	ReferenceSize int `json:"reference_set_size"`

	Table          stats.Table `json:"contingency"`
	PValue         float64     `json:"pvalue"`
	FDR            float64     `json:"fdr"`
	OddsRatio      Ratio       `json:"odds_ratio"`
	PctSignificant float64     `json:"pct_significant"`

	// Tested is false for KEs whose p-value was not part of the FDR family.
	Tested bool `json:"tested"`
}

// Result is the output of one enrichment run.
type Result struct {
	AOPID            string            `json:"aop_id"`
	Rows             []Row             `json:"rows"`
	BackgroundSize   int               `json:"background_size"`
	SignificantCount int               `json:"significant_count"`
	TestedCount      int               `json:"tested_count"`
	EmptyKEs         []string          `json:"empty_kes"`
	Alternative      stats.Alternative `json:"alternative"`
	EmptyPolicy      EmptyPolicy       `json:"empty_ke_policy"`
}

// Row returns the row for keID.
func (r *Result) Row(keID string) (Row, bool) {
	for _, row := range r.Rows {
		if row.KEID == keID {
			return row, true
		}
	}
	return Row{}, false
}

// FDRByKE maps each KE to its FDR.
func (r *Result) FDRByKE() map[string]float64 {
	out := make(map[string]float64, len(r.Rows))
	for _, row := range r.Rows {
		out[row.KEID] = row.FDR
	}
	return out
}
