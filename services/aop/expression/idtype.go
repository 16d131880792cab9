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
	"strings"
)

// idTypeSample is how many identifiers GuessIDType inspects.
const idTypeSample = 20

// IDType is the inferred naming scheme of gene identifiers.
type IDType string

const (
	IDTypeHGNC    IDType = "HGNC symbol"
	IDTypeEnsembl IDType = "Ensembl"
	IDTypeEntrez  IDType = "Entrez"
	IDTypeRefSeq  IDType = "RefSeq"
	IDTypeProbe   IDType = "Probe"
	IDTypeUnknown IDType = "Unknown"
)

// Ordered from most to least specific; the first match wins.
var idTypePatterns = []struct {
	kind IDType
	re   *regexp.Regexp
}{
	{IDTypeEnsembl, regexp.MustCompile(`^ENS[A-Z]*[GTP]\d{6,}(\.\d+)?$`)},
	{IDTypeRefSeq, regexp.MustCompile(`^[NX][MRP]_\d+(\.\d+)?$`)},
	{IDTypeProbe, regexp.MustCompile(`^(\d+(_[A-Z])?_(S_|X_)?AT|ILMN_\d+|A_\d+_P\d+)$`)},
	{IDTypeEntrez, regexp.MustCompile(`^\d+$`)},
	{IDTypeHGNC, regexp.MustCompile(`^[A-Z][A-Z0-9]*([-.][A-Z0-9]+)*$`)},
}

// IDTypeGuess summarises the identifier scheme of a dataset.
type IDTypeGuess struct {
	Type       IDType         `json:"type"`
	Confidence float64        `json:"confidence"`
	Mixed      bool           `json:"mixed"`
	Counts     map[IDType]int `json:"counts"`
	Sampled    int            `json:"sampled"`
}

// GuessIDType classifies up to the first 20 non-empty identifiers.
//
// Identifiers are uppercased before matching. The dominant type wins;
// Mixed is set when a second type accounts for at least a fifth of the
// sample.
func GuessIDType(ids []string) IDTypeGuess {
	guess := IDTypeGuess{Type: IDTypeUnknown, Counts: map[IDType]int{}}
	for _, raw := range ids {
		if guess.Sampled == idTypeSample {
			break
		}
		id := strings.ToUpper(strings.TrimSpace(raw))
		if id == "" {
			continue
		}
		guess.Sampled++
		guess.Counts[classifyID(id)]++
	}
	if guess.Sampled == 0 {
		return guess
	}

	best, second := 0, 0
	for _, kind := range []IDType{IDTypeEnsembl, IDTypeRefSeq, IDTypeProbe, IDTypeEntrez, IDTypeHGNC, IDTypeUnknown} {
		n := guess.Counts[kind]
		switch {
		case n > best:
			second = best
			best = n
			guess.Type = kind
		case n > second:
			second = n
		}
	}
	guess.Confidence = math.Round(float64(best)/float64(guess.Sampled)*100) / 100
	guess.Mixed = second > 0 && float64(second) >= 0.2*float64(guess.Sampled)
	return guess
}

func classifyID(id string) IDType {
	for _, p := range idTypePatterns {
		if p.re.MatchString(id) {
			return p.kind
		}
	}
	return IDTypeUnknown
}
