// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package enrichment tests each key event of an AOP for over- or
// under-representation of significant genes.
package enrichment

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/AleutianAI/aopenrich/services/aop/reference"
	"github.com/AleutianAI/aopenrich/services/aop/stats"
)

// Run computes one enrichment row per key event of aop.
//
// Description:
//
//	For each KE the reference gene set is intersected with background to
//	give the testable set. Significant genes are counted within
//	background, so the 2x2 table always sums to the background size.
//	Fisher's exact test yields one p-value per tested KE and
//	Benjamini-Hochberg correction runs over exactly those p-values. KEs
//	with an empty testable set get p = 1; opts.EmptyPolicy decides
//	whether that value enters the correction family. Rows are sorted by
//	FDR, then p-value, then KE id.
//
// Inputs:
//
//	aop - The selected pathway.
//	ref - Reference gene sets and KE metadata.
//	background - Every gene observed in the dataset.
//	significant - The significant subset of background.
//	opts - Alternative hypothesis and empty-KE policy.
//
// Outputs:
//
//	*Result - Sorted rows plus family and background counts.
//	error - ErrNilReference, ErrEmptyBackground, ErrNoKEs or a stats error.
//
// Thread Safety: Reads ref only; safe for concurrent use.
func Run(aop reference.AOP, ref *reference.Reference, background, significant map[string]struct{}, opts Options) (*Result, error) {
	if ref == nil {
		return nil, ErrNilReference
	}
	if len(background) == 0 {
		return nil, ErrEmptyBackground
	}
	if len(aop.KEs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoKEs, aop.ID)
	}
	alt, err := stats.ParseAlternative(string(opts.Alternative))
	if err != nil {
		return nil, err
	}
	opts.Alternative = alt
	if opts.EmptyPolicy, err = ParseEmptyPolicy(string(opts.EmptyPolicy)); err != nil {
		return nil, err
	}

	sigTotal := 0
	for g := range significant {
		if _, ok := background[g]; ok {
			sigTotal++
		}
	}
	nonSigTotal := len(background) - sigTotal

	res := &Result{
		AOPID:            aop.ID,
		Rows:             make([]Row, 0, len(aop.KEs)),
		BackgroundSize:   len(background),
		SignificantCount: sigTotal,
		EmptyKEs:         []string{},
		Alternative:      opts.Alternative,
		EmptyPolicy:      opts.EmptyPolicy,
	}

	var family []int
	for _, keID := range aop.KEs {
		row := Row{
			KEID:          keID,
			Title:         keID,
			KEType:        reference.KETypeIntermediate,
			OverlapGenes:  []string{},
			ReferenceSize: ref.GeneSetSize(keID),
		}
		if meta, ok := ref.KE(keID); ok {
			if meta.Title != "" {
				row.Title = meta.Title
			}
			row.KEType = meta.Type
		}

		inSig, inNonSig := 0, 0
		for _, g := range ref.GeneSet(keID) {
			if _, ok := background[g]; !ok {
				continue
			}
			if _, ok := significant[g]; ok {
				inSig++
				row.OverlapGenes = append(row.OverlapGenes, g)
			} else {
				inNonSig++
			}
		}
		row.OverlapCount = inSig
		row.KESetSize = inSig + inNonSig
		row.Table = stats.Table{
			A: inSig,
			B: sigTotal - inSig,
			C: inNonSig,
			D: nonSigTotal - inNonSig,
		}
		row.OddsRatio = Ratio(row.Table.OddsRatio())

		if row.KESetSize == 0 {
			res.EmptyKEs = append(res.EmptyKEs, keID)
			row.PValue, row.FDR = 1, 1
			if opts.EmptyPolicy == EmptyInclude {
				row.Tested = true
				family = append(family, len(res.Rows))
			}
			res.Rows = append(res.Rows, row)
			continue
		}

		p, err := stats.FisherExact(row.Table, opts.Alternative)
		if err != nil {
			return nil, fmt.Errorf("KE %s: %w", keID, err)
		}
		row.PValue = p
		row.PctSignificant = math.Round(float64(inSig)/float64(row.KESetSize)*1000) / 10
		row.Tested = true
		family = append(family, len(res.Rows))
		res.Rows = append(res.Rows, row)
	}

	ps := make([]float64, len(family))
	for i, idx := range family {
		ps[i] = res.Rows[idx].PValue
	}
	for i, fdr := range stats.BenjaminiHochberg(ps) {
		res.Rows[family[i]].FDR = fdr
	}
	res.TestedCount = len(family)

	slices.SortFunc(res.Rows, compareRows)
	return res, nil
}

func compareRows(a, b Row) int {
	return cmp.Or(
		cmp.Compare(a.FDR, b.FDR),
		cmp.Compare(a.PValue, b.PValue),
		strings.Compare(a.KEID, b.KEID),
	)
}
