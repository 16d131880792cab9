// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package significance tags genes as differentially expressed.
package significance

import (
	"fmt"
	"math"
	"slices"

	"github.com/AleutianAI/aopenrich/services/aop/expression"
)

// percentileEpsilon absorbs float error in m*N/100 before rounding up.
const percentileEpsilon = 1e-9

// Direction is the sign of a gene's fold change.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = "none"
)

// DirectionOf maps a log2 fold change to its Direction.
func DirectionOf(log2FC float64) Direction {
	switch {
	case log2FC > 0:
		return DirectionUp
	case log2FC < 0:
		return DirectionDown
	default:
		return DirectionNone
	}
}

// Classification is the significant subset of one dataset.
type Classification struct {
	PValueCutoff float64 `json:"pvalue_cutoff"`
	Policy       Policy  `json:"logfc_policy"`

	// Threshold is the effective |log2FC| bound. For percentile policies
	// it is the |log2FC| of the boundary gene, or 0 when nothing passed
	// the p-value cutoff.
	Threshold float64 `json:"logfc_threshold"`

	// PassingP counts genes with p below the cutoff.
	PassingP int `json:"passing_pvalue"`

	Significant map[string]struct{}  `json:"-"`
	Direction   map[string]Direction `json:"-"`
}

// IsSignificant reports whether gene is in the significant subset.
func (c *Classification) IsSignificant(gene string) bool {
	_, ok := c.Significant[gene]
	return ok
}

// Count is the size of the significant subset.
func (c *Classification) Count() int { return len(c.Significant) }

// Genes returns the significant genes in sorted order.
func (c *Classification) Genes() []string {
	out := make([]string, 0, len(c.Significant))
	for g := range c.Significant {
		out = append(out, g)
	}
	slices.Sort(out)
	return out
}

// Classify selects the significant genes.
//
// Description:
//
//	A gene is significant when its p-value is strictly below cutoff and
//	its |log2FC| satisfies policy. A fixed policy compares |log2FC| to
//	the threshold directly. A percentile policy ranks only genes that
//	passed the p-value cutoff: with m such genes and N percent, the
//	boundary is the k-th largest |log2FC| where k = ceil(m*N/100), and
//	every gene tied with the boundary is included.
//
// Inputs:
//
//	records - Normalized gene records.
//	cutoff - P-value cutoff in (0, 1].
//	policy - Fixed or percentile log2FC policy.
//
// Outputs:
//
//	*Classification - Significant set and per-gene direction for every record.
//	error - ErrInvalidCutoff, or a policy validation error.
//
// Thread Safety: Pure function; safe for concurrent use.
func Classify(records []expression.GeneRecord, cutoff float64, policy Policy) (*Classification, error) {
	if !(cutoff > 0 && cutoff <= 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidCutoff, cutoff)
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}

	c := &Classification{
		PValueCutoff: cutoff,
		Policy:       policy,
		Significant:  make(map[string]struct{}),
		Direction:    make(map[string]Direction, len(records)),
	}

	var passing []expression.GeneRecord
	for _, r := range records {
		c.Direction[r.GeneID] = DirectionOf(r.Log2FC)
		if r.PValue < cutoff {
			passing = append(passing, r)
		}
	}
	c.PassingP = len(passing)

	if policy.IsPercentile() {
		c.Threshold = percentileThreshold(passing, policy.Value())
		if len(passing) == 0 {
			return c, nil
		}
	} else {
		c.Threshold = policy.Value()
	}

	for _, r := range passing {
		if math.Abs(r.Log2FC) >= c.Threshold {
			c.Significant[r.GeneID] = struct{}{}
		}
	}
	return c, nil
}

// percentileThreshold returns the |log2FC| of the k-th ranked gene.
func percentileThreshold(passing []expression.GeneRecord, percent float64) float64 {
	m := len(passing)
	if m == 0 {
		return 0
	}
	abs := make([]float64, m)
	for i, r := range passing {
		abs[i] = math.Abs(r.Log2FC)
	}
	slices.SortFunc(abs, func(a, b float64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		}
		return 0
	})

	k := int(math.Ceil(float64(m)*percent/100 - percentileEpsilon))
	k = max(1, min(k, m))
	return abs[k-1]
}

func (p Policy) validate() error {
	if p.IsPercentile() {
		_, err := TopPercent(p.value)
		return err
	}
	_, err := Fixed(p.value)
	return err
}
