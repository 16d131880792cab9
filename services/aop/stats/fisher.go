// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stats

import (
	"fmt"
	"math"
	"strings"
)

// relErr is the relative tolerance used when collecting tables that are
// "as or more extreme" than the observed one in the two-sided test.
const relErr = 1 + 1e-7

// Alternative selects the hypothesis tested by FisherExact.
type Alternative string

const (
	// TwoSided sums every table no more probable than the observed one.
	TwoSided Alternative = "two-sided"

	// Greater tests for over-representation (upper tail).
	Greater Alternative = "greater"

	// Less tests for under-representation (lower tail).
	Less Alternative = "less"
)

// ParseAlternative converts user input to an Alternative.
//
// The empty string maps to TwoSided.
func ParseAlternative(s string) (Alternative, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "two-sided", "two_sided", "twosided":
		return TwoSided, nil
	case "greater", "enrichment", "one-sided":
		return Greater, nil
	case "less":
		return Less, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlternative, s)
	}
}

// Table is a 2x2 contingency table laid out as
//
//	          in set   not in set
//	sig         A          B
//	not sig     C          D
type Table struct {
	A int `json:"a"`
	B int `json:"b"`
	C int `json:"c"`
	D int `json:"d"`
}

// N returns the grand total of the table.
func (t Table) N() int {
	return t.A + t.B + t.C + t.D
}

// Validate reports an error when any cell is negative.
func (t Table) Validate() error {
	if t.A < 0 || t.B < 0 || t.C < 0 || t.D < 0 {
		return fmt.Errorf("%w: [[%d %d] [%d %d]]", ErrNegativeCell, t.A, t.B, t.C, t.D)
	}
	return nil
}

// OddsRatio returns the sample odds ratio A*D / (B*C).
//
// Returns +Inf when only the denominator is zero and NaN when both are.
func (t Table) OddsRatio() float64 {
	num := float64(t.A) * float64(t.D)
	den := float64(t.B) * float64(t.C)
	if den == 0 {
		if num == 0 {
			return math.NaN()
		}
		return math.Inf(1)
	}
	return num / den
}

// FisherExact runs Fisher's exact test on a 2x2 table.
//
// Description:
//
//	Conditions on the row and column margins, under which A follows a
//	hypergeometric distribution. Greater returns P(X >= A), Less returns
//	P(X <= A) and TwoSided sums the probability of every table whose
//	probability does not exceed that of the observed table.
//
// Inputs:
//
//	t - The contingency table. Cells must be non-negative.
//	alt - Alternative hypothesis.
//
// Outputs:
//
//	float64 - The p-value, clamped to [0, 1].
//	error - Non-nil for negative cells or an unknown alternative.
//
// Example:
//
//	p, err := stats.FisherExact(stats.Table{A: 2, B: 0, C: 0, D: 2}, stats.TwoSided)
//	// p == 1.0/3
func FisherExact(t Table, alt Alternative) (float64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}

	rowSig := t.A + t.B
	rowNon := t.C + t.D
	colIn := t.A + t.C
	total := rowSig + rowNon

	lo := max(0, colIn-rowNon)
	hi := min(colIn, rowSig)

	// A degenerate margin leaves a single possible table.
	if total == 0 || lo == hi {
		return 1, nil
	}

	logDenom := logChoose(total, colIn)
	pmf := func(x int) float64 {
		return math.Exp(logChoose(rowSig, x) + logChoose(rowNon, colIn-x) - logDenom)
	}

	var p float64
	switch alt {
	case Greater:
		for x := t.A; x <= hi; x++ {
			p += pmf(x)
		}
	case Less:
		for x := lo; x <= t.A; x++ {
			p += pmf(x)
		}
	case TwoSided:
		observed := pmf(t.A) * relErr
		for x := lo; x <= hi; x++ {
			if px := pmf(x); px <= observed {
				p += px
			}
		}
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAlternative, alt)
	}

	return clamp01(p), nil
}

// logChoose returns ln(n choose k).
func logChoose(n, k int) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	a, _ := math.Lgamma(float64(n + 1))
	b, _ := math.Lgamma(float64(k + 1))
	c, _ := math.Lgamma(float64(n - k + 1))
	return a - b - c
}

func clamp01(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
