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

	"gonum.org/v1/gonum/stat/distuv"
)

// CombinePValues merges independent p-values with Fisher's method.
//
// Description:
//
//	Computes X = -2 * sum(ln p_i) and returns the upper tail of a
//	chi-squared distribution with 2k degrees of freedom at X. A single
//	value is returned unchanged. Any zero p-value yields zero.
//
// Inputs:
//
//	ps - p-values in [0, 1]. Must be non-empty.
//
// Outputs:
//
//	float64 - The combined p-value.
//	error - ErrNoPValues for an empty slice, ErrPValueRange for invalid input.
//
// Thread Safety: Safe for concurrent use.
func CombinePValues(ps []float64) (float64, error) {
	if len(ps) == 0 {
		return 0, ErrNoPValues
	}
	for _, p := range ps {
		if !ValidPValue(p) {
			return 0, fmt.Errorf("%w: %v", ErrPValueRange, p)
		}
	}
	if len(ps) == 1 {
		return ps[0], nil
	}

	var statistic float64
	for _, p := range ps {
		if p == 0 {
			return 0, nil
		}
		statistic += -2 * math.Log(p)
	}

	chi := distuv.ChiSquared{K: float64(2 * len(ps))}
	return clamp01(chi.Survival(statistic)), nil
}

// ValidPValue reports whether p is a finite value in [0, 1].
func ValidPValue(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}
