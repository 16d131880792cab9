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
	"cmp"
	"slices"
)

// BenjaminiHochberg returns BH-adjusted p-values in the input order.
//
// Adjusted values are p*m/rank with a running minimum taken from the
// largest rank downwards, then capped at 1. Every adjusted value is at
// least its raw p-value and the adjusted sequence is non-decreasing in
// raw p.
func BenjaminiHochberg(ps []float64) []float64 {
	m := len(ps)
	adjusted := make([]float64, m)
	if m == 0 {
		return adjusted
	}

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(ps[a], ps[b])
	})

	running := 1.0
	for rank := m; rank >= 1; rank-- {
		idx := order[rank-1]
		v := ps[idx] * float64(m) / float64(rank)
		if v < running {
			running = v
		}
		adjusted[idx] = running
	}
	return adjusted
}
