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
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFisherExact(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		alt   Alternative
		want  float64
	}{
		{"separated two-sided", Table{A: 2, B: 0, C: 0, D: 2}, TwoSided, 1.0 / 3},
		{"separated greater", Table{A: 2, B: 0, C: 0, D: 2}, Greater, 1.0 / 6},
		{"separated less", Table{A: 2, B: 0, C: 0, D: 2}, Less, 1.0},
		{"balanced two-sided", Table{A: 1, B: 1, C: 1, D: 1}, TwoSided, 1.0},
		{"balanced greater", Table{A: 1, B: 1, C: 1, D: 1}, Greater, 5.0 / 6},
		// Lady tasting tea: 3 of 4 correct.
		{"tea greater", Table{A: 3, B: 1, C: 1, D: 3}, Greater, 17.0 / 70},
		{"tea two-sided", Table{A: 3, B: 1, C: 1, D: 3}, TwoSided, 34.0 / 70},
		{"no significant genes", Table{A: 0, B: 0, C: 3, D: 7}, TwoSided, 1.0},
		{"all genes significant", Table{A: 3, B: 7, C: 0, D: 0}, TwoSided, 1.0},
		{"empty table", Table{}, Greater, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FisherExact(tt.table, tt.alt)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, p, 1e-12)
		})
	}
}

func TestFisherExact_Errors(t *testing.T) {
	_, err := FisherExact(Table{A: -1, B: 0, C: 0, D: 1}, TwoSided)
	assert.ErrorIs(t, err, ErrNegativeCell)

	_, err = FisherExact(Table{A: 1, B: 1, C: 1, D: 1}, Alternative("sideways"))
	assert.ErrorIs(t, err, ErrUnknownAlternative)
}

func TestFisherExact_LargeTableStaysInRange(t *testing.T) {
	p, err := FisherExact(Table{A: 40, B: 160, C: 60, D: 9740}, TwoSided)
	require.NoError(t, err)
	assert.Greater(t, p, 0.0)
	assert.Less(t, p, 1e-20)
}

func TestParseAlternative(t *testing.T) {
	for in, want := range map[string]Alternative{
		"":          TwoSided,
		"two-sided": TwoSided,
		"GREATER":   Greater,
		" less ":    Less,
	} {
		got, err := ParseAlternative(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseAlternative("both")
	assert.ErrorIs(t, err, ErrUnknownAlternative)
}

func TestOddsRatio(t *testing.T) {
	assert.InDelta(t, 9.0, Table{A: 3, B: 1, C: 1, D: 3}.OddsRatio(), 1e-12)
	assert.True(t, math.IsInf(Table{A: 2, B: 0, C: 0, D: 2}.OddsRatio(), 1))
	assert.True(t, math.IsNaN(Table{A: 0, B: 0, C: 1, D: 1}.OddsRatio()))
}

func TestCombinePValues(t *testing.T) {
	t.Run("single value is identity", func(t *testing.T) {
		p, err := CombinePValues([]float64{0.042})
		require.NoError(t, err)
		assert.Equal(t, 0.042, p)
	})

	t.Run("two values match closed form", func(t *testing.T) {
		// With 4 degrees of freedom the survival function at -2 ln(P) is P(1 - ln P).
		product := 0.2 * 0.03
		want := product * (1 - math.Log(product))

		p, err := CombinePValues([]float64{0.2, 0.03})
		require.NoError(t, err)
		assert.InDelta(t, want, p, 1e-9)
		assert.InDelta(t, 0.036696, p, 1e-5)
	})

	t.Run("two small values stay below the larger", func(t *testing.T) {
		for _, pair := range [][2]float64{{0.01, 0.04}, {0.049, 0.049}, {0.001, 0.03}} {
			p, err := CombinePValues(pair[:])
			require.NoError(t, err)
			assert.LessOrEqual(t, p, math.Max(pair[0], pair[1]))
		}
	})

	t.Run("zero dominates", func(t *testing.T) {
		p, err := CombinePValues([]float64{0, 0.8})
		require.NoError(t, err)
		assert.Equal(t, 0.0, p)
	})

	t.Run("ones combine to one", func(t *testing.T) {
		p, err := CombinePValues([]float64{1, 1, 1})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, p, 1e-12)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := CombinePValues(nil)
		assert.ErrorIs(t, err, ErrNoPValues)

		_, err = CombinePValues([]float64{0.5, 1.5})
		assert.ErrorIs(t, err, ErrPValueRange)

		_, err = CombinePValues([]float64{math.NaN()})
		assert.ErrorIs(t, err, ErrPValueRange)
	})
}

func TestBenjaminiHochberg(t *testing.T) {
	ps := []float64{0.01, 0.04, 0.03, 0.005}
	adj := BenjaminiHochberg(ps)
	require.Len(t, adj, len(ps))

	// Sorted: 0.005, 0.01, 0.03, 0.04 with m = 4.
	assert.InDelta(t, 0.02, adj[3], 1e-12)
	assert.InDelta(t, 0.02, adj[0], 1e-12)
	assert.InDelta(t, 0.04, adj[2], 1e-12)
	assert.InDelta(t, 0.04, adj[1], 1e-12)
}

func TestBenjaminiHochberg_Properties(t *testing.T) {
	ps := []float64{0.9, 0.001, 0.2, 0.2, 0.04, 0.5, 0.0301, 1}
	adj := BenjaminiHochberg(ps)

	idx := make([]int, len(ps))
	for i := range idx {
		idx[i] = i
		assert.GreaterOrEqual(t, adj[i], ps[i], "adjusted below raw at %d", i)
		assert.LessOrEqual(t, adj[i], 1.0)
	}
	sort.SliceStable(idx, func(a, b int) bool { return ps[idx[a]] < ps[idx[b]] })
	for i := 1; i < len(idx); i++ {
		assert.GreaterOrEqual(t, adj[idx[i]], adj[idx[i-1]])
	}
}

func TestBenjaminiHochberg_Empty(t *testing.T) {
	assert.Empty(t, BenjaminiHochberg(nil))
}
