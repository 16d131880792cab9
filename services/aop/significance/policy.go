// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package significance

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxFixedThreshold is the largest accepted fixed |log2FC| threshold.
const MaxFixedThreshold = 10.0

// PolicyKind tags the variant held by a Policy.
type PolicyKind string

const (
	// PolicyFixed selects genes with |log2FC| at or above a fixed value.
	PolicyFixed PolicyKind = "fixed"

	// PolicyPercentile selects the top N% of p-passing genes by |log2FC|.
	PolicyPercentile PolicyKind = "percentile"
)

// Policy is the log2FC part of the significance rule. The zero value is a
// fixed threshold of 0, under which the p-value cutoff alone decides.
type Policy struct {
	kind  PolicyKind
	value float64
}

// Fixed returns a policy requiring |log2FC| >= t.
func Fixed(t float64) (Policy, error) {
	if !(t >= 0 && t <= MaxFixedThreshold) {
		return Policy{}, fmt.Errorf("%w: got %v", ErrInvalidThreshold, t)
	}
	return Policy{kind: PolicyFixed, value: t}, nil
}

// TopPercent returns a policy selecting the top n percent of genes that
// pass the p-value cutoff, ranked by |log2FC|.
func TopPercent(n float64) (Policy, error) {
	if !(n > 0 && n <= 100) {
		return Policy{}, fmt.Errorf("%w: got %v", ErrInvalidPercent, n)
	}
	return Policy{kind: PolicyPercentile, value: n}, nil
}

// ParsePolicy accepts a plain number ("1.0") or a percentile tag
// ("top 10%", case-insensitive, spaces optional). Empty input yields the
// zero policy.
func ParsePolicy(s string) (Policy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Policy{}, nil
	}

	if rest, ok := strings.CutPrefix(s, "top"); ok {
		rest = strings.TrimSpace(rest)
		num, ok := strings.CutSuffix(rest, "%")
		if !ok {
			return Policy{}, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return Policy{}, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
		}
		return TopPercent(n)
	}

	t, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Policy{}, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
	return Fixed(t)
}

// Kind reports the variant.
func (p Policy) Kind() PolicyKind {
	if p.kind == "" {
		return PolicyFixed
	}
	return p.kind
}

// Value is the fixed threshold or the percentage, depending on Kind.
func (p Policy) Value() float64 { return p.value }

// IsPercentile reports whether the policy ranks genes.
func (p Policy) IsPercentile() bool { return p.kind == PolicyPercentile }

// String renders the policy in the form ParsePolicy accepts.
func (p Policy) String() string {
	v := strconv.FormatFloat(p.value, 'g', -1, 64)
	if p.IsPercentile() {
		return "top " + v + "%"
	}
	return v
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(b []byte) error {
	parsed, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
