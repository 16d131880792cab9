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

import "errors"

var (
	// ErrInvalidCutoff indicates a p-value cutoff outside (0, 1].
	ErrInvalidCutoff = errors.New("p-value cutoff must be in (0, 1]")

	// ErrInvalidThreshold indicates a fixed log2FC threshold outside [0, 10].
	ErrInvalidThreshold = errors.New("log2FC threshold must be in [0, 10]")

	// ErrInvalidPercent indicates a percentile outside (0, 100].
	ErrInvalidPercent = errors.New("percentile must be in (0, 100]")

	// ErrInvalidPolicy indicates a threshold string that is neither a
	// number nor a "top N%" tag.
	ErrInvalidPolicy = errors.New("log2FC threshold must be a number or \"top N%\"")
)
