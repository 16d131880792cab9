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

import "errors"

var (
	// ErrNegativeCell indicates a contingency table with a negative count.
	ErrNegativeCell = errors.New("contingency table cell is negative")

	// ErrUnknownAlternative indicates an unsupported Fisher test alternative.
	ErrUnknownAlternative = errors.New("unknown alternative hypothesis")

	// ErrNoPValues indicates an empty p-value list was given to CombinePValues.
	ErrNoPValues = errors.New("no p-values to combine")

	// ErrPValueRange indicates a p-value outside [0, 1] or NaN.
	ErrPValueRange = errors.New("p-value outside [0, 1]")
)
