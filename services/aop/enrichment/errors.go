// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package enrichment

import "errors"

var (
	// ErrNilReference indicates Run was called without reference data.
	ErrNilReference = errors.New("reference data is nil")

	// ErrEmptyBackground indicates the dataset contributed no genes.
	ErrEmptyBackground = errors.New("background gene universe is empty")

	// ErrNoKEs indicates the selected AOP has no key events.
	ErrNoKEs = errors.New("AOP has no key events")

	// ErrUnknownEmptyPolicy indicates an unrecognised empty-KE policy.
	ErrUnknownEmptyPolicy = errors.New("unknown empty key event policy")
)
