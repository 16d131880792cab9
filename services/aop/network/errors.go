// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package network

import "errors"

var (
	// ErrNilGraph indicates Expand was given no graph.
	ErrNilGraph = errors.New("graph is nil")

	// ErrUnknownKE indicates an expansion target outside the AOP.
	ErrUnknownKE = errors.New("key event is not part of the AOP")
)
