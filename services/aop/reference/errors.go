// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reference

import (
	"errors"
	"fmt"
)

var (
	// ErrFileMissing indicates a required reference file could not be found.
	ErrFileMissing = errors.New("reference file missing")

	// ErrEmptyTable indicates a reference file with no header.
	ErrEmptyTable = errors.New("reference file is empty")

	// ErrMissingColumn indicates a required column is absent from a reference file.
	ErrMissingColumn = errors.New("required column missing")

	// ErrMalformedTable indicates a reference file that could not be parsed.
	ErrMalformedTable = errors.New("reference file is malformed")

	// ErrNoGeneSets indicates the join produced no KE gene sets at all.
	ErrNoGeneSets = errors.New("no KE gene sets could be built")

	// ErrNoAOPs indicates the AOP-KE map defined no pathways.
	ErrNoAOPs = errors.New("no AOP definitions found")

	// ErrNilSource indicates Build was called without a data source.
	ErrNilSource = errors.New("reference source must not be nil")
)

// LoadError ties a reference failure to the file that caused it.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
