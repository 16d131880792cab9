// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package expression

import "errors"

// File errors.
var (
	// ErrEmptyFile indicates an input with no content at all.
	ErrEmptyFile = errors.New("file is empty")

	// ErrNoDataRows indicates an input with a header but no rows.
	ErrNoDataRows = errors.New("file has a header but no data rows")

	// ErrMalformedFile indicates delimited text that could not be parsed.
	ErrMalformedFile = errors.New("file could not be parsed as delimited text")

	// ErrDuplicateHeader indicates two columns with the same name.
	ErrDuplicateHeader = errors.New("duplicate column name in header")
)

// Column selection errors.
var (
	// ErrColumnRequired indicates a missing id, fold change or p-value column choice.
	ErrColumnRequired = errors.New("column selection is required")

	// ErrColumnNotFound indicates a selected column absent from the header.
	ErrColumnNotFound = errors.New("selected column not found")

	// ErrColumnsNotDistinct indicates the same column chosen for two roles.
	ErrColumnsNotDistinct = errors.New("selected columns must be distinct")

	// ErrInvalidColumnName indicates a column name that is too long or has unsafe characters.
	ErrInvalidColumnName = errors.New("invalid column name")
)

// ErrNoValidGenes indicates that normalization produced no gene records.
var ErrNoValidGenes = errors.New("no genes with valid fold change and p-value")
