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
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// table is a parsed reference file with header lookup.
type table struct {
	name string
	cols map[string]int
	rows [][]string
}

// get returns the trimmed cell for column col.
func (t *table) get(row []string, col string) string {
	return strings.TrimSpace(row[t.cols[col]])
}

// readTable opens and parses one reference CSV, checking required columns.
func readTable(ctx context.Context, src Source, name string, required ...string) (*table, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, &LoadError{File: name, Err: err}
	}
	defer rc.Close()

	t, err := parseTable(rc, name, required)
	if err != nil {
		return nil, &LoadError{File: name, Err: err}
	}
	return t, nil
}

func parseTable(r io.Reader, name string, required []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}

	t := &table{name: name, cols: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := t.cols[h]; !dup {
			t.cols[h] = i
		}
	}
	for _, col := range required {
		if _, ok := t.cols[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	t.rows = rows
	return t, nil
}

// coerceID normalises numeric identifiers written as floats ("1234.0")
// to their integer form. Anything else is returned trimmed.
func coerceID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return s
	}
	return strconv.FormatInt(int64(f), 10)
}
