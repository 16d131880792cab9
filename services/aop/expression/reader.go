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

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Table is raw delimited input: a header and its rows.
type Table struct {
	Header    []string   `json:"header"`
	Rows      [][]string `json:"-"`
	Delimiter rune       `json:"-"`
}

// Column returns the index of a header name, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Head returns up to n rows as header-keyed maps for previews.
func (t *Table) Head(n int) []map[string]string {
	n = min(n, len(t.Rows))
	out := make([]map[string]string, 0, n)
	for _, row := range t.Rows[:n] {
		m := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			m[h] = row[i]
		}
		out = append(out, m)
	}
	return out
}

// ReadTable parses comma or tab separated text.
//
// Description:
//
//	The separator is sniffed from the header line: a tab anywhere in it
//	selects tab, otherwise comma. A UTF-8 byte order mark and blank
//	trailing lines are ignored. Every row must have as many fields as the
//	header.
//
// Outputs:
//
//	*Table - The parsed table.
//	error - ErrEmptyFile, ErrNoDataRows, ErrDuplicateHeader or ErrMalformedFile.
func ReadTable(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	delim := SniffDelimiter(string(firstLine))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = delim != '\t'

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	header := make([]string, len(records[0]))
	seen := make(map[string]struct{}, len(header))
	for i, h := range records[0] {
		h = strings.TrimSpace(h)
		if _, dup := seen[h]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateHeader, h)
		}
		seen[h] = struct{}{}
		header[i] = h
	}
	if len(records) == 1 {
		return nil, ErrNoDataRows
	}

	return &Table{Header: header, Rows: records[1:], Delimiter: delim}, nil
}

// SniffDelimiter picks tab or comma for a header line.
func SniffDelimiter(headerLine string) rune {
	if strings.ContainsRune(headerLine, '\t') {
		return '\t'
	}
	return ','
}
