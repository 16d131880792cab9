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
	"fmt"
	"strings"
)

// MaxColumnNameLength bounds user-supplied column names.
const MaxColumnNameLength = 100

// forbiddenColumnChars may not appear in a column name.
const forbiddenColumnChars = "<>;\"'\\"

// ColumnSelection names the input columns holding the gene identifier,
// the log2 fold change and the p-value.
type ColumnSelection struct {
	ID     string `json:"id_column" form:"id_column"`
	FC     string `json:"fc_column" form:"fc_column"`
	PValue string `json:"pvalue_column" form:"pvalue_column"`
}

// columnIndex holds the resolved positions of a ColumnSelection.
type columnIndex struct {
	id, fc, p int
}

// Validate checks the selection on its own: every role set, names safe,
// and no column used twice.
func (s ColumnSelection) Validate() error {
	roles := []struct{ role, name string }{
		{"gene id", s.ID},
		{"log2 fold change", s.FC},
		{"p-value", s.PValue},
	}
	for _, r := range roles {
		if strings.TrimSpace(r.name) == "" {
			return fmt.Errorf("%w: %s", ErrColumnRequired, r.role)
		}
		if len(r.name) > MaxColumnNameLength {
			return fmt.Errorf("%w: %s column name longer than %d characters", ErrInvalidColumnName, r.role, MaxColumnNameLength)
		}
		if strings.ContainsAny(r.name, forbiddenColumnChars) {
			return fmt.Errorf("%w: %q contains forbidden characters", ErrInvalidColumnName, r.name)
		}
	}
	if s.ID == s.FC || s.ID == s.PValue || s.FC == s.PValue {
		return ErrColumnsNotDistinct
	}
	return nil
}

// resolve validates the selection against a header.
func (s ColumnSelection) resolve(header []string) (columnIndex, error) {
	if err := s.Validate(); err != nil {
		return columnIndex{}, err
	}
	find := func(name string) (int, error) {
		for i, h := range header {
			if h == name {
				return i, nil
			}
		}
		return -1, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}

	var (
		idx columnIndex
		err error
	)
	if idx.id, err = find(s.ID); err != nil {
		return columnIndex{}, err
	}
	if idx.fc, err = find(s.FC); err != nil {
		return columnIndex{}, err
	}
	if idx.p, err = find(s.PValue); err != nil {
		return columnIndex{}, err
	}
	return idx, nil
}
