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

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
)

// CSVHeader is the column order written by WriteCSV.
var CSVHeader = []string{
	"ke_id", "ke_title", "ke_type", "pvalue", "fdr", "overlap_count",
	"pct_significant", "ke_set_size", "reference_set_size", "odds_ratio",
	"overlap_genes", "sig_in_ke", "sig_not_ke", "non_sig_in_ke",
	"non_sig_not_ke", "tested",
}

// WriteCSV writes the rows of res in their sorted order.
func WriteCSV(w io.Writer, res *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range res.Rows {
		record := []string{
			r.KEID,
			r.Title,
			string(r.KEType),
			formatFloat(r.PValue),
			formatFloat(r.FDR),
			strconv.Itoa(r.OverlapCount),
			strconv.FormatFloat(r.PctSignificant, 'f', 1, 64),
			strconv.Itoa(r.KESetSize),
			strconv.Itoa(r.ReferenceSize),
			r.OddsRatio.String(),
			strings.Join(r.OverlapGenes, ", "),
			strconv.Itoa(r.Table.A),
			strconv.Itoa(r.Table.B),
			strconv.Itoa(r.Table.C),
			strconv.Itoa(r.Table.D),
			strconv.FormatBool(r.Tested),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}
