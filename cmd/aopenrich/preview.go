// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/aopenrich/services/aop"
	"github.com/AleutianAI/aopenrich/services/aop/expression"
)

func newPreviewCmd(a *app) *cobra.Command {
	var (
		in     inputFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Inspect an expression table and the detected columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Previews never touch the reference data.
			svc := aop.NewService(nil, a.cfg).WithLogger(a.logger.Slog())
			tbl, sel, _, err := in.load(svc)
			if err != nil {
				return err
			}
			resp, err := svc.Preview(cmd.Context(), tbl, sel)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			return writePreview(cmd.OutOrStdout(), resp, sel)
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the preview as JSON")
	return cmd
}

func writePreview(w io.Writer, resp *aop.PreviewResponse, sel expression.ColumnSelection) error {
	fmt.Fprintf(w, "%d rows, %d columns, %s separated\n", resp.RowCount, len(resp.Columns), resp.Delimiter)
	fmt.Fprintf(w, "  gene id   %s\n", orDash(sel.ID))
	fmt.Fprintf(w, "  log2FC    %s\n", orDash(sel.FC))
	fmt.Fprintf(w, "  p-value   %s\n", orDash(sel.PValue))
	if resp.IDType != nil {
		mixed := ""
		if resp.IDType.Mixed {
			mixed = " (mixed)"
		}
		fmt.Fprintf(w, "  id type   %s%s\n", resp.IDType.Type, mixed)
	}
	if d := resp.Diagnostics; d != nil {
		fmt.Fprintf(w, "  dropped   %d genes, %d rows without id\n", len(d.DroppedGenes), d.EmptyIDRows)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(resp.Columns, "\t"))
	for _, row := range resp.Head {
		cells := make([]string, len(resp.Columns))
		for i, col := range resp.Columns {
			cells[i] = row[col]
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
