// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/AleutianAI/aopenrich/services/aop/enrichment"
)

// maxGenesShown limits the overlap column in terminal tables.
const maxGenesShown = 5

// Field is one labelled summary value.
type Field struct {
	Label string
	Value string
}

// Report is an enrichment result prepared for the terminal.
type Report struct {
	Title     string
	Fields    []Field
	Rows      []enrichment.Row
	FDRCutoff float64
	Warnings  []string
}

// RenderReport writes r to w in the current personality.
//
// Machine output is a tab-separated table with a header row and no
// decoration, one line per key event.
func RenderReport(w io.Writer, r Report) error {
	if GetPersonalityLevel() == PersonalityMachine {
		return renderMachine(w, r)
	}

	var b strings.Builder
	header := style(Styles.Title, r.Title)
	for _, f := range r.Fields {
		header += "\n" + style(Styles.Muted, f.Label+":") + " " + f.Value
	}
	if ShouldShowColors() {
		b.WriteString(Styles.Box.Render(header))
	} else {
		b.WriteString(header)
	}
	b.WriteString("\n\n")

	var table strings.Builder
	tw := tabwriter.NewWriter(&table, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KE\tTYPE\tP\tFDR\tOVERLAP\tGENES\tTITLE")
	for _, row := range r.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			row.KEID,
			row.KEType,
			FormatP(row.PValue),
			FormatP(row.FDR),
			row.OverlapCount, row.KESetSize,
			truncateGenes(row.OverlapGenes),
			row.Title,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	// Escape codes must be added after alignment.
	lines := strings.Split(strings.TrimRight(table.String(), "\n"), "\n")
	for i, line := range lines {
		if i == 0 {
			line = style(Styles.Header, line)
		} else {
			switch row := r.Rows[i-1]; {
			case !row.Tested:
				line = style(Styles.Muted, line)
			case row.FDR < r.FDRCutoff:
				line = style(Styles.Highlight, line)
			}
		}
		b.WriteString(line + "\n")
	}

	if len(r.Warnings) > 0 {
		var warn strings.Builder
		for i, msg := range r.Warnings {
			if i > 0 {
				warn.WriteString("\n")
			}
			warn.WriteString(IconWarning.Render() + " " + msg)
		}
		b.WriteString("\n")
		if ShouldShowColors() {
			b.WriteString(Styles.WarningBox.Render(warn.String()))
		} else {
			b.WriteString(warn.String())
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderMachine(w io.Writer, r Report) error {
	var b strings.Builder
	b.WriteString("ke_id\tke_type\tpvalue\tfdr\toverlap_count\tke_set_size\ttested\tke_title\n")
	for _, row := range r.Rows {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%d\t%d\t%t\t%s\n",
			row.KEID, row.KEType,
			strconv.FormatFloat(row.PValue, 'g', -1, 64),
			strconv.FormatFloat(row.FDR, 'g', -1, 64),
			row.OverlapCount, row.KESetSize, row.Tested, row.Title)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// FormatP formats a probability with three significant digits, switching
// to scientific notation below 0.001.
func FormatP(p float64) string {
	if p != 0 && p < 1e-3 {
		return strconv.FormatFloat(p, 'e', 2, 64)
	}
	return strconv.FormatFloat(p, 'g', 3, 64)
}

func truncateGenes(genes []string) string {
	if len(genes) == 0 {
		return "-"
	}
	if len(genes) <= maxGenesShown {
		return strings.Join(genes, ",")
	}
	return strings.Join(genes[:maxGenesShown], ",") + fmt.Sprintf(",+%d", len(genes)-maxGenesShown)
}

// Success writes a success line.
func Success(w io.Writer, msg string) {
	fmt.Fprintln(w, IconSuccess.Render()+" "+msg)
}

// Warning writes a warning line.
func Warning(w io.Writer, msg string) {
	fmt.Fprintln(w, IconWarning.Render()+" "+style(Styles.Warning, msg))
}

// Error writes an error line with an optional detail line.
func Error(w io.Writer, msg, detail string) {
	fmt.Fprintln(w, IconError.Render()+" "+style(Styles.Error, msg))
	if detail != "" {
		fmt.Fprintln(w, "  "+style(Styles.Muted, detail))
	}
}
