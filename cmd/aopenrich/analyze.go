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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/aopenrich/pkg/ux"
	"github.com/AleutianAI/aopenrich/services/aop"
	"github.com/AleutianAI/aopenrich/services/aop/enrichment"
	"github.com/AleutianAI/aopenrich/services/aop/expression"
)

// Output formats for analyze.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

var errInputRequired = errors.New("exactly one of --input or --demo is required")

// inputFlags selects the expression table and its columns.
type inputFlags struct {
	input    string
	demo     string
	idColumn string
	fcColumn string
	pColumn  string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Expression table (CSV or TSV)")
	cmd.Flags().StringVar(&f.demo, "demo", "", "Name of a configured demo dataset")
	cmd.Flags().StringVar(&f.idColumn, "id-column", "", "Gene identifier column (detected when empty)")
	cmd.Flags().StringVar(&f.fcColumn, "fc-column", "", "log2 fold change column (detected when empty)")
	cmd.Flags().StringVar(&f.pColumn, "pvalue-column", "", "p-value column (detected when empty)")
	cmd.MarkFlagsMutuallyExclusive("input", "demo")
}

func (f *inputFlags) selection() expression.ColumnSelection {
	return expression.ColumnSelection{ID: f.idColumn, FC: f.fcColumn, PValue: f.pColumn}
}

// load reads the table and resolves the column roles. The returned name
// identifies the input in reports.
func (f *inputFlags) load(svc *aop.Service) (*expression.Table, expression.ColumnSelection, string, error) {
	switch {
	case f.input != "" && f.demo != "":
		return nil, expression.ColumnSelection{}, "", errInputRequired
	case f.demo != "":
		tbl, demo, err := svc.LoadDemo(f.demo)
		if err != nil {
			return nil, expression.ColumnSelection{}, "", err
		}
		return tbl, aop.ResolveColumns(tbl, f.selection(), &demo), demo.File, nil
	case f.input != "":
		tbl, err := readTableFile(f.input)
		if err != nil {
			return nil, expression.ColumnSelection{}, "", err
		}
		return tbl, aop.ResolveColumns(tbl, f.selection(), nil), filepath.Base(f.input), nil
	default:
		return nil, expression.ColumnSelection{}, "", errInputRequired
	}
}

func readTableFile(path string) (*expression.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	tbl, err := expression.ReadTable(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tbl, nil
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		in          inputFlags
		aopID       string
		cutoff      float64
		logFC       string
		alternative string
		expand      bool
		format      string
		output      string
		meta        aop.ExperimentMetadata
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a key event enrichment analysis",
		Example: `  aopenrich analyze --aop AOP:1 --input results.tsv
  aopenrich analyze --aop AOP:1 --demo pxr-to90137 --logfc-threshold "top 10%"
  aopenrich analyze --aop AOP:1 --input results.csv --format csv --output enrichment.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if aopID == "" {
				return fmt.Errorf("%w: --aop is required", aop.ErrInvalidParameter)
			}
			switch format {
			case formatTable, formatJSON, formatCSV:
			default:
				return fmt.Errorf("%w: unknown format %q", aop.ErrInvalidParameter, format)
			}

			svc, err := a.newService(cmd)
			if err != nil {
				return err
			}
			tbl, sel, name, err := in.load(svc)
			if err != nil {
				return err
			}

			req := aop.AnalyzeRequest{
				AOPID:             aopID,
				Columns:           sel,
				LogFCThreshold:    logFC,
				FisherAlternative: alternative,
				Expand:            expand,
				Metadata:          meta,
			}
			req.Metadata.Filename = name
			req.Metadata.UploadedAt = time.Now().UTC()
			if cmd.Flags().Changed("pvalue-cutoff") {
				req.PValueCutoff = &cutoff
			}

			var resp *aop.AnalyzeResponse
			err = ux.WithSpinner(cmd.ErrOrStderr(), "Testing key events of "+aopID, func() error {
				var err error
				resp, err = svc.Analyze(cmd.Context(), tbl, req)
				return err
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := writeAnalysis(w, resp, format); err != nil {
				return err
			}
			if output != "" {
				ux.Success(cmd.ErrOrStderr(), "Wrote "+output)
			}
			return nil
		},
	}

	in.register(cmd)
	cmd.Flags().StringVar(&aopID, "aop", "", "AOP id to analyse, e.g. AOP:1")
	cmd.Flags().Float64Var(&cutoff, "pvalue-cutoff", 0.05, "Gene p-value cutoff (default from config)")
	cmd.Flags().StringVar(&logFC, "logfc-threshold", "", `|log2FC| threshold: a number or "top N%" (default from config)`)
	cmd.Flags().StringVar(&alternative, "alternative", "", "Fisher alternative: two-sided, greater or less (default from config)")
	cmd.Flags().BoolVar(&expand, "expand", false, "Add gene nodes to the network")
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format: table, json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the result to this file instead of stdout")
	cmd.Flags().StringVar(&meta.DatasetID, "dataset-id", "", "Dataset accession echoed into the result")
	cmd.Flags().StringVar(&meta.Stressor, "stressor", "", "Stressor echoed into the result")
	return cmd
}

// newService loads the reference data for a one-shot command.
func (a *app) newService(cmd *cobra.Command) (*aop.Service, error) {
	logger := a.logger.Slog()
	var svc *aop.Service
	err := ux.WithSpinner(cmd.ErrOrStderr(), "Loading reference data", func() error {
		ref, err := loadReference(cmd.Context(), a.cfg, logger, nil)
		if err != nil {
			return err
		}
		svc = aop.NewService(ref, a.cfg).WithLogger(logger)
		return nil
	})
	return svc, err
}

func writeAnalysis(w io.Writer, resp *aop.AnalyzeResponse, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case formatCSV:
		return enrichment.WriteCSV(w, &enrichment.Result{Rows: resp.Results})
	default:
		return ux.RenderReport(w, analysisReport(resp))
	}
}

func analysisReport(resp *aop.AnalyzeResponse) ux.Report {
	p := resp.Parameters
	s := resp.Summary
	fields := []ux.Field{
		{Label: "AOP", Value: resp.AOP.Label},
		{Label: "Input", Value: resp.Metadata.Filename},
		{Label: "Genes", Value: fmt.Sprintf("%d of %d rows", s.BackgroundSize, s.InputRows)},
		{Label: "Significant", Value: fmt.Sprintf("%d (p < %s, |log2FC| >= %s)", s.SignificantGenes,
			strconv.FormatFloat(p.PValueCutoff, 'g', -1, 64), strconv.FormatFloat(p.EffectiveLogFC, 'g', 4, 64))},
		{Label: "Key events", Value: fmt.Sprintf("%d tested, %d with FDR < %s", s.TestedKEs, s.SignificantKEs,
			strconv.FormatFloat(p.FDRSignificance, 'g', -1, 64))},
		{Label: "Fisher test", Value: string(p.FisherAlternative)},
	}
	return ux.Report{
		Title:     "Enrichment of " + resp.AOP.ID,
		Fields:    fields,
		Rows:      resp.Results,
		FDRCutoff: p.FDRSignificance,
		Warnings:  resp.Warnings,
	}
}
