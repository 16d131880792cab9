// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package aop provides the AOP enrichment HTTP service.
//
// The service exposes endpoints for:
//   - Listing the selectable AOPs and bundled demo datasets
//   - Previewing an expression table with detected columns
//   - Running the normalize, classify, enrich and network pipeline
package aop

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/aopenrich/services/aop/config"
	"github.com/AleutianAI/aopenrich/services/aop/enrichment"
	"github.com/AleutianAI/aopenrich/services/aop/expression"
	"github.com/AleutianAI/aopenrich/services/aop/network"
	"github.com/AleutianAI/aopenrich/services/aop/observability"
	"github.com/AleutianAI/aopenrich/services/aop/reference"
	"github.com/AleutianAI/aopenrich/services/aop/significance"
	"github.com/AleutianAI/aopenrich/services/aop/stats"
	"github.com/AleutianAI/aopenrich/services/aop/telemetry"
)

// ServiceVersion is the aopenrich service version.
const ServiceVersion = "0.1.0"

const (
	tracerName = "aop.service"

	// previewRows is how many rows Preview returns.
	previewRows = 5

	// DefaultMaxVolcanoPoints caps volcano data when the config leaves it unset.
	DefaultMaxVolcanoPoints = 2000
)

// Service runs analyses against one immutable reference data set.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Reference data is read-only and
//	every analysis keeps its intermediate state local to the call.
type Service struct {
	ref     *reference.Reference
	cfg     *config.Config
	demos   fs.FS
	metrics *observability.Metrics
	stages  *telemetry.Metrics
	logger  *slog.Logger
}

// NewService creates a service. A nil cfg selects config.Default().
func NewService(ref *reference.Reference, cfg *config.Config) *Service {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	demoDir := cfg.DemoDir
	if demoDir == "" {
		demoDir = "."
	}
	return &Service{
		ref:    ref,
		cfg:    cfg,
		demos:  os.DirFS(demoDir),
		logger: slog.Default(),
	}
}

// WithDemoFS replaces the file system demo datasets are read from.
func (s *Service) WithDemoFS(fsys fs.FS) *Service {
	s.demos = fsys
	return s
}

// WithMetrics sets the Prometheus metrics.
func (s *Service) WithMetrics(m *observability.Metrics) *Service {
	s.metrics = m
	return s
}

// WithStageMetrics sets the OpenTelemetry stage instruments.
func (s *Service) WithStageMetrics(m *telemetry.Metrics) *Service {
	s.stages = m
	return s
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l *slog.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// Ready reports whether reference data is loaded.
func (s *Service) Ready() bool { return s.ref != nil }

// Reference returns the loaded reference data, or nil.
func (s *Service) Reference() *reference.Reference { return s.ref }

// Config returns the service configuration.
func (s *Service) Config() *config.Config { return s.cfg }

// Metrics returns the Prometheus metrics, or nil.
func (s *Service) Metrics() *observability.Metrics { return s.metrics }

// AOPs lists the pathways present in the reference data and enabled in
// the catalogue, in reference order.
func (s *Service) AOPs() []AOPInfo {
	if s.ref == nil {
		return []AOPInfo{}
	}
	out := []AOPInfo{}
	for _, a := range s.ref.AOPs() {
		if !s.cfg.AOPEnabled(a.ID) {
			continue
		}
		out = append(out, aopInfo(a))
	}
	return out
}

// AOPDetail returns one enabled pathway with its key events in pathway
// order. KEs without metadata are reported as intermediate events.
func (s *Service) AOPDetail(id string) (*AOPDetail, error) {
	if s.ref == nil {
		return nil, ErrReferenceNotLoaded
	}
	aop, err := s.resolveAOP(id)
	if err != nil {
		return nil, err
	}
	detail := &AOPDetail{
		AOPInfo: aopInfo(aop),
		KEs:     make([]reference.KEMetadata, 0, len(aop.KEs)),
		KERs:    append([]reference.KER{}, aop.KERs...),
	}
	for _, ke := range aop.KEs {
		meta, ok := s.ref.KE(ke)
		if !ok {
			meta = reference.KEMetadata{ID: ke, Title: ke, Type: reference.KETypeIntermediate}
		}
		detail.KEs = append(detail.KEs, meta)
	}
	return detail, nil
}

// Demos lists the configured demo datasets.
func (s *Service) Demos() []config.DemoDataset {
	return slices.Clone(s.cfg.Demos)
}

// LoadDemo reads a configured demo dataset.
func (s *Service) LoadDemo(name string) (*expression.Table, config.DemoDataset, error) {
	demo, ok := s.cfg.Demo(name)
	if !ok {
		return nil, config.DemoDataset{}, fmt.Errorf("%w: %q", ErrUnknownDemo, name)
	}
	f, err := s.demos.Open(path.Base(demo.File))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, demo, fmt.Errorf("%w: %s file %s not found", ErrUnknownDemo, name, demo.File)
		}
		return nil, demo, fmt.Errorf("open demo %s: %w", name, err)
	}
	defer f.Close()

	tbl, err := expression.ReadTable(f)
	if err != nil {
		return nil, demo, fmt.Errorf("demo %s: %w", name, err)
	}
	return tbl, demo, nil
}

// Preview describes a table and guesses its columns.
//
// Description:
//
//	Non-empty fields of sel override the detected columns. When all three
//	roles resolve, the table is normalized with the configured defaults
//	to produce diagnostics and volcano data; a failure there is not an
//	error, the optional fields are simply left out.
func (s *Service) Preview(ctx context.Context, tbl *expression.Table, sel expression.ColumnSelection) (*PreviewResponse, error) {
	_, span := telemetry.StartSpan(ctx, tracerName, "aop.Service.Preview")
	defer span.End()

	if tbl == nil {
		return nil, ErrNoInput
	}

	detected := expression.DetectColumns(tbl)
	chosen := mergeSelection(sel, detected.Selection())

	resp := &PreviewResponse{
		Columns:   tbl.Header,
		RowCount:  len(tbl.Rows),
		Delimiter: delimiterName(tbl.Delimiter),
		Head:      tbl.Head(previewRows),
		Detected:  detected,
	}

	if idx := tbl.Column(chosen.ID); idx >= 0 {
		ids := make([]string, 0, min(len(tbl.Rows), 20))
		for _, row := range tbl.Rows[:min(len(tbl.Rows), 20)] {
			ids = append(ids, row[idx])
		}
		guess := expression.GuessIDType(ids)
		resp.IDType = &guess
	}

	if norm, err := expression.Normalize(tbl, chosen); err == nil {
		resp.Diagnostics = &norm.Diagnostics
		params, perr := s.resolveParameters(AnalyzeRequest{Columns: chosen})
		if perr == nil {
			if cls, cerr := significance.Classify(norm.Records, params.PValueCutoff, params.LogFCPolicy); cerr == nil {
				resp.Volcano = volcanoPoints(norm.Records, cls, s.maxVolcanoPoints())
			}
		}
	}

	telemetry.SetSpanOK(span)
	return resp, nil
}

// Analyze runs the full pipeline on one table.
//
// Description:
//
//	Resolves the AOP and parameters, normalizes the table to gene records,
//	classifies significant genes, runs Fisher's exact test per KE with
//	Benjamini-Hochberg correction, and assembles the network. Each stage
//	gets its own span and a stage duration measurement. Data-quality
//	problems are reported in Diagnostics and Warnings rather than as
//	errors.
//
// Inputs:
//
//	ctx - Context for tracing.
//	tbl - Parsed input table.
//	req - AOP, columns and optional threshold overrides.
//
// Outputs:
//
//	*AnalyzeResponse - Results, network, volcano data and diagnostics.
//	error - A validation, AOP data, enrichment or network error; see ClassifyError.
//
// Thread Safety: Safe for concurrent use.
func (s *Service) Analyze(ctx context.Context, tbl *expression.Table, req AnalyzeRequest) (resp *AnalyzeResponse, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, tracerName, "aop.Service.Analyze",
		trace.WithAttributes(attribute.String("aop.id", req.AOPID)))
	defer span.End()
	defer func() {
		s.metrics.RecordAnalysis(err, time.Since(start))
		if err != nil {
			telemetry.RecordError(span, err)
			return
		}
		telemetry.SetSpanOK(span)
	}()

	logger := telemetry.LoggerWithTrace(ctx, s.logger).With("aop_id", req.AOPID)

	if s.ref == nil {
		return nil, ErrReferenceNotLoaded
	}
	if tbl == nil {
		return nil, ErrNoInput
	}
	aop, err := s.resolveAOP(req.AOPID)
	if err != nil {
		return nil, err
	}
	params, err := s.resolveParameters(req)
	if err != nil {
		return nil, err
	}

	var norm *expression.Result
	err = s.stage(ctx, telemetry.StageNormalize, "expression.Normalize", func(ctx context.Context) error {
		var nerr error
		norm, nerr = expression.Normalize(tbl, params.Columns)
		if norm != nil {
			s.metrics.AddDroppedGenes(len(norm.Diagnostics.DroppedGenes))
			s.stages.AddGenes(ctx, len(norm.Records))
		}
		return nerr
	})
	if err != nil {
		return nil, err
	}

	var cls *significance.Classification
	err = s.stage(ctx, telemetry.StageClassify, "significance.Classify", func(context.Context) error {
		var cerr error
		cls, cerr = significance.Classify(norm.Records, params.PValueCutoff, params.LogFCPolicy)
		return cerr
	})
	if err != nil {
		return nil, err
	}
	params.EffectiveLogFC = cls.Threshold

	var enr *enrichment.Result
	err = s.stage(ctx, telemetry.StageEnrich, "enrichment.Run", func(ctx context.Context) error {
		var eerr error
		enr, eerr = enrichment.Run(aop, s.ref, norm.Background(), cls.Significant, enrichment.Options{
			Alternative: params.FisherAlternative,
			EmptyPolicy: params.EmptyKEPolicy,
		})
		if eerr != nil {
			return fmt.Errorf("%w: %w", ErrEnrichmentFailed, eerr)
		}
		s.stages.AddTests(ctx, enr.TestedCount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var graph *network.Graph
	err = s.stage(ctx, telemetry.StageNetwork, "network.Assemble", func(context.Context) error {
		graph = network.Assemble(aop, enr.Rows, s.ref, params.FDRSignificance)
		if !req.Expand {
			return nil
		}
		expanded, xerr := network.Expand(graph, aop, s.ref, norm.Records, cls)
		if xerr != nil {
			return fmt.Errorf("%w: %w", ErrNetworkFailed, xerr)
		}
		graph = expanded
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp = &AnalyzeResponse{
		AnalysisID:  uuid.NewString(),
		AOP:         aopInfo(aop),
		Parameters:  params,
		Metadata:    req.Metadata,
		Diagnostics: norm.Diagnostics,
		IDType:      expression.GuessIDType(norm.IDs()),
		Results:     enr.Rows,
		Network:     graph,
		Volcano:     volcanoPoints(norm.Records, cls, s.maxVolcanoPoints()),
		Summary: Summary{
			InputRows:        norm.Diagnostics.InputRows,
			BackgroundSize:   enr.BackgroundSize,
			PassingPValue:    cls.PassingP,
			SignificantGenes: enr.SignificantCount,
			TestedKEs:        enr.TestedCount,
			SignificantKEs:   countSignificant(enr.Rows, params.FDRSignificance),
			EmptyKEs:         enr.EmptyKEs,
		},
	}
	if resp.Metadata.UploadedAt.IsZero() {
		resp.Metadata.UploadedAt = time.Now().UTC()
	}
	resp.Warnings = warnings(resp)

	logger.Info("Analysis complete",
		"analysis_id", resp.AnalysisID,
		"genes", resp.Summary.BackgroundSize,
		"significant_genes", resp.Summary.SignificantGenes,
		"tested_kes", resp.Summary.TestedKEs,
		"significant_kes", resp.Summary.SignificantKEs,
		"dropped_genes", len(norm.Diagnostics.DroppedGenes),
		"collapsed_genes", norm.Diagnostics.CollapsedGenes,
		"empty_kes", len(enr.EmptyKEs),
		"duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// stage runs fn inside a span and records its duration.
func (s *Service) stage(ctx context.Context, name, spanName string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, tracerName, spanName)
	defer span.End()

	err := fn(ctx)
	s.stages.RecordStage(ctx, name, time.Since(start))
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetSpanOK(span)
	return nil
}

func (s *Service) resolveAOP(id string) (reference.AOP, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return reference.AOP{}, fmt.Errorf("%w: aop_id is required", ErrInvalidParameter)
	}
	aop, ok := s.ref.AOP(id)
	if !ok {
		return reference.AOP{}, fmt.Errorf("%w: %q", ErrUnknownAOP, id)
	}
	if !s.cfg.AOPEnabled(id) {
		return reference.AOP{}, fmt.Errorf("%w: %q", ErrAOPDisabled, id)
	}
	return aop, nil
}

func (s *Service) resolveParameters(req AnalyzeRequest) (Parameters, error) {
	a := s.cfg.Analysis
	p := Parameters{
		Columns:         req.Columns,
		PValueCutoff:    a.PValueCutoff,
		FDRSignificance: a.FDRSignificance,
	}
	if req.PValueCutoff != nil {
		p.PValueCutoff = *req.PValueCutoff
	}
	if !(p.PValueCutoff > 0 && p.PValueCutoff <= 1) {
		return p, fmt.Errorf("%w: got %v", significance.ErrInvalidCutoff, p.PValueCutoff)
	}

	threshold := req.LogFCThreshold
	if strings.TrimSpace(threshold) == "" {
		threshold = a.LogFCThreshold
	}
	policy, err := significance.ParsePolicy(threshold)
	if err != nil {
		return p, err
	}
	p.LogFCPolicy = policy

	alt := req.FisherAlternative
	if strings.TrimSpace(alt) == "" {
		alt = a.FisherAlternative
	}
	if p.FisherAlternative, err = stats.ParseAlternative(alt); err != nil {
		return p, err
	}
	if p.EmptyKEPolicy, err = enrichment.ParseEmptyPolicy(a.EmptyKEPolicy); err != nil {
		return p, err
	}
	if p.FDRSignificance <= 0 {
		p.FDRSignificance = network.DefaultFDRCutoff
	}
	return p, nil
}

func (s *Service) maxVolcanoPoints() int {
	if n := s.cfg.Analysis.MaxVolcanoPoints; n > 0 {
		return n
	}
	return DefaultMaxVolcanoPoints
}

func aopInfo(a reference.AOP) AOPInfo {
	return AOPInfo{ID: a.ID, Label: a.Label, KECount: len(a.KEs), KERCount: len(a.KERs)}
}

// ResolveColumns fills the column roles missing from sel, first from the
// demo configuration when demo is non-nil and then from detection.
func ResolveColumns(tbl *expression.Table, sel expression.ColumnSelection, demo *config.DemoDataset) expression.ColumnSelection {
	if demo != nil {
		sel = mergeSelection(sel, expression.ColumnSelection{
			ID:     demo.IDColumn,
			FC:     demo.FCColumn,
			PValue: demo.PValueColumn,
		})
	}
	return mergeSelection(sel, expression.DetectColumns(tbl).Selection())
}

// mergeSelection fills empty roles of sel from fallback.
func mergeSelection(sel, fallback expression.ColumnSelection) expression.ColumnSelection {
	return expression.ColumnSelection{
		ID:     cmp.Or(strings.TrimSpace(sel.ID), fallback.ID),
		FC:     cmp.Or(strings.TrimSpace(sel.FC), fallback.FC),
		PValue: cmp.Or(strings.TrimSpace(sel.PValue), fallback.PValue),
	}
}

func delimiterName(r rune) string {
	if r == '\t' {
		return "tab"
	}
	return "comma"
}

func countSignificant(rows []enrichment.Row, cutoff float64) int {
	n := 0
	for _, r := range rows {
		if r.FDR < cutoff {
			n++
		}
	}
	return n
}

// volcanoPoints returns up to limit genes, most significant first.
func volcanoPoints(records []expression.GeneRecord, cls *significance.Classification, limit int) []VolcanoPoint {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b expression.GeneRecord) int {
		return cmp.Or(cmp.Compare(a.PValue, b.PValue), strings.Compare(a.GeneID, b.GeneID))
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]VolcanoPoint, len(sorted))
	for i, r := range sorted {
		p := max(r.PValue, math.SmallestNonzeroFloat64)
		out[i] = VolcanoPoint{
			Gene:        r.GeneID,
			Log2FC:      r.Log2FC,
			NegLog10P:   -math.Log10(p),
			Direction:   significance.DirectionOf(r.Log2FC),
			Significant: cls != nil && cls.IsSignificant(r.GeneID),
		}
	}
	return out
}

func warnings(resp *AnalyzeResponse) []string {
	var out []string
	d := resp.Diagnostics
	if n := len(d.DroppedGenes); n > 0 {
		out = append(out, fmt.Sprintf("%d genes dropped for missing or invalid values", n))
	}
	if d.EmptyIDRows > 0 {
		out = append(out, fmt.Sprintf("%d rows had no gene identifier", d.EmptyIDRows))
	}
	if resp.Summary.SignificantGenes == 0 {
		out = append(out, "no significant genes found; check thresholds")
	}
	if n := len(resp.Summary.EmptyKEs); n > 0 {
		out = append(out, fmt.Sprintf("%d key events have no genes in this dataset", n))
	}
	if resp.Summary.TestedKEs == 0 {
		out = append(out, "no key event could be tested")
	}
	if resp.IDType.Mixed {
		out = append(out, "gene identifiers appear to mix naming schemes")
	}
	return out
}
