// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Pipeline stage names used as the "stage" attribute.
const (
	StageNormalize = "normalize"
	StageClassify  = "classify"
	StageEnrich    = "enrich"
	StageNetwork   = "network"
)

// Metrics holds the OTel instruments recorded by the service.
//
// Description:
//
//	HTTP instruments are fed by MetricsMiddleware; pipeline instruments
//	are fed by the analysis service. All names carry the "aopenrich_"
//	prefix.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// HTTPRequestsTotal counts requests by method, route and status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records request latency in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPActiveRequests tracks in-flight requests.
	HTTPActiveRequests metric.Int64UpDownCounter

	// StageDuration records pipeline stage latency in seconds.
	StageDuration metric.Float64Histogram

	// GenesNormalized counts gene records produced by the normalizer.
	GenesNormalized metric.Int64Counter

	// KEsTested counts Fisher tests performed.
	KEsTested metric.Int64Counter
}

// NewMetrics registers every instrument on meter.
//
// Example:
//
//	m, err := telemetry.NewMetrics(otel.Meter("aopenrich"))
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"aopenrich_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"aopenrich_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"aopenrich_http_active_requests",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	m.StageDuration, err = meter.Float64Histogram(
		"aopenrich_pipeline_stage_duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create pipeline_stage_duration: %w", err)
	}

	m.GenesNormalized, err = meter.Int64Counter(
		"aopenrich_genes_normalized_total",
		metric.WithDescription("Gene records produced by normalization"),
		metric.WithUnit("{gene}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create genes_normalized_total: %w", err)
	}

	m.KEsTested, err = meter.Int64Counter(
		"aopenrich_kes_tested_total",
		metric.WithDescription("Fisher exact tests performed"),
		metric.WithUnit("{test}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kes_tested_total: %w", err)
	}

	return m, nil
}

// RecordStage records how long a pipeline stage took. Nil-safe.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// AddGenes adds n normalized genes. Nil-safe.
func (m *Metrics) AddGenes(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.GenesNormalized.Add(ctx, int64(n))
}

// AddTests adds n performed KE tests. Nil-safe.
func (m *Metrics) AddTests(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.KEsTested.Add(ctx, int64(n))
}
