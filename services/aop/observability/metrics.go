// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability exposes Prometheus metrics for enrichment runs.
//
// # Description
//
// Counters and histograms cover:
//   - Analyses by outcome and their duration
//   - Reference data loads by outcome
//   - Genes dropped during normalization
//   - Requests rejected by the rate limiter
//   - API errors by error code
//
// Metrics are served from /metrics alongside the OTel Prometheus exporter.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "aopenrich"

// Outcome label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	// AnalysesTotal counts analyses. Labels: status.
	AnalysesTotal *prometheus.CounterVec

	// AnalysisDurationSeconds measures end-to-end analysis time.
	AnalysisDurationSeconds prometheus.Histogram

	// ReferenceLoadsTotal counts reference builds. Labels: status.
	ReferenceLoadsTotal *prometheus.CounterVec

	// GenesDroppedTotal counts genes removed for lacking valid values.
	GenesDroppedTotal prometheus.Counter

	// RateLimitedTotal counts rejected requests. Labels: route.
	RateLimitedTotal *prometheus.CounterVec

	// ErrorsTotal counts API errors. Labels: code.
	ErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is set by InitMetrics.
var DefaultMetrics *Metrics

// InitMetrics registers the metrics with the default Prometheus registry.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *Metrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics registers the metrics with reg. Tests pass an isolated
// prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AnalysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "analyses_total",
				Help:      "Total enrichment analyses by outcome",
			},
			[]string{"status"},
		),
		AnalysisDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "analysis_duration_seconds",
				Help:      "End-to-end enrichment analysis duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		ReferenceLoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reference_loads_total",
				Help:      "Reference data builds by outcome",
			},
			[]string{"status"},
		),
		GenesDroppedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "genes_dropped_total",
				Help:      "Genes dropped during normalization for lacking valid values",
			},
		),
		RateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "rate_limited_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "errors_total",
				Help:      "API errors by error code",
			},
			[]string{"code"},
		),
	}
}

// RecordAnalysis records one finished analysis. Nil-safe.
func (m *Metrics) RecordAnalysis(err error, d time.Duration) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.AnalysesTotal.WithLabelValues(status).Inc()
	m.AnalysisDurationSeconds.Observe(d.Seconds())
}

// RecordReferenceLoad records a reference build outcome. Nil-safe.
func (m *Metrics) RecordReferenceLoad(err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.ReferenceLoadsTotal.WithLabelValues(status).Inc()
}

// AddDroppedGenes adds n dropped genes. Nil-safe.
func (m *Metrics) AddDroppedGenes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.GenesDroppedTotal.Add(float64(n))
}

// RecordRateLimited counts a rejected request. Nil-safe.
func (m *Metrics) RecordRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(route).Inc()
}

// RecordError counts an API error by code. Nil-safe.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(code).Inc()
}
