// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry tracing and metrics for the
// enrichment service.
//
// Init installs global TracerProvider and MeterProvider instances chosen by
// exporter name. Pipeline code then uses StartSpan and the instruments in
// Metrics without holding provider references.
//
// # Exporters
//
// Traces: "otlp" (gRPC, default), "stdout", or "none".
// Metrics: "prometheus" (default, served from MetricsHandler), "stdout", or "none".
//
// # Environment Variables
//
//   - AOPENRICH_ENV: deployment environment (default: development)
//   - OTEL_TRACES_EXPORTER: trace exporter name
//   - OTEL_METRICS_EXPORTER: metric exporter name
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
