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
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"

	"github.com/AleutianAI/aopenrich/services/aop/config"
	"github.com/AleutianAI/aopenrich/services/aop/observability"
	"github.com/AleutianAI/aopenrich/services/aop/reference"
)

// openSource returns the configured reference source and a func that
// releases it.
func openSource(ctx context.Context, rc config.ReferenceConfig) (reference.Source, func() error, error) {
	switch rc.Source {
	case config.SourceGCS:
		var opts []option.ClientOption
		if rc.GCSEndpoint != "" {
			opts = append(opts, option.WithEndpoint(rc.GCSEndpoint), option.WithoutAuthentication())
		}
		src, err := reference.NewGCSSource(ctx, rc.GCSBucket, rc.GCSPrefix, opts...)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	default:
		return reference.NewDirSource(rc.Dir), func() error { return nil }, nil
	}
}

// loadReference builds the reference data described by cfg. metrics may
// be nil.
func loadReference(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*reference.Reference, error) {
	src, release, err := openSource(ctx, cfg.Reference)
	if err != nil {
		metrics.RecordReferenceLoad(err)
		return nil, fmt.Errorf("open reference source: %w", err)
	}
	defer func() {
		if cerr := release(); cerr != nil {
			logger.Warn("Failed to close reference source", "error", cerr)
		}
	}()

	start := time.Now()
	ref, err := reference.Build(ctx, src, reference.Options{
		Labels: cfg.Labels(),
		Logger: logger,
	})
	metrics.RecordReferenceLoad(err)
	if err != nil {
		return nil, err
	}

	sum := ref.Summary()
	logger.Info("Reference data loaded",
		"source", src.String(),
		"aops", sum.AOPs,
		"gene_sets", sum.GeneSets,
		"unique_genes", sum.UniqueGenes,
		"duration_ms", time.Since(start).Milliseconds())
	return ref, nil
}
