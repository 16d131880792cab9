// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reference

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/aopenrich/services/aop/telemetry"
)

// Options customises Build.
type Options struct {
	// Labels maps AOP id to a display label. Missing ids use the id itself.
	Labels map[string]string

	// Logger receives load diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// tables holds the six raw reference files.
type tables struct {
	kePathway   *table
	pathwayGene *table
	geneNodes   *table
	aopKE       *table
	aopKER      *table
	keMeta      *table
}

// Build loads every reference file and assembles an immutable Reference.
//
// Description:
//
//	Reads the six reference files concurrently, then joins
//	KE -> pathway -> internal gene node -> gene symbol into one gene set
//	per KE. Pathway ids are trimmed and uppercased on both sides of the
//	join; gene node ids written as floats are coerced to integers; nodes
//	without a symbol are dropped; symbols are uppercased. AOP membership
//	keeps the first-appearance order of aop_ke_map.csv.
//
// Inputs:
//
//	ctx - Context for the underlying source reads.
//	src - Where the reference files live.
//	opts - Labels and logger.
//
// Outputs:
//
//	*Reference - Read-only reference data, safe to share between requests.
//	error - A *LoadError for any missing or malformed file, or
//	        ErrNoGeneSets / ErrNoAOPs when the data joins to nothing.
//
// Thread Safety: The returned Reference is never mutated and may be read
// concurrently without locking.
func Build(ctx context.Context, src Source, opts Options) (*Reference, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, span := telemetry.StartSpan(ctx, "aop.reference", "reference.Build",
		trace.WithAttributes(attribute.String("source", src.String())))
	defer span.End()

	raw, err := loadTables(ctx, src)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	ref := &Reference{
		geneSets: make(map[string]map[string]struct{}),
		sorted:   make(map[string][]string),
		aops:     make(map[string]AOP),
		keMeta:   make(map[string]KEMetadata),
	}

	dropped := ref.joinGeneSets(raw)
	if len(ref.geneSets) == 0 {
		err := &LoadError{File: FileKEPathway, Err: ErrNoGeneSets}
		telemetry.RecordError(span, err)
		return nil, err
	}

	ref.loadKEMetadata(raw.keMeta)
	ref.loadAOPs(raw.aopKE, opts.Labels)
	if len(ref.aops) == 0 {
		err := &LoadError{File: FileAOPKEMap, Err: ErrNoAOPs}
		telemetry.RecordError(span, err)
		return nil, err
	}
	orphanKERs := ref.loadKERs(raw.aopKER)

	sum := ref.Summary()
	telemetry.SetSpanAttributes(span,
		attribute.Int("gene_sets", sum.GeneSets),
		attribute.Int("aops", sum.AOPs),
	)
	logger.Info("reference data loaded",
		"source", src.String(),
		"gene_sets", sum.GeneSets,
		"unique_genes", sum.UniqueGenes,
		"aops", sum.AOPs,
		"kers", sum.KERs,
		"nodes_without_symbol", dropped,
		"kers_without_aop", orphanKERs,
	)
	return ref, nil
}

// loadTables reads all files in parallel and fails on the first error.
func loadTables(ctx context.Context, src Source) (*tables, error) {
	var raw tables
	g, gctx := errgroup.WithContext(ctx)

	load := func(dst **table, name string, cols ...string) {
		g.Go(func() error {
			t, err := readTable(gctx, src, name, cols...)
			if err != nil {
				return err
			}
			*dst = t
			return nil
		})
	}

	load(&raw.kePathway, FileKEPathway, "KE_ID", "WP_ID")
	load(&raw.pathwayGene, FilePathwayGene, "WPID", "gene_id")
	load(&raw.geneNodes, FileGeneNodes, "GeneID", "GeneName")
	load(&raw.aopKE, FileAOPKEMap, "AOP_ID", "KE_ID")
	load(&raw.aopKER, FileAOPKEREdges, "AOP_ID", "Source_KE", "Target_KE", "KER_ID")
	load(&raw.keMeta, FileKEMetadata, "KE_ID", "Title", "Type")

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &raw, nil
}

// joinGeneSets performs the KE -> pathway -> node -> symbol inner join.
// It returns the number of gene nodes dropped for lacking a symbol.
func (r *Reference) joinGeneSets(raw *tables) int {
	symbols := make(map[string]string, len(raw.geneNodes.rows))
	dropped := 0
	for _, row := range raw.geneNodes.rows {
		id := coerceID(raw.geneNodes.get(row, "GeneID"))
		name := strings.ToUpper(raw.geneNodes.get(row, "GeneName"))
		if id == "" || name == "" {
			dropped++
			continue
		}
		symbols[id] = name
	}

	pathwayNodes := make(map[string][]string)
	for _, row := range raw.pathwayGene.rows {
		wp := strings.ToUpper(raw.pathwayGene.get(row, "WPID"))
		node := coerceID(raw.pathwayGene.get(row, "gene_id"))
		if wp == "" || node == "" {
			continue
		}
		pathwayNodes[wp] = append(pathwayNodes[wp], node)
	}

	for _, row := range raw.kePathway.rows {
		ke := raw.kePathway.get(row, "KE_ID")
		wp := strings.ToUpper(raw.kePathway.get(row, "WP_ID"))
		if ke == "" || wp == "" {
			continue
		}
		for _, node := range pathwayNodes[wp] {
			symbol, ok := symbols[node]
			if !ok {
				continue
			}
			set := r.geneSets[ke]
			if set == nil {
				set = make(map[string]struct{})
				r.geneSets[ke] = set
			}
			set[symbol] = struct{}{}
		}
	}

	for ke, set := range r.geneSets {
		genes := make([]string, 0, len(set))
		for g := range set {
			genes = append(genes, g)
		}
		slices.Sort(genes)
		r.sorted[ke] = genes
	}
	return dropped
}

func (r *Reference) loadKEMetadata(t *table) {
	for _, row := range t.rows {
		id := t.get(row, "KE_ID")
		if id == "" {
			continue
		}
		if _, seen := r.keMeta[id]; seen {
			continue
		}
		r.keMeta[id] = KEMetadata{
			ID:    id,
			Title: t.get(row, "Title"),
			Type:  ParseKEType(t.get(row, "Type")),
		}
	}
}

func (r *Reference) loadAOPs(t *table, labels map[string]string) {
	for _, row := range t.rows {
		aopID := coerceID(t.get(row, "AOP_ID"))
		ke := t.get(row, "KE_ID")
		if aopID == "" || ke == "" {
			continue
		}
		aop, ok := r.aops[aopID]
		if !ok {
			label := labels[aopID]
			if label == "" {
				label = aopID
			}
			aop = AOP{ID: aopID, Label: label}
			r.order = append(r.order, aopID)
		}
		if !aop.HasKE(ke) {
			aop.KEs = append(aop.KEs, ke)
		}
		r.aops[aopID] = aop
	}
}

// loadKERs attaches relationships to known AOPs and returns how many
// referenced an AOP absent from the KE map.
func (r *Reference) loadKERs(t *table) int {
	orphans := 0
	for _, row := range t.rows {
		aopID := coerceID(t.get(row, "AOP_ID"))
		aop, ok := r.aops[aopID]
		if !ok {
			orphans++
			continue
		}
		ker := KER{
			ID:     coerceID(t.get(row, "KER_ID")),
			Source: t.get(row, "Source_KE"),
			Target: t.get(row, "Target_KE"),
		}
		if ker.Source == "" || ker.Target == "" {
			continue
		}
		aop.KERs = append(aop.KERs, ker)
		r.aops[aopID] = aop
	}
	return orphans
}
