// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package network

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/AleutianAI/aopenrich/services/aop/enrichment"
	"github.com/AleutianAI/aopenrich/services/aop/expression"
	"github.com/AleutianAI/aopenrich/services/aop/reference"
	"github.com/AleutianAI/aopenrich/services/aop/significance"
)

// Assemble builds the KE topology of aop annotated with enrichment rows.
//
// Description:
//
//	One node is emitted per KE in AOP order. Labels and types come from
//	the KE metadata, falling back to the KE id and "intermediate". A KE
//	node is significant when its row's FDR is strictly below fdrCutoff;
//	KEs without a row are never significant. One edge is emitted per KER
//	whose endpoints both belong to the AOP, in KER order, with id
//	"KER:<ker_id>". No layout is computed.
//
// Inputs:
//
//	aop - The selected pathway.
//	rows - Enrichment rows for aop, in any order.
//	ref - Reference data for KE metadata.
//	fdrCutoff - Significance cutoff; values <= 0 select DefaultFDRCutoff.
//
// Outputs:
//
//	*Graph - KE nodes and KER edges.
//
// Thread Safety: Pure function; safe for concurrent use.
func Assemble(aop reference.AOP, rows []enrichment.Row, ref *reference.Reference, fdrCutoff float64) *Graph {
	if fdrCutoff <= 0 {
		fdrCutoff = DefaultFDRCutoff
	}
	byKE := make(map[string]enrichment.Row, len(rows))
	for _, r := range rows {
		byKE[r.KEID] = r
	}

	g := &Graph{
		AOPID: aop.ID,
		Nodes: make([]Node, 0, len(aop.KEs)),
		Edges: make([]Edge, 0, len(aop.KERs)),
	}

	for _, keID := range aop.KEs {
		n := Node{ID: keID, Label: keID, Type: string(reference.KETypeIntermediate)}
		if ref != nil {
			if meta, ok := ref.KE(keID); ok {
				if meta.Title != "" {
					n.Label = meta.Title
				}
				if meta.Type != "" {
					n.Type = string(meta.Type)
				}
			}
		}
		if row, ok := byKE[keID]; ok {
			fdr, p := row.FDR, row.PValue
			n.FDR = &fdr
			n.PValue = &p
			n.Overlap = row.OverlapCount
			n.Significant = fdr < fdrCutoff
		}
		g.Nodes = append(g.Nodes, n)
	}

	seen := make(map[string]bool, len(aop.KERs))
	for _, ker := range aop.KERs {
		if !aop.HasKE(ker.Source) || !aop.HasKE(ker.Target) {
			continue
		}
		id := kerEdgeID(ker)
		if seen[id] {
			continue
		}
		seen[id] = true
		g.Edges = append(g.Edges, Edge{ID: id, Source: ker.Source, Target: ker.Target, Kind: EdgeKER})
	}
	return g
}

// kerEdgeID names a KER edge by its id, or by its endpoints when the
// relation has no id.
func kerEdgeID(ker reference.KER) string {
	if ker.ID == "" {
		return "KER:" + ker.Source + "->" + ker.Target
	}
	return "KER:" + ker.ID
}

// Expand adds gene nodes for the given KEs to a copy of g.
//
// Description:
//
//	For every expanded KE, each reference gene that is also present in
//	records becomes a gene node carrying its log2FC, direction and
//	significance, linked to the KE by a gene-link edge. A gene shared by
//	several KEs appears once with one edge per KE. KEs expanded by an
//	earlier call stay expanded. With no keIDs, every KE of aop is
//	expanded. Gene nodes follow the KE nodes sorted by id, and gene-link
//	edges are sorted by source then target.
//
// Inputs:
//
//	g - Graph returned by Assemble or a previous Expand.
//	aop - The pathway g was built from.
//	ref - Reference gene sets.
//	records - Normalized gene records of the dataset.
//	cls - Classification of records; nil marks every gene non-significant.
//	keIDs - KEs to expand.
//
// Outputs:
//
//	*Graph - A new graph; g is not modified.
//	error - ErrNilGraph, or ErrUnknownKE for a KE outside aop.
func Expand(g *Graph, aop reference.AOP, ref *reference.Reference, records []expression.GeneRecord, cls *significance.Classification, keIDs ...string) (*Graph, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	if len(keIDs) == 0 {
		keIDs = aop.KEs
	}

	expand := make(map[string]bool, len(keIDs)+len(g.KEGenes))
	for ke := range g.KEGenes {
		expand[ke] = true
	}
	for _, ke := range keIDs {
		if !aop.HasKE(ke) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKE, ke)
		}
		expand[ke] = true
	}

	byGene := make(map[string]expression.GeneRecord, len(records))
	for _, r := range records {
		byGene[r.GeneID] = r
	}

	out := &Graph{
		AOPID:   g.AOPID,
		Nodes:   make([]Node, 0, len(g.Nodes)),
		Edges:   make([]Edge, 0, len(g.Edges)),
		KEGenes: make(map[string][]string, len(expand)),
	}
	for _, n := range g.Nodes {
		if n.Type != NodeTypeGene {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, e := range g.Edges {
		if e.Kind == EdgeKER {
			out.Edges = append(out.Edges, e)
		}
	}

	genes := make(map[string]Node)
	var links []Edge
	for _, keID := range aop.KEs {
		if !expand[keID] {
			continue
		}
		present := []string{}
		if ref != nil {
			for _, gene := range ref.GeneSet(keID) {
				rec, ok := byGene[gene]
				if !ok {
					continue
				}
				present = append(present, gene)
				id := GeneNodePrefix + gene
				if _, dup := genes[id]; !dup {
					fc := rec.Log2FC
					genes[id] = Node{
						ID:          id,
						Label:       gene,
						Type:        NodeTypeGene,
						Significant: cls != nil && cls.IsSignificant(gene),
						LogFC:       &fc,
						Direction:   significance.DirectionOf(fc),
					}
				}
				links = append(links, Edge{
					ID:     keID + "->" + id,
					Source: keID,
					Target: id,
					Kind:   EdgeGeneLink,
				})
			}
		}
		out.KEGenes[keID] = present
	}

	geneNodes := make([]Node, 0, len(genes))
	for _, n := range genes {
		geneNodes = append(geneNodes, n)
	}
	slices.SortFunc(geneNodes, func(a, b Node) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(links, func(a, b Edge) int {
		return cmp.Or(strings.Compare(a.Source, b.Source), strings.Compare(a.Target, b.Target))
	})

	out.Nodes = append(out.Nodes, geneNodes...)
	out.Edges = append(out.Edges, links...)
	return out, nil
}
