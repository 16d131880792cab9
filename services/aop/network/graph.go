// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package network turns an AOP and its enrichment results into a
// node/edge structure for graph-drawing front ends.
package network

import (
	"github.com/AleutianAI/aopenrich/services/aop/significance"
)

// DefaultFDRCutoff marks a KE node significant when its FDR is below it.
const DefaultFDRCutoff = 0.05

// NodeTypeGene is the type of expanded gene nodes. KE nodes carry their
// KE type (MIE, intermediate, AO).
const NodeTypeGene = "gene"

// GeneNodePrefix is prepended to gene symbols to form gene node ids.
const GeneNodePrefix = "gene:"

// EdgeKind distinguishes topology edges from expansion edges.
type EdgeKind string

const (
	EdgeKER      EdgeKind = "ker"
	EdgeGeneLink EdgeKind = "gene-link"
)

// Node is a KE or gene vertex.
type Node struct {
	ID          string                 `json:"id"`
	Label       string                 `json:"label"`
	Type        string                 `json:"type"`
	Significant bool                   `json:"significant"`
	LogFC       *float64               `json:"logfc,omitempty"`
	FDR         *float64               `json:"fdr,omitempty"`
	PValue      *float64               `json:"pvalue,omitempty"`
	Overlap     int                    `json:"overlap_count,omitempty"`
	Direction   significance.Direction `json:"direction,omitempty"`
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

// Graph is the network payload for one analysis.
type Graph struct {
	AOPID string `json:"aop_id"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	// KEGenes lists, per expanded KE, the sorted genes of its reference
	// set that were present in the dataset.
	KEGenes map[string][]string `json:"ke_genes,omitempty"`
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// IsSignificant reports the significance flag of a node and whether the
// node exists.
func (g *Graph) IsSignificant(id string) (significant, ok bool) {
	n, ok := g.Node(id)
	return n.Significant, ok
}

// Count returns the number of nodes and edges of each kind.
func (g *Graph) Count() (keNodes, geneNodes, kerEdges, geneEdges int) {
	for _, n := range g.Nodes {
		if n.Type == NodeTypeGene {
			geneNodes++
		} else {
			keNodes++
		}
	}
	for _, e := range g.Edges {
		if e.Kind == EdgeKER {
			kerEdges++
		} else {
			geneEdges++
		}
	}
	return keNodes, geneNodes, kerEdges, geneEdges
}
