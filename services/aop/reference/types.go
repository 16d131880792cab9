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
	"slices"
	"strings"
)

// Reference file names. The column layout of each file is fixed.
const (
	FileKEPathway   = "KE-WP.csv"
	FilePathwayGene = "edges_wpid_to_gene.csv"
	FileGeneNodes   = "node_attributes.csv"
	FileAOPKEMap    = "aop_ke_map.csv"
	FileAOPKEREdges = "aop_ker_edges.csv"
	FileKEMetadata  = "ke_metadata.csv"
)

// RequiredFiles lists every file Build reads, in load order.
var RequiredFiles = []string{
	FileKEPathway,
	FilePathwayGene,
	FileGeneNodes,
	FileAOPKEMap,
	FileAOPKEREdges,
	FileKEMetadata,
}

// KEType classifies a Key Event within an AOP.
type KEType string

const (
	KETypeMIE          KEType = "MIE"
	KETypeIntermediate KEType = "intermediate"
	KETypeAO           KEType = "AO"
)

// ParseKEType maps the free-text type column to a KEType.
//
// Unrecognised values are treated as intermediate events.
func ParseKEType(s string) KEType {
	switch strings.ToUpper(strings.Join(strings.Fields(s), "")) {
	case "MIE", "MOLECULARINITIATINGEVENT":
		return KETypeMIE
	case "AO", "ADVERSEOUTCOME":
		return KETypeAO
	default:
		return KETypeIntermediate
	}
}

// KEMetadata describes one Key Event.
type KEMetadata struct {
	ID    string `json:"ke_id"`
	Title string `json:"title"`
	Type  KEType `json:"ke_type"`
}

// KER is a directed Key Event Relationship.
type KER struct {
	ID     string `json:"ker_id"`
	Source string `json:"source_ke"`
	Target string `json:"target_ke"`
}

// AOP is a static Adverse Outcome Pathway definition.
type AOP struct {
	ID    string   `json:"aop_id"`
	Label string   `json:"label"`
	KEs   []string `json:"kes"`
	KERs  []KER    `json:"kers"`
}

// HasKE reports whether keID belongs to the pathway.
func (a AOP) HasKE(keID string) bool {
	return slices.Contains(a.KEs, keID)
}

func (a AOP) clone() AOP {
	return AOP{
		ID:    a.ID,
		Label: a.Label,
		KEs:   slices.Clone(a.KEs),
		KERs:  slices.Clone(a.KERs),
	}
}

// Summary reports the size of loaded reference data.
type Summary struct {
	GeneSets    int `json:"gene_sets"`
	UniqueGenes int `json:"unique_genes"`
	AOPs        int `json:"aops"`
	KEs         int `json:"kes"`
	KERs        int `json:"kers"`
}
