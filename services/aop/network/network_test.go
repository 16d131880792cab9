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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/aopenrich/services/aop/enrichment"
	"github.com/AleutianAI/aopenrich/services/aop/expression"
	"github.com/AleutianAI/aopenrich/services/aop/reference"
	"github.com/AleutianAI/aopenrich/services/aop/significance"
)

func fixture(t *testing.T) (reference.AOP, *reference.Reference, []expression.GeneRecord, *significance.Classification) {
	t.Helper()
	aop := reference.AOP{
		ID:  "1",
		KEs: []string{"KE 1", "KE 2", "KE 3"},
		KERs: []reference.KER{
			{ID: "10", Source: "KE 1", Target: "KE 2"},
			{ID: "11", Source: "KE 2", Target: "KE 3"},
			{ID: "12", Source: "KE 3", Target: "KE 99"},
		},
	}
	ref := reference.New(
		map[string][]string{
			"KE 1": {"TP53", "MDM2", "CDKN1A"},
			"KE 2": {"CDKN1A", "BAX"},
			"KE 3": {"UNMEASURED"},
		},
		[]reference.AOP{aop},
		[]reference.KEMetadata{
			{ID: "KE 1", Title: "DNA damage", Type: reference.KETypeMIE},
			{ID: "KE 3", Title: "Tumour", Type: reference.KETypeAO},
		},
	)
	records := []expression.GeneRecord{
		{GeneID: "BAX", Log2FC: -0.2, PValue: 0.4},
		{GeneID: "CDKN1A", Log2FC: 2.5, PValue: 0.001},
		{GeneID: "MDM2", Log2FC: -1.8, PValue: 0.01},
		{GeneID: "TP53", Log2FC: 0.1, PValue: 0.9},
	}
	policy, err := significance.Fixed(1)
	require.NoError(t, err)
	cls, err := significance.Classify(records, 0.05, policy)
	require.NoError(t, err)
	return aop, ref, records, cls
}

func rows() []enrichment.Row {
	return []enrichment.Row{
		{KEID: "KE 2", FDR: 0.05, PValue: 0.05, OverlapCount: 1},
		{KEID: "KE 1", FDR: 0.0499, PValue: 0.01, OverlapCount: 2},
		{KEID: "KE 3", FDR: 1, PValue: 1},
	}
}

func TestAssemble(t *testing.T) {
	aop, ref, _, _ := fixture(t)
	g := Assemble(aop, rows(), ref, 0)

	require.Len(t, g.Nodes, 3)
	assert.Equal(t, []string{"KE 1", "KE 2", "KE 3"}, []string{g.Nodes[0].ID, g.Nodes[1].ID, g.Nodes[2].ID})

	ke1 := g.Nodes[0]
	assert.Equal(t, "DNA damage", ke1.Label)
	assert.Equal(t, "MIE", ke1.Type)
	assert.True(t, ke1.Significant)
	require.NotNil(t, ke1.FDR)
	assert.Equal(t, 0.0499, *ke1.FDR)
	assert.Nil(t, ke1.LogFC)

	ke2 := g.Nodes[1]
	assert.Equal(t, "KE 2", ke2.Label)
	assert.Equal(t, "intermediate", ke2.Type)
	assert.False(t, ke2.Significant, "FDR equal to the cutoff is not significant")

	assert.Equal(t, "AO", g.Nodes[2].Type)

	assert.Equal(t, []Edge{
		{ID: "KER:10", Source: "KE 1", Target: "KE 2", Kind: EdgeKER},
		{ID: "KER:11", Source: "KE 2", Target: "KE 3", Kind: EdgeKER},
	}, g.Edges)
	assert.Empty(t, g.KEGenes)
}

func TestAssemble_KERsWithoutID(t *testing.T) {
	aop := reference.AOP{
		ID:  "1",
		KEs: []string{"KE 1", "KE 2", "KE 3"},
		KERs: []reference.KER{
			{Source: "KE 1", Target: "KE 2"},
			{Source: "KE 2", Target: "KE 3"},
			{Source: "KE 1", Target: "KE 2"},
		},
	}
	g := Assemble(aop, nil, nil, DefaultFDRCutoff)

	assert.Equal(t, []Edge{
		{ID: "KER:KE 1->KE 2", Source: "KE 1", Target: "KE 2", Kind: EdgeKER},
		{ID: "KER:KE 2->KE 3", Source: "KE 2", Target: "KE 3", Kind: EdgeKER},
	}, g.Edges)
}

func TestAssemble_SignificanceMatchesFDR(t *testing.T) {
	aop, ref, _, _ := fixture(t)
	rs := rows()
	g := Assemble(aop, rs, ref, DefaultFDRCutoff)

	for _, r := range rs {
		sig, ok := g.IsSignificant(r.KEID)
		require.True(t, ok, r.KEID)
		assert.Equal(t, r.FDR < 0.05, sig, r.KEID)
	}

	_, ok := g.IsSignificant("KE 404")
	assert.False(t, ok)
}

func TestAssemble_MissingRows(t *testing.T) {
	aop, ref, _, _ := fixture(t)
	g := Assemble(aop, nil, ref, 0.1)
	for _, n := range g.Nodes {
		assert.False(t, n.Significant)
		assert.Nil(t, n.FDR)
	}

	g = Assemble(aop, rows(), nil, 0.1)
	assert.Equal(t, "KE 1", g.Nodes[0].Label)
	assert.True(t, g.Nodes[1].Significant, "custom cutoff applies")
}

func TestExpand(t *testing.T) {
	aop, ref, records, cls := fixture(t)
	base := Assemble(aop, rows(), ref, 0)

	g, err := Expand(base, aop, ref, records, cls)
	require.NoError(t, err)

	keNodes, geneNodes, kerEdges, geneEdges := g.Count()
	assert.Equal(t, 3, keNodes)
	assert.Equal(t, 4, geneNodes)
	assert.Equal(t, 2, kerEdges)
	assert.Equal(t, 5, geneEdges)

	cdkn1a, ok := g.Node("gene:CDKN1A")
	require.True(t, ok)
	assert.Equal(t, "CDKN1A", cdkn1a.Label)
	assert.Equal(t, NodeTypeGene, cdkn1a.Type)
	assert.True(t, cdkn1a.Significant)
	assert.Equal(t, significance.DirectionUp, cdkn1a.Direction)
	require.NotNil(t, cdkn1a.LogFC)
	assert.Equal(t, 2.5, *cdkn1a.LogFC)

	bax, _ := g.Node("gene:BAX")
	assert.False(t, bax.Significant)
	assert.Equal(t, significance.DirectionDown, bax.Direction)

	var links []string
	for _, e := range g.Edges {
		if e.Kind == EdgeGeneLink {
			links = append(links, e.Source+"|"+e.Target)
		}
	}
	assert.Equal(t, []string{
		"KE 1|gene:CDKN1A", "KE 1|gene:MDM2", "KE 1|gene:TP53",
		"KE 2|gene:BAX", "KE 2|gene:CDKN1A",
	}, links)

	assert.Equal(t, map[string][]string{
		"KE 1": {"CDKN1A", "MDM2", "TP53"},
		"KE 2": {"BAX", "CDKN1A"},
		"KE 3": {},
	}, g.KEGenes)

	assert.Len(t, base.Nodes, 3, "input graph is unchanged")
}

func TestExpand_Incremental(t *testing.T) {
	aop, ref, records, cls := fixture(t)
	base := Assemble(aop, rows(), ref, 0)

	one, err := Expand(base, aop, ref, records, cls, "KE 2")
	require.NoError(t, err)
	_, genes, _, links := one.Count()
	assert.Equal(t, 2, genes)
	assert.Equal(t, 2, links)

	both, err := Expand(one, aop, ref, records, cls, "KE 1")
	require.NoError(t, err)
	_, genes, _, links = both.Count()
	assert.Equal(t, 4, genes)
	assert.Equal(t, 5, links)

	all, err := Expand(base, aop, ref, records, cls, "KE 1", "KE 2")
	require.NoError(t, err)
	a, err := json.Marshal(both)
	require.NoError(t, err)
	b, err := json.Marshal(all)
	require.NoError(t, err)
	assert.JSONEq(t, string(b), string(a))

	again, err := Expand(both, aop, ref, records, cls, "KE 1")
	require.NoError(t, err)
	assert.Equal(t, both, again)
}

func TestExpand_Errors(t *testing.T) {
	aop, ref, records, cls := fixture(t)

	_, err := Expand(nil, aop, ref, records, cls)
	assert.ErrorIs(t, err, ErrNilGraph)

	_, err = Expand(Assemble(aop, nil, ref, 0), aop, ref, records, cls, "KE 99")
	assert.ErrorIs(t, err, ErrUnknownKE)
}

func TestExpand_NilClassification(t *testing.T) {
	aop, ref, records, _ := fixture(t)
	g, err := Expand(Assemble(aop, nil, ref, 0), aop, ref, records, nil, "KE 1")
	require.NoError(t, err)
	for _, n := range g.Nodes {
		assert.False(t, n.Significant, n.ID)
	}
}

func TestGraph_JSON(t *testing.T) {
	aop, ref, _, _ := fixture(t)
	g := Assemble(aop, rows(), ref, 0)
	b, err := json.Marshal(g)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	nodes := decoded["nodes"].([]any)
	first := nodes[0].(map[string]any)
	assert.Equal(t, "KE 1", first["id"])
	assert.Equal(t, true, first["significant"])
	assert.NotContains(t, first, "logfc")

	edges := decoded["edges"].([]any)
	assert.Equal(t, "ker", edges[0].(map[string]any)["kind"])
	assert.NotContains(t, decoded, "ke_genes")
}
