// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reference loads the static KE gene sets, AOP definitions and
// KE metadata that every enrichment run is tested against.
//
// A Reference is built once at startup with Build and then passed by
// pointer to the pipeline. It exposes read-only accessors only; callers
// receive copies of internal slices.
package reference

import (
	"slices"
	"strings"
)

// Reference is the immutable reference data set.
type Reference struct {
	geneSets map[string]map[string]struct{}
	sorted   map[string][]string
	aops     map[string]AOP
	order    []string
	keMeta   map[string]KEMetadata
}

// New assembles a Reference from in-memory data.
//
// Gene symbols are uppercased and deduplicated. AOP and KE slices are
// copied, so later changes by the caller have no effect.
func New(geneSets map[string][]string, aops []AOP, meta []KEMetadata) *Reference {
	r := &Reference{
		geneSets: make(map[string]map[string]struct{}, len(geneSets)),
		sorted:   make(map[string][]string, len(geneSets)),
		aops:     make(map[string]AOP, len(aops)),
		keMeta:   make(map[string]KEMetadata, len(meta)),
	}
	for ke, genes := range geneSets {
		set := make(map[string]struct{}, len(genes))
		for _, g := range genes {
			if g = strings.ToUpper(strings.TrimSpace(g)); g != "" {
				set[g] = struct{}{}
			}
		}
		if len(set) == 0 {
			continue
		}
		r.geneSets[ke] = set
		sorted := make([]string, 0, len(set))
		for g := range set {
			sorted = append(sorted, g)
		}
		slices.Sort(sorted)
		r.sorted[ke] = sorted
	}
	for _, aop := range aops {
		if _, dup := r.aops[aop.ID]; dup {
			continue
		}
		if aop.Label == "" {
			aop.Label = aop.ID
		}
		r.aops[aop.ID] = aop.clone()
		r.order = append(r.order, aop.ID)
	}
	for _, m := range meta {
		r.keMeta[m.ID] = m
	}
	return r
}

// GeneSet returns the sorted gene symbols mapped to a KE, or nil.
func (r *Reference) GeneSet(keID string) []string {
	return slices.Clone(r.sorted[keID])
}

// InGeneSet reports whether gene belongs to the KE's reference set.
func (r *Reference) InGeneSet(keID, gene string) bool {
	_, ok := r.geneSets[keID][gene]
	return ok
}

// GeneSetSize returns the number of reference genes mapped to a KE.
func (r *Reference) GeneSetSize(keID string) int {
	return len(r.geneSets[keID])
}

// AOP returns the pathway with the given id.
func (r *Reference) AOP(id string) (AOP, bool) {
	aop, ok := r.aops[id]
	if !ok {
		return AOP{}, false
	}
	return aop.clone(), true
}

// AOPs returns every pathway in load order.
func (r *Reference) AOPs() []AOP {
	out := make([]AOP, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.aops[id].clone())
	}
	return out
}

// KE returns metadata for a Key Event.
func (r *Reference) KE(id string) (KEMetadata, bool) {
	meta, ok := r.keMeta[id]
	return meta, ok
}

// KEMetadata returns metadata for every known KE, sorted by id.
func (r *Reference) KEMetadata() []KEMetadata {
	out := make([]KEMetadata, 0, len(r.keMeta))
	for _, m := range r.keMeta {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b KEMetadata) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Summary counts the loaded data.
func (r *Reference) Summary() Summary {
	genes := make(map[string]struct{})
	for _, set := range r.geneSets {
		for g := range set {
			genes[g] = struct{}{}
		}
	}
	kers := 0
	for _, aop := range r.aops {
		kers += len(aop.KERs)
	}
	return Summary{
		GeneSets:    len(r.geneSets),
		UniqueGenes: len(genes),
		AOPs:        len(r.aops),
		KEs:         len(r.keMeta),
		KERs:        kers,
	}
}
