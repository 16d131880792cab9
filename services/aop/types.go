// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package aop

import (
	"time"

	"github.com/AleutianAI/aopenrich/services/aop/enrichment"
	"github.com/AleutianAI/aopenrich/services/aop/expression"
	"github.com/AleutianAI/aopenrich/services/aop/network"
	"github.com/AleutianAI/aopenrich/services/aop/reference"
	"github.com/AleutianAI/aopenrich/services/aop/significance"
	"github.com/AleutianAI/aopenrich/services/aop/stats"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the user-facing message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details carries the technical message (optional).
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	Ready     bool              `json:"ready"`
	Reference reference.Summary `json:"reference"`
}

// AOPInfo describes one selectable pathway.
type AOPInfo struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	KECount  int    `json:"ke_count"`
	KERCount int    `json:"ker_count"`
}

// ExperimentMetadata is echoed back with the analysis. It is never stored.
type ExperimentMetadata struct {
	DatasetID   string    `json:"dataset_id,omitempty" form:"dataset_id" binding:"max=200"`
	Stressor    string    `json:"stressor,omitempty" form:"stressor" binding:"max=200"`
	Dosing      string    `json:"dosing,omitempty" form:"dosing" binding:"max=200"`
	Owner       string    `json:"owner,omitempty" form:"owner" binding:"max=200"`
	Description string    `json:"description,omitempty" form:"description" binding:"max=2000"`
	Filename    string    `json:"filename,omitempty" form:"-"`
	UploadedAt  time.Time `json:"upload_timestamp" form:"-"`
}

// AnalyzeRequest carries the per-request analysis parameters. Nil or
// empty fields fall back to the configured analysis defaults.
type AnalyzeRequest struct {
	AOPID             string
	Columns           expression.ColumnSelection
	PValueCutoff      *float64
	LogFCThreshold    string
	FisherAlternative string
	Expand            bool
	Metadata          ExperimentMetadata
}

// Parameters are the resolved settings an analysis ran with.
type Parameters struct {
	Columns           expression.ColumnSelection `json:"columns"`
	PValueCutoff      float64                    `json:"pvalue_cutoff"`
	LogFCPolicy       significance.Policy        `json:"logfc_threshold"`
	EffectiveLogFC    float64                    `json:"effective_logfc_threshold"`
	FisherAlternative stats.Alternative          `json:"fisher_alternative"`
	EmptyKEPolicy     enrichment.EmptyPolicy     `json:"empty_ke_policy"`
	FDRSignificance   float64                    `json:"fdr_significance"`
}

// Summary holds the headline counts of an analysis.
type Summary struct {
	InputRows        int      `json:"input_rows"`
	BackgroundSize   int      `json:"background_size"`
	PassingPValue    int      `json:"passing_pvalue"`
	SignificantGenes int      `json:"significant_genes"`
	TestedKEs        int      `json:"tested_kes"`
	SignificantKEs   int      `json:"significant_kes"`
	EmptyKEs         []string `json:"empty_kes"`
}

// VolcanoPoint is one gene on the volcano plot.
type VolcanoPoint struct {
	Gene        string                 `json:"gene"`
	Log2FC      float64                `json:"log2fc"`
	NegLog10P   float64                `json:"neg_log10_p"`
	Direction   significance.Direction `json:"direction"`
	Significant bool                   `json:"significant"`
}

// AnalyzeResponse is the full result of one analysis.
type AnalyzeResponse struct {
	AnalysisID  string                 `json:"analysis_id"`
	AOP         AOPInfo                `json:"aop"`
	Parameters  Parameters             `json:"parameters"`
	Metadata    ExperimentMetadata     `json:"metadata"`
	Summary     Summary                `json:"summary"`
	Diagnostics expression.Diagnostics `json:"diagnostics"`
	IDType      expression.IDTypeGuess `json:"id_type"`
	Results     []enrichment.Row       `json:"results"`
	Network     *network.Graph         `json:"network"`
	Volcano     []VolcanoPoint         `json:"volcano"`
	Warnings    []string               `json:"warnings,omitempty"`
}

// PreviewResponse describes an input table before analysis.
type PreviewResponse struct {
	Columns     []string                `json:"columns"`
	RowCount    int                     `json:"row_count"`
	Delimiter   string                  `json:"delimiter"`
	Head        []map[string]string     `json:"head"`
	Detected    expression.Detection    `json:"detected"`
	IDType      *expression.IDTypeGuess `json:"id_type,omitempty"`
	Diagnostics *expression.Diagnostics `json:"diagnostics,omitempty"`
	Volcano     []VolcanoPoint          `json:"volcano,omitempty"`
}

// AOPDetail is returned by GET /aops/:id.
type AOPDetail struct {
	AOPInfo
	KEs  []reference.KEMetadata `json:"kes"`
	KERs []reference.KER        `json:"kers"`
}
