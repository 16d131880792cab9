// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the aopenrich YAML configuration.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/AleutianAI/aopenrich/services/aop/telemetry"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Reference ReferenceConfig  `yaml:"reference"`
	Analysis  AnalysisConfig   `yaml:"analysis"`
	Upload    UploadConfig     `yaml:"upload"`
	AOPs      []AOPEntry       `yaml:"aops" validate:"dive"`
	DemoDir   string           `yaml:"demo_dir"`
	Demos     []DemoDataset    `yaml:"demos" validate:"dive"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	RateLimitRPS float64       `yaml:"rate_limit_rps" validate:"gte=0"` // 0 disables the limiter
	RateBurst    int           `yaml:"rate_burst" validate:"gte=0"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gte=0"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Reference source kinds.
const (
	SourceDir = "dir"
	SourceGCS = "gcs"
)

type ReferenceConfig struct {
	// Source is "dir" or "gcs".
	Source      string `yaml:"source" validate:"oneof=dir gcs"`
	Dir         string `yaml:"dir" validate:"required_if=Source dir"`
	GCSBucket   string `yaml:"gcs_bucket" validate:"required_if=Source gcs"`
	GCSPrefix   string `yaml:"gcs_prefix"`
	GCSEndpoint string `yaml:"gcs_endpoint"`
}

type AnalysisConfig struct {
	PValueCutoff float64 `yaml:"pvalue_cutoff" validate:"gt=0,lte=1"`

	// LogFCThreshold is a number in [0, 10] or "top N%".
	LogFCThreshold    string  `yaml:"logfc_threshold" validate:"logfc_policy"`
	FisherAlternative string  `yaml:"fisher_alternative" validate:"omitempty,oneof=two-sided greater less"`
	EmptyKEPolicy     string  `yaml:"empty_ke_policy" validate:"omitempty,oneof=exclude include"`
	FDRSignificance   float64 `yaml:"fdr_significance" validate:"gt=0,lte=1"`
	MaxVolcanoPoints  int     `yaml:"max_volcano_points" validate:"gte=0"`
}

type UploadConfig struct {
	MaxFileBytes      int64    `yaml:"max_file_bytes" validate:"gt=0"`
	AllowedExtensions []string `yaml:"allowed_extensions" validate:"min=1,dive,startswith=."`
}

// AOPEntry is one pathway in the selectable catalogue.
type AOPEntry struct {
	ID    string `yaml:"id" validate:"required"`
	Label string `yaml:"label"`

	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the pathway may be analysed.
func (a AOPEntry) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// DemoDataset is a bundled expression table. Empty column names are
// filled in by column detection.
type DemoDataset struct {
	Name         string `yaml:"name" json:"name" validate:"required"`
	File         string `yaml:"file" json:"-" validate:"required"`
	Label        string `yaml:"label" json:"label"`
	IDColumn     string `yaml:"id_column" json:"id_column,omitempty"`
	FCColumn     string `yaml:"fc_column" json:"fc_column,omitempty"`
	PValueColumn string `yaml:"pvalue_column" json:"pvalue_column,omitempty"`
}

// Labels maps AOP id to catalogue label.
func (c *Config) Labels() map[string]string {
	out := make(map[string]string, len(c.AOPs))
	for _, a := range c.AOPs {
		if a.Label != "" {
			out[a.ID] = a.Label
		}
	}
	return out
}

// AOPEnabled reports whether id may be analysed. With an empty catalogue
// every AOP in the reference data is allowed.
func (c *Config) AOPEnabled(id string) bool {
	if len(c.AOPs) == 0 {
		return true
	}
	for _, a := range c.AOPs {
		if a.ID == id {
			return a.IsEnabled()
		}
	}
	return false
}

// Demo returns the demo dataset with the given name.
func (c *Config) Demo(name string) (DemoDataset, bool) {
	for _, d := range c.Demos {
		if d.Name == name {
			return d, true
		}
	}
	return DemoDataset{}, false
}

func boolPtr(b bool) *bool { return &b }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			RateLimitRPS: 2,
			RateBurst:    5,
			CORSOrigins:  []string{"*"},
			ReadTimeout:  30 * time.Second,
		},
		Reference: ReferenceConfig{
			Source: SourceDir,
			Dir:    "data/reference",
		},
		Analysis: AnalysisConfig{
			PValueCutoff:      0.05,
			LogFCThreshold:    "1.0",
			FisherAlternative: "two-sided",
			EmptyKEPolicy:     "exclude",
			FDRSignificance:   0.05,
			MaxVolcanoPoints:  2000,
		},
		Upload: UploadConfig{
			MaxFileBytes:      10 << 20,
			AllowedExtensions: []string{".csv", ".tsv", ".txt"},
		},
		AOPs: []AOPEntry{
			{ID: "AOP:1", Label: "PXR activation leading to liver steatosis"},
			{ID: "AOP:2", Label: "DNA adduct formation leading to kidney failure", Enabled: boolPtr(false)},
			{ID: "AOP:3", Label: "Calcium overload in dopaminergic neurons of the substantia nigra leading to parkinsonian motor deficits", Enabled: boolPtr(false)},
			{ID: "AOP:4", Label: "Thyroid hormone-mediated neurodevelopmental toxicity", Enabled: boolPtr(false)},
			{ID: "AOP:5", Label: "Liver AOP network", Enabled: boolPtr(false)},
			{ID: "AOP:6", Label: "Brain AOP network", Enabled: boolPtr(false)},
			{ID: "AOP:7", Label: "Kidney AOP network", Enabled: boolPtr(false)},
			{ID: "AOP:8", Label: "Lung AOP network", Enabled: boolPtr(false)},
		},
		DemoDir: "data/demo",
		Demos: []DemoDataset{
			{Name: "pxr-to90137", File: "GSE90122_TO90137.tsv", Label: "PXR agonist 1 - GSE90122_TO90137"},
			{Name: "pxr-sr12813", File: "GSE90122_SR12813.tsv", Label: "PXR agonist 2 - GSE90122_SR12813"},
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}
