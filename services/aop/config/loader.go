// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/aopenrich/services/aop/significance"
)

// Environment variables consulted by Load.
const (
	EnvConfigPath = "AOPENRICH_CONFIG"
	EnvDataDir    = "AOPENRICH_DATA_DIR"
	EnvPort       = "AOPENRICH_PORT"
	EnvGCSBucket  = "AOPENRICH_GCS_BUCKET"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("logfc_policy", validateLogFCPolicy); err != nil {
		panic(fmt.Sprintf("register logfc_policy validation: %v", err))
	}
}

func validateLogFCPolicy(fl validator.FieldLevel) bool {
	_, err := significance.ParsePolicy(fl.Field().String())
	return err == nil
}

// Load reads the configuration.
//
// The path argument wins over AOPENRICH_CONFIG. With neither set the
// built-in defaults are used. Values in the file overlay the defaults,
// then environment overrides apply, then the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read the config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse the config file %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	seen := make(map[string]bool, len(c.Demos))
	for _, d := range c.Demos {
		if seen[d.Name] {
			return fmt.Errorf("%w: duplicate demo name %q", ErrInvalidConfig, d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		cfg.Reference.Source = SourceDir
		cfg.Reference.Dir = dir
	}
	if bucket := os.Getenv(EnvGCSBucket); bucket != "" {
		cfg.Reference.Source = SourceGCS
		cfg.Reference.GCSBucket = bucket
	}
	if port := os.Getenv(EnvPort); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a port", ErrInvalidConfig, EnvPort, port)
		}
		cfg.Server.Port = p
	}
	return nil
}

// WriteDefault writes the built-in configuration to path, creating
// parent directories.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
