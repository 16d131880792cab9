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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/aopenrich/pkg/logging"
	"github.com/AleutianAI/aopenrich/pkg/ux"
	"github.com/AleutianAI/aopenrich/services/aop"
	"github.com/AleutianAI/aopenrich/services/aop/config"
)

// noConfig marks commands that run without loading the configuration.
const noConfig = "no-config"

// app holds state shared by every command.
type app struct {
	configPath string
	logLevel   string
	logJSON    bool
	logDir     string

	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "aopenrich",
		Short:         "AOP key event enrichment for gene expression data",
		Long:          "aopenrich maps differential expression results onto Adverse Outcome Pathway key events and tests each for enrichment of significant genes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to the YAML config (default $"+config.EnvConfigPath+")")
	flags.StringVar(&a.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	flags.BoolVar(&a.logJSON, "log-json", false, "Write console logs as JSON")
	flags.StringVar(&a.logDir, "log-dir", "", "Also write JSON logs to this directory")

	root.AddCommand(
		newServeCmd(a),
		newAnalyzeCmd(a),
		newPreviewCmd(a),
		newAOPsCmd(a),
		newValidateCmd(a),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  a.logDir,
		Service: "aopenrich",
		JSON:    a.logJSON,
		Output:  cmd.ErrOrStderr(),
	})
	a.logger.Install()
	ux.InitPersonality()

	if cmd.Annotations[noConfig] != "" {
		return nil
	}
	a.cfg, err = config.Load(a.configPath)
	return err
}

func (a *app) close() error {
	if a.logger == nil {
		return nil
	}
	return a.logger.Close()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{noConfig: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "aopenrich %s\n", aop.ServiceVersion)
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Manage the configuration file",
		Annotations: map[string]string{noConfig: "true"},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write the default configuration",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{noConfig: "true"},
		RunE: func(c *cobra.Command, args []string) error {
			path := "aopenrich.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			ux.Success(c.OutOrStdout(), "Wrote "+path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
