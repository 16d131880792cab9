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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/aopenrich/pkg/ux"
)

var errCatalogueMismatch = errors.New("configured AOPs are missing from the reference data")

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-data",
		Short: "Load the reference data and check it against the AOP catalogue",
		Long: "validate-data builds the reference data exactly as serve does and reports its size. " +
			"It fails when a file is missing or malformed, or when an enabled catalogue entry has no pathway in the data.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.newService(cmd)
			if err != nil {
				return err
			}
			ref := svc.Reference()
			out := cmd.OutOrStdout()

			sum := ref.Summary()
			fmt.Fprintf(out, "AOPs          %d\n", sum.AOPs)
			fmt.Fprintf(out, "Key events    %d\n", sum.KEs)
			fmt.Fprintf(out, "KERs          %d\n", sum.KERs)
			fmt.Fprintf(out, "Gene sets     %d\n", sum.GeneSets)
			fmt.Fprintf(out, "Unique genes  %d\n", sum.UniqueGenes)

			missing := 0
			for _, entry := range a.cfg.AOPs {
				if !entry.IsEnabled() {
					continue
				}
				if _, ok := ref.AOP(entry.ID); !ok {
					ux.Warning(cmd.ErrOrStderr(), fmt.Sprintf("%s is enabled but not in the reference data", entry.ID))
					missing++
				}
			}
			for _, info := range svc.AOPs() {
				pathway, _ := ref.AOP(info.ID)
				for _, ke := range pathway.KEs {
					if ref.GeneSetSize(ke) == 0 {
						ux.Warning(cmd.ErrOrStderr(), fmt.Sprintf("%s: %s has no reference genes", info.ID, ke))
					}
				}
			}
			if missing > 0 {
				return fmt.Errorf("%w: %d", errCatalogueMismatch, missing)
			}
			ux.Success(out, "Reference data is valid")
			return nil
		},
	}
}
