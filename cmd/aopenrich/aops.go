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
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/aopenrich/services/aop"
)

func newAOPsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aops [id]",
		Short: "List the selectable AOPs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newService(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				detail, err := svc.AOPDetail(args[0])
				if err != nil {
					return err
				}
				return writeAOPDetail(cmd.OutOrStdout(), detail)
			}
			return writeAOPs(cmd.OutOrStdout(), svc.AOPs())
		},
	}
	return cmd
}

func writeAOPs(w io.Writer, aops []aop.AOPInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKES\tKERS\tLABEL")
	for _, a := range aops {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", a.ID, a.KECount, a.KERCount, a.Label)
	}
	return tw.Flush()
}

func writeAOPDetail(w io.Writer, d *aop.AOPDetail) error {
	fmt.Fprintf(w, "%s  %s\n\n", d.ID, d.Label)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KE\tTYPE\tTITLE")
	for _, ke := range d.KEs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ke.ID, ke.Type, ke.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(d.KERs) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KER\tSOURCE\tTARGET")
	for _, ker := range d.KERs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ker.ID, ker.Source, ker.Target)
	}
	return tw.Flush()
}
