// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

func newRulesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the heuristic rules in use as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := ctx.cfg.rules()
			if err != nil {
				return err
			}
			enc := toml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndentTables(true)
			return enc.Encode(rules)
		},
	}
}
