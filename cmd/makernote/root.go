// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package main

import (
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type commandContext struct {
	v          *viper.Viper
	configFile string
	cfg        cliConfig
	logger     hclog.Logger
}

func (ctx *commandContext) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(ctx.v, ctx.configFile)
	if err != nil {
		return err
	}
	ctx.cfg = cfg
	ctx.logger = newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	return nil
}

func newLogger(w io.Writer, level string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "makernote",
		Level:  hclog.LevelFromString(level),
		Output: w,
	})
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{v: newViper()}

	rootCmd := &cobra.Command{
		Use:           "makernote",
		Short:         "Decode Apple iOS MakerNotes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.init(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFile, "config", "c", "", "Configuration file path")
	flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
	flags.String("rules", "", "Heuristic rules file (TOML), replaces the embedded rules")
	ctx.v.BindPFlag("log_level", flags.Lookup("log-level"))
	ctx.v.BindPFlag("rules", flags.Lookup("rules"))

	rootCmd.AddCommand(newDecodeCommand(ctx))
	rootCmd.AddCommand(newRulesCommand(ctx))

	return rootCmd
}
