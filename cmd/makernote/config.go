// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/deanh/wheresmy/makernote"
	"github.com/spf13/viper"
)

const envPrefix = "WHERESMY"

const (
	outputAuto  = "auto"
	outputJSON  = "json"
	outputTable = "table"
)

// cliConfig holds the settings read from flags, environment and config file.
type cliConfig struct {
	Rules    string `mapstructure:"rules"`
	Output   string `mapstructure:"output"`
	LogLevel string `mapstructure:"log_level"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("output", outputAuto)
	v.SetDefault("log_level", "warn")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return v
}

// loadConfig reads the config file, if any. An explicit file must exist.
// Without one, makernote.{toml,yaml,json} is looked up in the working directory
// and in $HOME/.config/wheresmy.
func loadConfig(v *viper.Viper, filename string) (cliConfig, error) {
	if filename != "" {
		v.SetConfigFile(filename)
	} else {
		v.SetConfigName("makernote")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/wheresmy")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if filename != "" || !errors.As(err, &notFound) {
			return cliConfig{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cliConfig{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	switch cfg.Output {
	case outputAuto, outputJSON, outputTable:
	default:
		return cliConfig{}, fmt.Errorf("invalid output %q, must be one of %s, %s or %s", cfg.Output, outputAuto, outputJSON, outputTable)
	}

	return cfg, nil
}

// rules returns the embedded rules unless a rules file is configured.
func (cfg cliConfig) rules() (*makernote.Rules, error) {
	if cfg.Rules == "" {
		return makernote.DefaultRules(), nil
	}
	f, err := os.Open(cfg.Rules)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rules, err := makernote.LoadRules(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Rules, err)
	}
	return rules, nil
}
