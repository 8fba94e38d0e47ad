// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the biokg-builder CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/biokg-builder/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	return secrets.Get(loadedSecrets, key, fallback)
}

// rootCmd is the base command for the biokg-builder CLI.
var rootCmd = &cobra.Command{
	Use:   "biokg-builder",
	Short: "Build biomedical knowledge graphs from PubMed literature",
	Long: `biokg-builder searches PubMed for a keyword, extracts causal relationships
between biomedical entities from article abstracts with a language model,
reconciles them into a deduplicated knowledge graph, and renders the result
as an interactive network with an analysis report.

Each stage is reachable on its own: search queries the literature, build runs
the full pipeline, and graph queries or exports a stored run.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/", os.Stderr)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./biokg-builder.yaml or ~/.config/biokg-builder/config.yaml)")
	rootCmd.PersistentFlags().String("output-dir", "output", "base directory for run artifacts")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("biokg-builder")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "biokg-builder"))
		}
	}

	viper.SetEnvPrefix("BIOKG_BUILDER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
