// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the clinical-digest CLI. It searches
// PubMed, summarizes each paper in Japanese for clinicians, and exports the
// result as a Markdown document, either from the command line or over HTTP.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/clinical-digest/internal/config"
	"github.com/pdiddy/clinical-digest/internal/observability"
	"github.com/pdiddy/clinical-digest/internal/pipeline"
	"github.com/pdiddy/clinical-digest/internal/pubmed"
	"github.com/pdiddy/clinical-digest/internal/summarize"
	"github.com/pdiddy/clinical-digest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg and logger are populated by PersistentPreRunE before any command runs.
var (
	cfg    *types.Config
	logger zerolog.Logger
)

// rootCmd is the base command for the clinical-digest CLI.
var rootCmd = &cobra.Command{
	Use:   "clinical-digest",
	Short: "PubMed search with Japanese clinical summaries",
	Long: `clinical-digest searches PubMed for a keyword, asks an LLM for a short
Japanese summary of each paper aimed at orthopaedic and rehabilitation
clinicians, and exports the results as a Markdown document.

Credentials come from the environment (OPENAI_API_KEY, ANTHROPIC_API_KEY,
NIH_EMAIL, or the CLINICAL_DIGEST_ prefixed names), a .env file, a
clinical-digest.yaml config file, or the .secrets/ directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !needsConfig(cmd) {
			return nil
		}
		cfgFile, _ := cmd.Flags().GetString("config")
		envFile, _ := cmd.Flags().GetString("env-file")

		loaded, err := config.Load(viper.GetViper(), config.Options{
			ConfigFile: cfgFile,
			EnvFile:    envFile,
		}, observability.NewLogger(types.LoggingConfig{Level: "info", Format: "console"}))
		if err != nil {
			var missing *config.MissingError
			if errors.As(err, &missing) {
				return fmt.Errorf("%w\nset the API key in the environment, a .env file, or .secrets/", err)
			}
			return err
		}
		cfg = loaded
		logger = observability.NewLogger(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./clinical-digest.yaml or ~/.config/clinical-digest/clinical-digest.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file to load before reading the environment")
}

// needsConfig reports whether cmd runs against the loaded configuration.
func needsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfig"] == "true" || c.Name() == "help" || c.Name() == "completion" {
			return false
		}
	}
	return true
}

// newPipeline wires the PubMed client, the summarizer, and the pacer from cfg.
func newPipeline(metrics *observability.Metrics) (*pipeline.Pipeline, error) {
	searcher := pubmed.New(cfg.Literature, logger)
	summarizer, err := summarize.NewFromConfig(cfg.AI, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.New(searcher, summarizer, logger,
		pipeline.WithPacer(pipeline.FixedDelay(cfg.Pipeline.SummaryDelay)),
		pipeline.WithMetrics(metrics),
	), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
