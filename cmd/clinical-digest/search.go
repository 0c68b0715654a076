// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/clinical-digest/internal/export"
	"github.com/pdiddy/clinical-digest/internal/pipeline"
	"github.com/pdiddy/clinical-digest/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [keywords...]",
	Short: "Search PubMed and summarize each paper",
	Long: `Search queries PubMed for the keywords, summarizes each paper in Japanese
for clinicians, and writes the Markdown document to the output directory.
The result list is printed to stdout in the chosen format; progress goes
to stderr.`,
	Example: `  clinical-digest search knee osteoarthritis exercise
  clinical-digest search --max-results 3 --format json "ACL reconstruction"`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("max-results", 0, "number of papers to retrieve, 1-10 (default from config, 5)")
	searchCmd.Flags().String("format", formatTable, "stdout format: table, json, yaml, or markdown")
	searchCmd.Flags().String("out", "", "directory for the Markdown document (default from config)")
	searchCmd.Flags().Bool("no-save", false, "do not write the Markdown document")
	searchCmd.Flags().Bool("no-progress", false, "suppress progress output")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errors.New(pipeline.MsgBlankQuery)
	}

	maxResults, _ := cmd.Flags().GetInt("max-results")
	if maxResults == 0 {
		maxResults = cfg.Literature.MaxResults
	}
	if maxResults < 1 || maxResults > 10 {
		return fmt.Errorf("--max-results must be between 1 and 10, got %d", maxResults)
	}
	format, _ := cmd.Flags().GetString("format")
	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = cfg.OutputDir
	}
	noSave, _ := cmd.Flags().GetBool("no-save")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	p, err := newPipeline(nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress pipeline.ProgressFunc
	if !noProgress {
		progress = newProgressPrinter(cmd.ErrOrStderr()).print
	}

	results, err := p.Run(ctx, query, maxResults, progress)
	if err != nil {
		if errors.Is(err, pipeline.ErrBlankQuery) {
			return errors.New(pipeline.MsgBlankQuery)
		}
		if !errors.Is(err, context.Canceled) || len(results) == 0 {
			return err
		}
		color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "interrupted: keeping %d summarized paper(s)\n", len(results))
	}

	return report(cmd.OutOrStdout(), cmd.ErrOrStderr(), query, results, reportOptions{
		format: format,
		outDir: outDir,
		save:   !noSave,
		now:    time.Now(),
	})
}

type reportOptions struct {
	format string
	outDir string
	save   bool
	now    time.Time
}

// report prints results and, when asked, saves the Markdown document.
func report(stdout, stderr io.Writer, query string, results []types.Result, opts reportOptions) error {
	if len(results) == 0 {
		fmt.Fprintln(stderr, pipeline.MsgNoResults)
		return nil
	}

	if err := writeResults(stdout, opts.format, query, results, opts.now); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	if failed > 0 {
		color.New(color.FgYellow).Fprintf(stderr, "%d of %d summaries failed\n", failed, len(results))
	}

	if !opts.save {
		return nil
	}
	path, err := export.Save(opts.outDir, query, export.Render(results, query, opts.now), opts.now)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	color.New(color.FgGreen).Fprintf(stderr, "Saved %s\n", path)
	return nil
}
