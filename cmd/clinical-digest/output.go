// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/clinical-digest/internal/export"
	"github.com/pdiddy/clinical-digest/pkg/types"
)

// Output formats accepted by --format.
const (
	formatTable    = "table"
	formatJSON     = "json"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
)

// titleWidth bounds the title column of the table view.
const titleWidth = 60

// writeResults prints results to w in the given format.
func writeResults(w io.Writer, format, query string, results []types.Result, now time.Time) error {
	switch format {
	case formatTable, "":
		writeTable(w, results)
		return nil
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(results)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		return enc.Close()
	case formatMarkdown:
		_, err := io.WriteString(w, export.Render(results, query, now))
		return err
	default:
		return fmt.Errorf("unsupported format %q: use table, json, yaml, or markdown", format)
	}
}

func writeTable(w io.Writer, results []types.Result) {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{Borders: tw.BorderNone}),
	)

	rows := make([][]string, 0, len(results))
	for i, r := range results {
		status := "ok"
		if r.Failed() {
			status = "failed"
		}
		rows = append(rows, []string{
			fmt.Sprint(i + 1), r.ID, r.Year, shorten(r.Title, titleWidth), export.AuthorLine(r), status,
		})
	}
	table.Header([]string{"#", "PMID", "Year", "Title", "Authors", "Summary"})
	_ = table.Bulk(rows)
	_ = table.Render()
}

// shorten cuts s to at most n runes, marking the cut with "...".
func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

// progressPrinter writes pipeline progress lines to w.
type progressPrinter struct {
	w       io.Writer
	percent *color.Color
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, percent: color.New(color.FgCyan)}
}

func (p *progressPrinter) print(e types.ProgressEvent) {
	p.percent.Fprintf(p.w, "[%3.0f%%]", e.Fraction*100)
	fmt.Fprintf(p.w, " %s\n", e.Message)
}
