// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export renders pipeline results as a single Markdown document.
// Render is pure; Save is the only function that touches the filesystem.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/pdiddy/clinical-digest/pkg/types"
)

// MediaType is the content type of a rendered document.
const MediaType = "text/markdown; charset=utf-8"

const (
	// displayAuthors is how many authors each section names.
	displayAuthors = 3

	// etAl follows the author list when more authors exist.
	etAl = " ほか"

	headerTimeLayout   = "2006年01月02日 15:04"
	filenameTimeLayout = "20060102_1504"
	filenamePrefix     = "RT-LitSearch"
)

// ErrEmptyDocument is returned by Save when there is nothing to write.
var ErrEmptyDocument = errors.New("empty document")

// Lines ending in two spaces are Markdown hard breaks.
var documentTmpl = template.Must(template.New("document").Parse(`# RT-LitSearch 検索結果

**検索キーワード:** {{.Query}}  
**検索日時:** {{.GeneratedAt}}  
**件数:** {{len .Sections}}件

---
{{range .Sections}}## {{.Index}}. {{.Title}}

**著者:** {{.Authors}}  
**雑誌:** {{.Journal}} ({{.Year}})  
**PubMed URL:** {{.SourceURL}}

### 📋 臨床向け要約
{{.Summary}}

---
{{end}}`))

type document struct {
	Query       string
	GeneratedAt string
	Sections    []section
}

type section struct {
	Index     int
	Title     string
	Authors   string
	Journal   string
	Year      string
	SourceURL string
	Summary   string
}

// Render returns the Markdown document for results. The output depends only
// on its arguments. It returns "" if the document cannot be built.
func Render(results []types.Result, query string, generatedAt time.Time) string {
	doc := document{
		Query:       query,
		GeneratedAt: generatedAt.Format(headerTimeLayout),
		Sections:    make([]section, len(results)),
	}
	for i, r := range results {
		doc.Sections[i] = section{
			Index:     i + 1,
			Title:     r.Title,
			Authors:   AuthorLine(r),
			Journal:   r.Journal,
			Year:      r.Year,
			SourceURL: r.SourceURL,
			Summary:   r.Summary,
		}
	}

	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, doc); err != nil {
		return ""
	}
	return buf.String()
}

// AuthorLine joins the first three authors, marking any remainder.
func AuthorLine(r types.Result) string {
	authors, more := r.DisplayAuthors(displayAuthors)
	line := strings.Join(authors, ", ")
	if more {
		line += etAl
	}
	return line
}

// Filename names the document for query generated at t.
func Filename(query string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s.md", filenamePrefix, sanitize(query), t.Format(filenameTimeLayout))
}

// sanitize replaces spaces with underscores and drops characters that are
// unsafe in filenames.
func sanitize(query string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(query) {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '　':
			b.WriteRune('_')
		case strings.ContainsRune(`/\:*?"<>|`, r):
			continue
		case r < 0x20:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Save writes doc into dir under Filename(query, t) and returns the path.
func Save(dir, query, doc string, t time.Time) (string, error) {
	if doc == "" {
		return "", ErrEmptyDocument
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, Filename(query, t))
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
