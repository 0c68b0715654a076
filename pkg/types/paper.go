// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the clinical-digest pipeline.
// Implements: Paper, Result, and ProgressEvent (retrieval, summarization,
// and export stages) plus the configuration structs for every stage.
package types

import "fmt"

// Placeholders substituted for data the source record does not carry.
// Consumers never branch on absence of Title, Journal, or Year.
const (
	TitlePlaceholder   = "タイトル不明"
	JournalPlaceholder = "雑誌名不明"
	YearPlaceholder    = "年不明"

	// SummaryFailed replaces the summary when generation fails for one paper.
	SummaryFailed = "要約の生成に失敗しました。"
)

// sourceURLTemplate derives the canonical PubMed page from a PMID.
const sourceURLTemplate = "https://pubmed.ncbi.nlm.nih.gov/%s/"

// Paper holds the normalized metadata of one PubMed record.
type Paper struct {
	// ID is the PubMed identifier (PMID).
	ID string `json:"id" yaml:"id"`

	// Title is the article title or TitlePlaceholder.
	Title string `json:"title" yaml:"title"`

	// Authors lists at most the first five authors as "Last First".
	Authors []string `json:"authors" yaml:"authors"`

	// Journal is the journal title or JournalPlaceholder.
	Journal string `json:"journal" yaml:"journal"`

	// Year is the publication year as printed by the source, or YearPlaceholder.
	// It stays a string because PubMed dates are inconsistently formatted.
	Year string `json:"year" yaml:"year"`

	// Abstract is the abstract text; empty when the record has none.
	Abstract string `json:"abstract" yaml:"abstract"`

	// SourceURL is the PubMed page for this record.
	SourceURL string `json:"source_url" yaml:"source_url"`
}

// SourceURLFor returns the PubMed page URL for a PMID.
func SourceURLFor(id string) string {
	return fmt.Sprintf(sourceURLTemplate, id)
}

// Result is one Paper joined with its generated summary.
type Result struct {
	ID        string   `json:"id" yaml:"id"`
	Title     string   `json:"title" yaml:"title"`
	Authors   []string `json:"authors" yaml:"authors"`
	Journal   string   `json:"journal" yaml:"journal"`
	Year      string   `json:"year" yaml:"year"`
	SourceURL string   `json:"source_url" yaml:"source_url"`

	// Summary is the clinical summary or SummaryFailed.
	Summary string `json:"summary" yaml:"summary"`
}

// NewResult builds a Result from a paper and its summary.
func NewResult(p Paper, summary string) Result {
	authors := make([]string, len(p.Authors))
	copy(authors, p.Authors)
	return Result{
		ID:        p.ID,
		Title:     p.Title,
		Authors:   authors,
		Journal:   p.Journal,
		Year:      p.Year,
		SourceURL: p.SourceURL,
		Summary:   summary,
	}
}

// DisplayAuthors returns at most n authors and reports whether more exist.
func (r Result) DisplayAuthors(n int) ([]string, bool) {
	if len(r.Authors) <= n {
		return r.Authors, false
	}
	return r.Authors[:n], true
}

// Failed reports whether summarization failed for this result.
func (r Result) Failed() bool {
	return r.Summary == SummaryFailed
}

// ProgressEvent reports how far a pipeline run has progressed.
type ProgressEvent struct {
	// Fraction is in [0, 1].
	Fraction float64 `json:"fraction"`
	Message  string  `json:"message"`
}
