// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"strings"
	"unicode"

	"github.com/pdiddy/clinical-digest/pkg/types"
)

// maxAuthors is how many author nodes a Paper keeps.
const maxAuthors = 5

// ParseArticle normalizes one record node into a Paper. Missing fields get
// the documented placeholders. It returns false when the record has no
// PMID; the caller drops such records.
func ParseArticle(a PubmedArticle) (types.Paper, bool) {
	citation := a.MedlineCitation
	id := citation.PMID.String()
	if id == "" {
		return types.Paper{}, false
	}

	article := citation.Article
	return types.Paper{
		ID:        id,
		Title:     orPlaceholder(article.ArticleTitle.String(), types.TitlePlaceholder),
		Authors:   parseAuthors(article.AuthorList),
		Journal:   orPlaceholder(journalName(article.Journal), types.JournalPlaceholder),
		Year:      orPlaceholder(publicationYear(article.Journal.JournalIssue.PubDate), types.YearPlaceholder),
		Abstract:  parseAbstract(article.Abstract),
		SourceURL: types.SourceURLFor(id),
	}, true
}

func orPlaceholder(s, placeholder string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func journalName(j Journal) string {
	if name := j.Title.String(); name != "" {
		return name
	}
	return j.ISOAbbreviation.String()
}

// publicationYear prefers the structured Year and falls back to the leading
// year of a MedlineDate such as "2020 Jan-Feb" or "2019-2020".
func publicationYear(d PubDate) string {
	if y := d.Year.String(); y != "" {
		return y
	}
	medline := d.MedlineDate.String()
	if len(medline) >= 4 && isDigits(medline[:4]) {
		return medline[:4]
	}
	return ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// parseAuthors formats the first maxAuthors author nodes as "Last First".
// Nodes with no name at all are skipped.
func parseAuthors(list *AuthorList) []string {
	if list == nil {
		return []string{}
	}
	nodes := list.Authors
	if len(nodes) > maxAuthors {
		nodes = nodes[:maxAuthors]
	}

	authors := make([]string, 0, len(nodes))
	for _, a := range nodes {
		if name := authorName(a); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

func authorName(a Author) string {
	last, fore := a.LastName.String(), a.ForeName.String()
	switch {
	case last != "" && fore != "":
		return last + " " + fore
	case last != "":
		return last
	case fore != "":
		return fore
	default:
		return a.CollectiveName.String()
	}
}

// parseAbstract joins abstract sections, prefixing labelled ones.
func parseAbstract(abs *Abstract) string {
	if abs == nil {
		return ""
	}
	var parts []string
	for _, sec := range abs.Sections {
		text := sec.Body.String()
		if text == "" {
			continue
		}
		if sec.Label != "" {
			text = sec.Label + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}
