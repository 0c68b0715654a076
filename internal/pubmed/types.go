// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"encoding/xml"
	"strings"
)

// eSearchResult is the esearch.fcgi response.
type eSearchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   int      `xml:"Count"`
	IDs     []string `xml:"IdList>Id"`
	Errors  []string `xml:"ERROR"`
}

// PubmedArticle is one record node of an efetch.fcgi response. Only the
// fields the pipeline reads are mapped.
type PubmedArticle struct {
	MedlineCitation MedlineCitation `xml:"MedlineCitation"`
}

// MedlineCitation carries the bibliographic core of a record.
type MedlineCitation struct {
	PMID    Text    `xml:"PMID"`
	Article Article `xml:"Article"`
}

// Article holds title, journal, authors, and abstract.
type Article struct {
	Journal      Journal     `xml:"Journal"`
	ArticleTitle Text        `xml:"ArticleTitle"`
	Abstract     *Abstract   `xml:"Abstract"`
	AuthorList   *AuthorList `xml:"AuthorList"`
}

// Journal holds the journal name and issue date.
type Journal struct {
	Title           Text         `xml:"Title"`
	ISOAbbreviation Text         `xml:"ISOAbbreviation"`
	JournalIssue    JournalIssue `xml:"JournalIssue"`
}

// JournalIssue holds the publication date of the issue.
type JournalIssue struct {
	PubDate PubDate `xml:"PubDate"`
}

// PubDate is either a structured date or a free-form MedlineDate
// (e.g. "2020 Jan-Feb").
type PubDate struct {
	Year        Text `xml:"Year"`
	MedlineDate Text `xml:"MedlineDate"`
}

// Abstract may be split into labelled sections.
type Abstract struct {
	Sections []AbstractText `xml:"AbstractText"`
}

// AbstractText is one abstract section.
type AbstractText struct {
	Label string
	Body  Text
}

// UnmarshalXML reads the Label attribute and the flattened section text.
func (a *AbstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			a.Label = strings.TrimSpace(attr.Value)
		}
	}
	return a.Body.UnmarshalXML(d, start)
}

// AuthorList lists authors in byline order.
type AuthorList struct {
	Authors []Author `xml:"Author"`
}

// Author is a person or a collective (group) author.
type Author struct {
	LastName       Text `xml:"LastName"`
	ForeName       Text `xml:"ForeName"`
	CollectiveName Text `xml:"CollectiveName"`
}

// Text is element content with any inline markup (<i>, <sup>, ...)
// flattened to its character data.
type Text string

// UnmarshalXML collects all character data beneath the element.
func (t *Text) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(v)
		}
	}
	*t = Text(b.String())
	return nil
}

// String returns the text with surrounding whitespace removed and inner
// whitespace runs collapsed.
func (t Text) String() string {
	return strings.Join(strings.Fields(string(t)), " ")
}
