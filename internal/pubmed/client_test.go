// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/clinical-digest/internal/httputil"
	"github.com/pdiddy/clinical-digest/pkg/types"
)

// --- fake E-utilities server ---

type fakeEutils struct {
	mu           sync.Mutex
	searchStatus int
	searchBody   string
	fetchStatus  int
	fetchBody    string
	requests     []*url.URL
}

func (f *fakeEutils) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL)
	f.mu.Unlock()

	status, body := http.StatusNotFound, ""
	switch {
	case strings.HasSuffix(r.URL.Path, "/esearch.fcgi"):
		status, body = f.searchStatus, f.searchBody
	case strings.HasSuffix(r.URL.Path, "/efetch.fcgi"):
		status, body = f.fetchStatus, f.fetchBody
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func (f *fakeEutils) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, u := range f.requests {
		out = append(out, u.Path[strings.LastIndex(u.Path, "/")+1:])
	}
	return out
}

func newTestClient(t *testing.T, f *fakeEutils, email string) *Client {
	t.Helper()
	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)

	cfg := types.LiteratureConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test/0.1"},
		BaseURL:    ts.URL + "/entrez/eutils",
		Email:      email,
		Tool:       "clinical-digest-test",
		MaxResults: 5,
	}
	hc := httputil.NewClient(cfg.Timeout, cfg.UserAgent, 0).WithHTTPClient(ts.Client())
	return NewWithHTTPClient(cfg, hc, zerolog.Nop())
}

func esearchXML(ids ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE eSearchResult PUBLIC "-//NLM//DTD esearch 20060628//EN" "https://eutils.ncbi.nlm.nih.gov/eutils/dtd/20060628/esearch.dtd">
<eSearchResult><Count>`)
	fmt.Fprintf(&b, "%d</Count><RetMax>%d</RetMax><RetStart>0</RetStart><IdList>", len(ids), len(ids))
	for _, id := range ids {
		b.WriteString("<Id>" + id + "</Id>")
	}
	b.WriteString(`</IdList></eSearchResult>`)
	return b.String()
}

func articleXML(pmid, title, year string) string {
	pmidNode := ""
	if pmid != "" {
		pmidNode = `<PMID Version="1">` + pmid + `</PMID>`
	}
	return `<PubmedArticle><MedlineCitation Status="MEDLINE" Owner="NLM">` + pmidNode + `
		<Article PubModel="Print">
			<Journal><Title>Journal of ` + title + `</Title>
				<JournalIssue><PubDate><Year>` + year + `</Year></PubDate></JournalIssue></Journal>
			<ArticleTitle>` + title + `</ArticleTitle>
			<Abstract><AbstractText>Abstract of ` + title + `.</AbstractText></Abstract>
			<AuthorList CompleteYN="Y"><Author ValidYN="Y"><LastName>Doe</LastName><ForeName>Jane</ForeName></Author></AuthorList>
		</Article></MedlineCitation><PubmedData><PublicationStatus>ppublish</PublicationStatus></PubmedData></PubmedArticle>`
}

func efetchXML(articles ...string) string {
	return `<?xml version="1.0" ?>
<!DOCTYPE PubmedArticleSet PUBLIC "-//NLM//DTD PubMedArticle, 1st January 2024//EN" "https://dtd.nlm.nih.gov/ncbi/pubmed/out/pubmed_240101.dtd">
<PubmedArticleSet>` + strings.Join(articles, "\n") + `</PubmedArticleSet>`
}

// --- tests ---

func TestSearchPapers_ThreeRecordsInOrder(t *testing.T) {
	f := &fakeEutils{
		searchBody: esearchXML("300", "200", "100"),
		fetchBody: efetchXML(
			articleXML("300", "Newest", "2025"),
			articleXML("200", "Middle", "2024"),
			articleXML("100", "Oldest", "2023"),
		),
	}
	c := newTestClient(t, f, "doc@example.com")

	papers := c.SearchPapers(context.Background(), "knee osteoarthritis exercise", 3)
	require.Len(t, papers, 3)

	assert.Equal(t, []string{"300", "200", "100"}, []string{papers[0].ID, papers[1].ID, papers[2].ID})
	assert.Equal(t, "Newest", papers[0].Title)
	assert.Equal(t, "Journal of Newest", papers[0].Journal)
	assert.Equal(t, "2025", papers[0].Year)
	assert.Equal(t, []string{"Doe Jane"}, papers[0].Authors)
	assert.Equal(t, "Abstract of Newest.", papers[0].Abstract)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/300/", papers[0].SourceURL)

	// Exactly one search and one batched fetch.
	assert.Equal(t, []string{"esearch.fcgi", "efetch.fcgi"}, f.paths())
}

func TestSearchPapers_RequestParameters(t *testing.T) {
	f := &fakeEutils{
		searchBody: esearchXML("2", "1"),
		fetchBody:  efetchXML(articleXML("2", "B", "2024"), articleXML("1", "A", "2023")),
	}
	c := newTestClient(t, f, "doc@example.com")

	c.SearchPapers(context.Background(), "knee osteoarthritis exercise", 2)
	require.Len(t, f.requests, 2)

	search := f.requests[0].Query()
	assert.Equal(t, "pubmed", search.Get("db"))
	assert.Equal(t, "knee osteoarthritis exercise", search.Get("term"))
	assert.Equal(t, "2", search.Get("retmax"))
	assert.Equal(t, "pub_date", search.Get("sort"))
	assert.Equal(t, "xml", search.Get("retmode"))
	assert.Equal(t, "doc@example.com", search.Get("email"))
	assert.Equal(t, "clinical-digest-test", search.Get("tool"))

	fetch := f.requests[1].Query()
	assert.Equal(t, "pubmed", fetch.Get("db"))
	assert.Equal(t, "2,1", fetch.Get("id"))
	assert.Equal(t, "xml", fetch.Get("retmode"))
	assert.Equal(t, "doc@example.com", fetch.Get("email"))
}

func TestSearchPapers_EmailOmittedWhenUnset(t *testing.T) {
	f := &fakeEutils{searchBody: esearchXML()}
	c := newTestClient(t, f, "")

	c.SearchPapers(context.Background(), "anything", 3)
	require.Len(t, f.requests, 1)
	_, present := f.requests[0].Query()["email"]
	assert.False(t, present)
}

func TestSearchPapers_ZeroHitsSkipsFetch(t *testing.T) {
	f := &fakeEutils{searchBody: esearchXML()}
	c := newTestClient(t, f, "")

	papers := c.SearchPapers(context.Background(), "no such thing", 5)
	assert.NotNil(t, papers)
	assert.Empty(t, papers)
	assert.Equal(t, []string{"esearch.fcgi"}, f.paths())
}

func TestSearchPapers_MalformedRecordDropped(t *testing.T) {
	f := &fakeEutils{
		searchBody: esearchXML("3", "2", "1"),
		fetchBody: efetchXML(
			articleXML("3", "First", "2025"),
			articleXML("", "Broken", "2024"),
			articleXML("1", "Third", "2023"),
		),
	}
	c := newTestClient(t, f, "")

	papers := c.SearchPapers(context.Background(), "q", 3)
	require.Len(t, papers, 2)
	assert.Equal(t, "3", papers[0].ID)
	assert.Equal(t, "1", papers[1].ID)
}

func TestSearchPapers_FailuresYieldEmpty(t *testing.T) {
	tests := []struct {
		name  string
		f     *fakeEutils
		stage string
	}{
		{
			name:  "esearch HTTP error",
			f:     &fakeEutils{searchStatus: http.StatusInternalServerError, searchBody: "boom"},
			stage: StageSearch,
		},
		{
			name:  "esearch bad XML",
			f:     &fakeEutils{searchBody: "<eSearchResult><IdList>"},
			stage: StageSearch,
		},
		{
			name:  "esearch error element",
			f:     &fakeEutils{searchBody: `<eSearchResult><ERROR>Invalid query</ERROR></eSearchResult>`},
			stage: StageSearch,
		},
		{
			name:  "efetch HTTP error",
			f:     &fakeEutils{searchBody: esearchXML("1"), fetchStatus: http.StatusTooManyRequests},
			stage: StageFetch,
		},
		{
			name:  "efetch bad XML",
			f:     &fakeEutils{searchBody: esearchXML("1"), fetchBody: "<PubmedArticleSet><PubmedArticle><MedlineCitation>"},
			stage: StageFetch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.f, "")

			papers := c.SearchPapers(context.Background(), "q", 3)
			assert.NotNil(t, papers)
			assert.Empty(t, papers)

			_, err := c.Search(context.Background(), "q", 3)
			var se *StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.stage, se.Stage)
		})
	}
}

func TestSearch_StatusErrorIsWrapped(t *testing.T) {
	f := &fakeEutils{searchStatus: http.StatusServiceUnavailable}
	c := newTestClient(t, f, "")

	_, err := c.Search(context.Background(), "q", 3)
	var status *httputil.StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusServiceUnavailable, status.StatusCode)
}

func TestSearch_DefaultMaxResults(t *testing.T) {
	f := &fakeEutils{searchBody: esearchXML()}
	c := newTestClient(t, f, "")

	_, err := c.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, "5", f.requests[0].Query().Get("retmax"))
}
