// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pubmed retrieves literature metadata from the NCBI E-utilities API.
// A search is exactly two requests: esearch.fcgi for the newest matching
// PMIDs, then one batched efetch.fcgi for their records.
//
// The E-utilities documentation is at https://www.ncbi.nlm.nih.gov/books/NBK25499/.
package pubmed

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/clinical-digest/internal/httputil"
	"github.com/pdiddy/clinical-digest/pkg/types"
)

const (
	// DefaultBaseURL is the E-utilities endpoint root.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	database = "pubmed"

	// NCBI allows 3 requests/second without an API key and 10 with one.
	defaultRate    = 3.0
	defaultKeyRate = 10.0
)

// Stage names used in StageError.
const (
	StageSearch = "esearch"
	StageFetch  = "efetch"
)

// StageError reports which request of a search failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pubmed %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Client searches PubMed and parses the returned records.
type Client struct {
	cfg    types.LiteratureConfig
	http   *httputil.Client
	logger zerolog.Logger
}

// New creates a Client from cfg.
func New(cfg types.LiteratureConfig, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	ratePerSecond := cfg.RateLimit
	if ratePerSecond <= 0 {
		ratePerSecond = defaultRate
		if cfg.APIKey != "" {
			ratePerSecond = defaultKeyRate
		}
	}
	return &Client{
		cfg:    cfg,
		http:   httputil.NewClient(cfg.Timeout, cfg.UserAgent, ratePerSecond),
		logger: logger.With().Str("component", "pubmed").Logger(),
	}
}

// NewWithHTTPClient creates a Client that sends requests through hc.
// Tests use it to point the client at an httptest server.
func NewWithHTTPClient(cfg types.LiteratureConfig, hc *httputil.Client, logger zerolog.Logger) *Client {
	c := New(cfg, logger)
	c.http = hc
	return c
}

// SearchPapers returns up to maxResults papers for query, newest first.
// It never fails: any retrieval error is logged and yields an empty slice,
// the same outcome as a search with no hits.
func (c *Client) SearchPapers(ctx context.Context, query string, maxResults int) []types.Paper {
	papers, err := c.Search(ctx, query, maxResults)
	if err != nil {
		c.logger.Error().Err(err).Str("query", query).Msg("literature search failed")
		return []types.Paper{}
	}
	return papers
}

// Search is SearchPapers with the failure reported. Errors are *StageError.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]types.Paper, error) {
	if maxResults <= 0 {
		maxResults = c.cfg.MaxResults
	}

	ids, err := c.esearch(ctx, query, maxResults)
	if err != nil {
		return nil, &StageError{Stage: StageSearch, Err: err}
	}
	c.logger.Debug().Str("query", query).Int("ids", len(ids)).Msg("esearch complete")
	if len(ids) == 0 {
		return []types.Paper{}, nil
	}

	papers, err := c.efetch(ctx, ids)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Err: err}
	}
	c.logger.Debug().Int("requested", len(ids)).Int("parsed", len(papers)).Msg("efetch complete")
	return papers, nil
}

// esearch returns the PMIDs matching query sorted by publication date, newest first.
func (c *Client) esearch(ctx context.Context, query string, maxResults int) ([]string, error) {
	q := c.baseParams()
	q.Set("term", query)
	q.Set("retmax", strconv.Itoa(maxResults))
	q.Set("sort", "pub_date")

	body, err := c.http.Get(ctx, c.endpoint("esearch.fcgi", q))
	if err != nil {
		return nil, err
	}

	var result eSearchResult
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing esearch response: %w", err)
	}
	if len(result.IDs) == 0 && len(result.Errors) > 0 {
		return nil, fmt.Errorf("esearch error: %s", strings.Join(result.Errors, "; "))
	}

	ids := make([]string, 0, len(result.IDs))
	for _, id := range result.IDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// efetch retrieves all records for ids in one request and parses them in
// response order. Records without a PMID are dropped.
func (c *Client) efetch(ctx context.Context, ids []string) ([]types.Paper, error) {
	q := c.baseParams()
	q.Set("id", strings.Join(ids, ","))
	q.Set("rettype", "abstract")

	body, err := c.http.Get(ctx, c.endpoint("efetch.fcgi", q))
	if err != nil {
		return nil, err
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Entity = xml.HTMLEntity

	papers := make([]types.Paper, 0, len(ids))
	index := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing efetch response: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "PubmedArticle" {
			continue
		}

		var article PubmedArticle
		if err := dec.DecodeElement(&article, &start); err != nil {
			return nil, fmt.Errorf("parsing efetch record %d: %w", index, err)
		}

		paper, ok := ParseArticle(article)
		if !ok {
			c.logger.Warn().Int("record", index).Msg("dropping record without PMID")
		} else {
			papers = append(papers, paper)
		}
		index++
	}
	return papers, nil
}

// baseParams returns the parameters common to every request. The contact
// email and API key are sent only when configured.
func (c *Client) baseParams() url.Values {
	q := url.Values{}
	q.Set("db", database)
	q.Set("retmode", "xml")
	if c.cfg.Tool != "" {
		q.Set("tool", c.cfg.Tool)
	}
	if c.cfg.Email != "" {
		q.Set("email", c.cfg.Email)
	}
	if c.cfg.APIKey != "" {
		q.Set("api_key", c.cfg.APIKey)
	}
	return q
}

func (c *Client) endpoint(name string, q url.Values) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + name + "?" + q.Encode()
}
