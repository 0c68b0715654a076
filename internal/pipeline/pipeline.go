// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates one search run: retrieve papers, summarize
// each in order, and report progress along the way. A run is sequential;
// the Pipeline itself holds no per-run state and may be shared by
// concurrent callers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/clinical-digest/internal/observability"
	"github.com/pdiddy/clinical-digest/pkg/types"
)

// ErrBlankQuery is returned by Run when the query is empty or whitespace.
// Presentation layers show MsgBlankQuery for it.
var ErrBlankQuery = errors.New("blank query")

// Progress milestones.
const (
	FractionSearching   = 0.10
	FractionSummarizing = 0.30
	fractionSpan        = 0.60
	FractionDone        = 1.0
)

// Status messages emitted with progress events.
const (
	MsgSearching   = "PubMedで論文を検索中..."
	MsgNoResults   = "該当する論文が見つかりませんでした。"
	MsgFound       = "%d件の論文が見つかりました。"
	MsgSummarizing = "論文 %d/%d を要約中..."
	MsgComplete    = "検索・要約が完了しました！"
	MsgBlankQuery  = "検索キーワードを入力してください。"
)

// Searcher retrieves papers for a query. It reports failure as an empty slice.
type Searcher interface {
	SearchPapers(ctx context.Context, query string, maxResults int) []types.Paper
}

// Summarizer produces one summary per paper. It reports failure with
// types.SummaryFailed.
type Summarizer interface {
	Summarize(ctx context.Context, p types.Paper) string
}

// ProgressFunc receives progress events for one run. It is called on the
// goroutine running the pipeline.
type ProgressFunc func(types.ProgressEvent)

// Pipeline runs searches against a Searcher and a Summarizer.
type Pipeline struct {
	searcher   Searcher
	summarizer Summarizer
	pacer      Pacer
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPacer sets the pause strategy between summaries.
func WithPacer(p Pacer) Option {
	return func(pl *Pipeline) { pl.pacer = p }
}

// WithMetrics records run and summary metrics to m.
func WithMetrics(m *observability.Metrics) Option {
	return func(pl *Pipeline) { pl.metrics = m }
}

// New creates a Pipeline. The default pacer waits one second between
// summaries.
func New(searcher Searcher, summarizer Summarizer, logger zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		searcher:   searcher,
		summarizer: summarizer,
		pacer:      FixedDelay(time.Second),
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run searches for query and summarizes up to maxResults papers in the
// order the search returned them. progress may be nil.
//
// A blank query returns ErrBlankQuery before any network call. A search
// with no hits returns an empty slice and a nil error. If ctx is cancelled,
// Run returns the results completed so far with ctx.Err(); a paper whose
// summary was in flight is left out.
func (p *Pipeline) Run(ctx context.Context, query string, maxResults int, progress ProgressFunc) ([]types.Result, error) {
	started := time.Now()
	emit := func(fraction float64, msg string) {
		if progress != nil {
			progress(types.ProgressEvent{Fraction: clamp(fraction), Message: msg})
		}
	}

	if strings.TrimSpace(query) == "" {
		p.metrics.ObserveRun(observability.OutcomeBlank, time.Since(started))
		return []types.Result{}, ErrBlankQuery
	}

	runID := uuid.NewString()
	log := observability.WithRunContext(p.logger, runID, query)
	log.Info().Int("max_results", maxResults).Msg("run started")

	emit(FractionSearching, MsgSearching)
	papers := p.searcher.SearchPapers(ctx, query, maxResults)
	p.metrics.ObservePapers(len(papers))

	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).Msg("run cancelled during search")
		p.metrics.ObserveRun(observability.OutcomeCancelled, time.Since(started))
		return []types.Result{}, err
	}
	if len(papers) == 0 {
		emit(FractionDone, MsgNoResults)
		log.Info().Msg("no papers found")
		p.metrics.ObserveRun(observability.OutcomeEmpty, time.Since(started))
		return []types.Result{}, nil
	}

	n := len(papers)
	emit(FractionSummarizing, fmt.Sprintf(MsgFound, n))

	results := make([]types.Result, 0, n)
	failed := 0
	for i, paper := range papers {
		if i > 0 {
			if err := p.pacer.Pause(ctx); err != nil {
				return p.cancelled(log, results, err, started)
			}
		}
		if err := ctx.Err(); err != nil {
			return p.cancelled(log, results, err, started)
		}

		emit(SummaryFraction(i+1, n), fmt.Sprintf(MsgSummarizing, i+1, n))
		summary := p.summarizer.Summarize(ctx, paper)
		// A summary interrupted by cancellation is dropped, not reported as failed.
		if err := ctx.Err(); err != nil {
			return p.cancelled(log, results, err, started)
		}
		result := types.NewResult(paper, summary)
		if result.Failed() {
			failed++
		}
		p.metrics.ObserveSummary(result.Failed())
		results = append(results, result)
	}

	emit(FractionDone, MsgComplete)
	log.Info().
		Int("papers", n).
		Int("summary_failures", failed).
		Dur("elapsed", time.Since(started)).
		Msg("run complete")
	p.metrics.ObserveRun(observability.OutcomeCompleted, time.Since(started))
	return results, nil
}

func (p *Pipeline) cancelled(log zerolog.Logger, results []types.Result, err error, started time.Time) ([]types.Result, error) {
	log.Warn().Err(err).Int("completed", len(results)).Msg("run cancelled")
	p.metrics.ObserveRun(observability.OutcomeCancelled, time.Since(started))
	return results, err
}

// SummaryFraction is the progress fraction reported before summarizing
// paper i of n (1-based).
func SummaryFraction(i, n int) float64 {
	if n <= 0 {
		return FractionSummarizing
	}
	return clamp(FractionSummarizing + fractionSpan*float64(i)/float64(n))
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
