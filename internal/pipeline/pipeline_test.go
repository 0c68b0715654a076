// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/clinical-digest/internal/observability"
	"github.com/pdiddy/clinical-digest/pkg/types"
)

// --- fakes ---

type fakeSearcher struct {
	papers  []types.Paper
	calls   int
	lastMax int
}

func (f *fakeSearcher) SearchPapers(_ context.Context, _ string, maxResults int) []types.Paper {
	f.calls++
	f.lastMax = maxResults
	return f.papers
}

type fakeSummarizer struct {
	failOn map[string]bool
	calls  []string
	onCall func(n int)
}

func (f *fakeSummarizer) Summarize(_ context.Context, p types.Paper) string {
	f.calls = append(f.calls, p.ID)
	if f.onCall != nil {
		f.onCall(len(f.calls))
	}
	if f.failOn[p.ID] {
		return types.SummaryFailed
	}
	return "summary of " + p.ID
}

type countingPacer struct{ pauses int }

func (c *countingPacer) Pause(ctx context.Context) error {
	c.pauses++
	return ctx.Err()
}

func papers(ids ...string) []types.Paper {
	out := make([]types.Paper, len(ids))
	for i, id := range ids {
		out[i] = types.Paper{
			ID:        id,
			Title:     "Title " + id,
			Authors:   []string{"Doe Jane"},
			Journal:   "Journal",
			Year:      "2024",
			SourceURL: types.SourceURLFor(id),
		}
	}
	return out
}

func collect(events *[]types.ProgressEvent) ProgressFunc {
	return func(e types.ProgressEvent) { *events = append(*events, e) }
}

// --- tests ---

func TestRun_BlankQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		t.Run(fmt.Sprintf("%q", q), func(t *testing.T) {
			s := &fakeSearcher{papers: papers("1")}
			sum := &fakeSummarizer{}
			var events []types.ProgressEvent

			results, err := New(s, sum, zerolog.Nop(), WithPacer(NoDelay)).Run(context.Background(), q, 5, collect(&events))

			assert.ErrorIs(t, err, ErrBlankQuery)
			assert.NotNil(t, results)
			assert.Empty(t, results)
			assert.Zero(t, s.calls, "searcher must not be called")
			assert.Empty(t, sum.calls)
			assert.Empty(t, events)
		})
	}
}

func TestRun_ZeroHits(t *testing.T) {
	s := &fakeSearcher{}
	sum := &fakeSummarizer{}
	var events []types.ProgressEvent

	results, err := New(s, sum, zerolog.Nop(), WithPacer(NoDelay)).Run(context.Background(), "no such topic", 5, collect(&events))

	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Equal(t, 1, s.calls)
	assert.Empty(t, sum.calls, "summarizer must not be called")

	require.Len(t, events, 2)
	assert.Equal(t, types.ProgressEvent{Fraction: 0.10, Message: MsgSearching}, events[0])
	assert.Equal(t, types.ProgressEvent{Fraction: 1.0, Message: MsgNoResults}, events[1])
}

func TestRun_ThreePapers(t *testing.T) {
	s := &fakeSearcher{papers: papers("300", "200", "100")}
	sum := &fakeSummarizer{}
	pacer := &countingPacer{}
	var events []types.ProgressEvent

	results, err := New(s, sum, zerolog.Nop(), WithPacer(pacer)).
		Run(context.Background(), "knee osteoarthritis exercise", 3, collect(&events))

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 3, s.lastMax)
	for i, id := range []string{"300", "200", "100"} {
		assert.Equal(t, id, results[i].ID)
		assert.Equal(t, "summary of "+id, results[i].Summary)
		assert.False(t, results[i].Failed())
	}
	assert.Equal(t, []string{"300", "200", "100"}, sum.calls)
	assert.Equal(t, 2, pacer.pauses, "pacer runs between papers only")

	want := []types.ProgressEvent{
		{Fraction: 0.10, Message: MsgSearching},
		{Fraction: 0.30, Message: "3件の論文が見つかりました。"},
		{Fraction: 0.50, Message: "論文 1/3 を要約中..."},
		{Fraction: 0.70, Message: "論文 2/3 を要約中..."},
		{Fraction: 0.90, Message: "論文 3/3 を要約中..."},
		{Fraction: 1.0, Message: MsgComplete},
	}
	require.Len(t, events, len(want))
	for i := range want {
		assert.InDelta(t, want[i].Fraction, events[i].Fraction, 1e-9, "event %d", i)
		assert.Equal(t, want[i].Message, events[i].Message, "event %d", i)
	}
}

func TestRun_ProgressMonotonicAndBounded(t *testing.T) {
	for n := 1; n <= 10; n++ {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprint(i + 1)
		}
		var events []types.ProgressEvent
		_, err := New(&fakeSearcher{papers: papers(ids...)}, &fakeSummarizer{}, zerolog.Nop(), WithPacer(NoDelay)).
			Run(context.Background(), "q", n, collect(&events))
		require.NoError(t, err)

		prev := 0.0
		for _, e := range events {
			assert.GreaterOrEqual(t, e.Fraction, 0.0)
			assert.LessOrEqual(t, e.Fraction, 1.0)
			assert.GreaterOrEqual(t, e.Fraction, prev, "n=%d", n)
			prev = e.Fraction
		}
		assert.Equal(t, 1.0, events[len(events)-1].Fraction)
	}
}

func TestRun_SummaryFailureIsolated(t *testing.T) {
	sum := &fakeSummarizer{failOn: map[string]bool{"2": true}}

	results, err := New(&fakeSearcher{papers: papers("1", "2", "3")}, sum, zerolog.Nop(), WithPacer(NoDelay)).
		Run(context.Background(), "q", 3, nil)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "summary of 1", results[0].Summary)
	assert.Equal(t, types.SummaryFailed, results[1].Summary)
	assert.True(t, results[1].Failed())
	assert.Equal(t, "summary of 3", results[2].Summary)
	assert.Len(t, sum.calls, 3)
}

// cancellingPacer cancels the run on its nth pause.
type cancellingPacer struct {
	n      int
	pauses int
	cancel context.CancelFunc
}

func (c *cancellingPacer) Pause(ctx context.Context) error {
	c.pauses++
	if c.pauses == c.n {
		c.cancel()
	}
	return ctx.Err()
}

func TestRun_CancelledBetweenPapers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sum := &fakeSummarizer{}
	pacer := &cancellingPacer{n: 2, cancel: cancel}

	results, err := New(&fakeSearcher{papers: papers("1", "2", "3")}, sum, zerolog.Nop(), WithPacer(pacer)).
		Run(ctx, "q", 3, nil)

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	assert.Equal(t, "1", results[0].ID)
	assert.Equal(t, "2", results[1].ID)
	assert.Len(t, sum.calls, 2)
}

func TestRun_CancelledDuringSummaryDropsThatPaper(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Paper 2 is interrupted mid-request and comes back as a failure, as a
	// real backend's aborted call does.
	sum := &fakeSummarizer{
		failOn: map[string]bool{"2": true},
		onCall: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}
	m := observability.NewMetrics("pipeline_cancel_test")

	results, err := New(&fakeSearcher{papers: papers("1", "2", "3")}, sum, zerolog.Nop(),
		WithPacer(NoDelay), WithMetrics(m)).Run(ctx, "q", 3, nil)

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].ID)
	assert.False(t, results[0].Failed())
	assert.Equal(t, []string{"1", "2"}, sum.calls)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SummariesTotal.WithLabelValues(observability.SummaryFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(observability.OutcomeCancelled)))
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum := &fakeSummarizer{}

	results, err := New(&fakeSearcher{papers: papers("1")}, sum, zerolog.Nop(), WithPacer(NoDelay)).
		Run(ctx, "q", 3, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
	assert.Empty(t, sum.calls)
}

func TestRun_ResultsAreIndependentCopies(t *testing.T) {
	ps := papers("1")
	results, err := New(&fakeSearcher{papers: ps}, &fakeSummarizer{}, zerolog.Nop(), WithPacer(NoDelay)).
		Run(context.Background(), "q", 1, nil)
	require.NoError(t, err)

	ps[0].Authors[0] = "mutated"
	assert.Equal(t, "Doe Jane", results[0].Authors[0])
}

func TestRun_Metrics(t *testing.T) {
	m := observability.NewMetrics("pipeline_test")
	p := New(&fakeSearcher{papers: papers("1", "2")}, &fakeSummarizer{failOn: map[string]bool{"2": true}}, zerolog.Nop(),
		WithPacer(NoDelay), WithMetrics(m))

	_, err := p.Run(context.Background(), "q", 2, nil)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), " ", 2, nil)
	require.ErrorIs(t, err, ErrBlankQuery)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(observability.OutcomeCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(observability.OutcomeBlank)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SummariesTotal.WithLabelValues(observability.SummarySucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SummariesTotal.WithLabelValues(observability.SummaryFailed)))
}

func TestSummaryFraction(t *testing.T) {
	assert.InDelta(t, 0.90, SummaryFraction(1, 1), 1e-9)
	assert.InDelta(t, 0.60, SummaryFraction(5, 10), 1e-9)
	assert.InDelta(t, 0.90, SummaryFraction(10, 10), 1e-9)
	assert.InDelta(t, 0.30, SummaryFraction(0, 0), 1e-9)
	assert.Equal(t, 1.0, SummaryFraction(10, 1))
}

func TestFixedDelay(t *testing.T) {
	start := time.Now()
	require.NoError(t, FixedDelay(20*time.Millisecond).Pause(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, FixedDelay(time.Hour).Pause(ctx), context.Canceled)

	assert.NoError(t, FixedDelay(0).Pause(context.Background()))
	assert.NoError(t, NoDelay.Pause(context.Background()))
}
