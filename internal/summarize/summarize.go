// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize turns one Paper into a clinician-facing summary through
// a chat-style completion API. Summarize never fails: any error yields
// types.SummaryFailed so the pipeline can move on to the next paper.
package summarize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/pdiddy/clinical-digest/internal/httputil"
	"github.com/pdiddy/clinical-digest/pkg/types"
)

const (
	// abstractLimit is how many characters of the abstract go into the prompt.
	abstractLimit = 1000

	// promptAuthors is how many authors the prompt names.
	promptAuthors = 3

	defaultMaxTokens   = 800
	defaultTemperature = 0.3
)

// ErrEmptyCompletion is returned when the model answers with no text.
var ErrEmptyCompletion = errors.New("completion returned no text")

// systemPrompt scopes the assistant to the clinical-summarization persona.
const systemPrompt = "あなたは整形外科・リハビリ分野の論文要約専門家です。"

var summaryPromptTmpl = template.Must(template.New("summary").Parse(`以下の医学論文について、整形外科クリニックの医師・理学療法士向けに300-500字の日本語要約を作成してください。

タイトル: {{.Title}}
著者: {{.Authors}}
雑誌: {{.Journal}} ({{.Year}})
アブストラクト: {{.Abstract}}

要約の構成:
1. 背景・目的（1-2文）
2. 方法・介入（1-2文）
3. 結果（2-3文）
4. 臨床的示唆（1-2文）
5. 限界・注意点（1文）
`))

// CompletionRequest is one system-plus-user completion call.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer abstracts the completion API so tests can supply a fake.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Summarizer builds the summary prompt and sends it to a Completer.
type Summarizer struct {
	completer   Completer
	maxTokens   int
	temperature float64
	logger      zerolog.Logger
}

// New creates a Summarizer. Zero MaxTokens and Temperature in cfg take the
// defaults (800 tokens, 0.3).
func New(completer Completer, cfg types.AIConfig, logger zerolog.Logger) *Summarizer {
	s := &Summarizer{
		completer:   completer,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger.With().Str("component", "summarize").Logger(),
	}
	if s.maxTokens <= 0 {
		s.maxTokens = defaultMaxTokens
	}
	if s.temperature <= 0 {
		s.temperature = defaultTemperature
	}
	return s
}

// NewFromConfig creates a Summarizer backed by the provider cfg selects.
func NewFromConfig(cfg types.AIConfig, logger zerolog.Logger) (*Summarizer, error) {
	completer, err := NewCompleter(cfg)
	if err != nil {
		return nil, err
	}
	return New(completer, cfg, logger), nil
}

// NewCompleter returns the backend for cfg.Provider. An empty provider
// selects OpenAI.
func NewCompleter(cfg types.AIConfig) (Completer, error) {
	hc := httputil.NewClient(cfg.Timeout, "", 0)
	switch cfg.Provider {
	case types.ProviderOpenAI, "":
		return &OpenAIBackend{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Client: hc}, nil
	case types.ProviderAnthropic:
		return &ClaudeBackend{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, Client: hc}, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// Summarize returns the summary for p, or types.SummaryFailed on any error.
func (s *Summarizer) Summarize(ctx context.Context, p types.Paper) string {
	summary, err := s.Generate(ctx, p)
	if err != nil {
		s.logger.Error().Err(err).Str("pmid", p.ID).Msg("summary generation failed")
		return types.SummaryFailed
	}
	return summary
}

// Generate is Summarize with the failure reported.
func (s *Summarizer) Generate(ctx context.Context, p types.Paper) (string, error) {
	prompt, err := RenderPrompt(p)
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}

	text, err := s.completer.Complete(ctx, CompletionRequest{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("completing summary for %s: %w", p.ID, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// RenderPrompt executes the summary prompt template for p.
func RenderPrompt(p types.Paper) (string, error) {
	authors := p.Authors
	if len(authors) > promptAuthors {
		authors = authors[:promptAuthors]
	}
	abstract := truncateRunes(p.Abstract, abstractLimit)

	data := struct {
		Title, Authors, Journal, Year, Abstract string
	}{
		Title:    p.Title,
		Authors:  strings.Join(authors, ", "),
		Journal:  p.Journal,
		Year:     p.Year,
		Abstract: abstract,
	}

	var buf bytes.Buffer
	if err := summaryPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
