// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/clinical-digest/internal/httputil"
)

// openAIBaseURL is the default Chat Completions root.
const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIBackend calls the OpenAI Chat Completions API.
type OpenAIBackend struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *httputil.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends one system+user chat completion and returns the first choice.
func (b *OpenAIBackend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body := chatRequest{
		Model: b.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + b.APIKey}

	data, err := b.client().PostJSON(ctx, endpoint(b.BaseURL, openAIBaseURL, "/chat/completions"), headers, body)
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decoding OpenAI response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *OpenAIBackend) client() *httputil.Client {
	if b.Client == nil {
		return httputil.NewClient(0, "", 0)
	}
	return b.Client
}

func endpoint(base, fallback, path string) string {
	if base == "" {
		base = fallback
	}
	return strings.TrimRight(base, "/") + path
}
