// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/clinical-digest/internal/httputil"
)

const (
	claudeBaseURL    = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// ClaudeBackend calls the Claude Messages API.
type ClaudeBackend struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *httputil.Client
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Temperature float64         `json:"temperature"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Complete sends one message with the system prompt and returns the
// concatenated text blocks of the reply.
func (b *ClaudeBackend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body := claudeRequest{
		Model:       b.Model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Temperature: req.Temperature,
		Messages: []claudeMessage{
			{Role: "user", Content: req.Prompt},
		},
	}
	headers := map[string]string{
		"x-api-key":         b.APIKey,
		"anthropic-version": anthropicVersion,
	}

	client := b.Client
	if client == nil {
		client = httputil.NewClient(0, "", 0)
	}
	data, err := client.PostJSON(ctx, endpoint(b.BaseURL, claudeBaseURL, "/messages"), headers, body)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}

	var resp claudeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("no text content in Claude API response")
	}
	return text.String(), nil
}
