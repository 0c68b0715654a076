// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "clinical-digest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// LiteratureConfig holds settings for the PubMed retrieval stage.
type LiteratureConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the E-utilities base URL.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// Email is the optional contact address NCBI asks clients to send.
	// Omitted from requests when empty.
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email" validate:"omitempty,email"`

	// APIKey is an optional NCBI API key for the higher request rate.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Tool names this client to NCBI.
	Tool string `json:"tool" yaml:"tool" mapstructure:"tool"`

	// RateLimit is the maximum E-utilities requests per second (default 3).
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"`

	// MaxResults is the default number of papers per search (default 5).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results" validate:"gte=1,lte=10"`
}

// AIProvider identifies the completion API used for summaries.
type AIProvider string

const (
	ProviderOpenAI    AIProvider = "openai"
	ProviderAnthropic AIProvider = "anthropic"
)

// AIConfig holds settings for the summarization stage.
type AIConfig struct {
	// Provider selects the completion API: openai or anthropic.
	Provider AIProvider `json:"provider" yaml:"provider" mapstructure:"provider" validate:"oneof=openai anthropic"`

	// Model is the model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model" mapstructure:"model" validate:"required"`

	// APIKey is the credential for the completion API. Required.
	APIKey string `json:"-" yaml:"-" mapstructure:"api_key" validate:"required"`

	// BaseURL overrides the provider endpoint; empty means the provider default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`

	// MaxTokens caps the completion length per request.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens" validate:"gt=0"`

	// Temperature is the sampling temperature in (0, 2]; kept low for factual
	// phrasing. Zero is rejected because it means "use the default" downstream.
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature" validate:"gt=0,lte=2"`

	// Timeout is the HTTP timeout for one completion request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// PipelineConfig holds settings for the orchestration stage.
type PipelineConfig struct {
	// SummaryDelay is the pause between consecutive summary requests (default 1s).
	SummaryDelay time.Duration `json:"summary_delay" yaml:"summary_delay" mapstructure:"summary_delay" validate:"gte=0"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Address         string        `json:"address" yaml:"address" mapstructure:"address"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is the minimum level (trace, debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn warning error"`

	// Format is json or console.
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=json console pretty"`
}

// Config groups all stage configurations. It is built once at start-up and
// passed into constructors; nothing reads configuration from globals after that.
type Config struct {
	Literature LiteratureConfig `json:"literature" yaml:"literature" mapstructure:"literature"`
	AI         AIConfig         `json:"ai" yaml:"ai" mapstructure:"ai"`
	Pipeline   PipelineConfig   `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging" mapstructure:"logging"`

	// OutputDir is where the CLI writes exported documents.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
}
