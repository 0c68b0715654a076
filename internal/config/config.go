// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config builds the types.Config for a process from defaults, an
// optional YAML file, a .env file, environment variables, and the .secrets/
// directory, in increasing order of precedence except that secrets only fill
// values still empty after the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/pdiddy/clinical-digest/internal/pubmed"
	"github.com/pdiddy/clinical-digest/internal/secrets"
	"github.com/pdiddy/clinical-digest/pkg/types"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "CLINICAL_DIGEST"

// ErrConfigurationMissing reports a required setting with no value.
var ErrConfigurationMissing = errors.New("required configuration missing")

// MissingError names the missing setting and where it can be supplied.
type MissingError struct {
	Field string
	Env   []string
}

func (e *MissingError) Error() string {
	if len(e.Env) == 0 {
		return fmt.Sprintf("%s: %s", ErrConfigurationMissing, e.Field)
	}
	return fmt.Sprintf("%s: %s (set %s)", ErrConfigurationMissing, e.Field, strings.Join(e.Env, " or "))
}

func (e *MissingError) Unwrap() error { return ErrConfigurationMissing }

// Options locates the optional inputs of Load.
type Options struct {
	// ConfigFile is an explicit YAML file. Empty searches ./clinical-digest.yaml
	// and ~/.config/clinical-digest/clinical-digest.yaml.
	ConfigFile string

	// EnvFile is a dotenv file; missing is not an error. Empty means ".env".
	EnvFile string

	// SecretsDir is the directory of key files. Empty means secrets.DefaultDir.
	SecretsDir string
}

// legacyEnv lists variable names honoured alongside the prefixed ones.
var legacyEnv = map[string][]string{
	"literature.email":   {"NIH_EMAIL", "NCBI_EMAIL"},
	"literature.api_key": {"NCBI_API_KEY"},
}

// providerKeyEnv is the conventional API key variable of each provider.
var providerKeyEnv = map[types.AIProvider]string{
	types.ProviderOpenAI:    "OPENAI_API_KEY",
	types.ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// providerKeyFile is the secrets file holding each provider's API key.
var providerKeyFile = map[types.AIProvider]string{
	types.ProviderOpenAI:    secrets.KeyOpenAI,
	types.ProviderAnthropic: secrets.KeyAnthropic,
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration into v and returns the validated result. A
// missing LLM credential yields a *MissingError.
func Load(v *viper.Viper, opts Options, logger zerolog.Logger) (*types.Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug().Str("file", used).Msg("using config file")
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	dir := opts.SecretsDir
	if dir == "" {
		dir = secrets.DefaultDir
	}
	s, err := secrets.Load(dir, logger)
	if err != nil {
		return nil, err
	}
	if len(s) > 0 {
		logger.Debug().Strs("keys", s.Keys()).Msg("loaded secrets")
	}
	applyFallbacks(&cfg, s)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func readConfigFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("clinical-digest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "clinical-digest"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// applyFallbacks fills credentials the environment left empty: first the
// provider's conventional variable, then the secrets directory.
func applyFallbacks(cfg *types.Config, s secrets.Secrets) {
	if cfg.AI.APIKey == "" {
		if name, ok := providerKeyEnv[cfg.AI.Provider]; ok {
			cfg.AI.APIKey = os.Getenv(name)
		}
	}
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = s.Get(providerKeyFile[cfg.AI.Provider])
	}
	if cfg.Literature.Email == "" {
		cfg.Literature.Email = s.Get(secrets.KeyNCBIEmail)
	}
	if cfg.Literature.APIKey == "" {
		cfg.Literature.APIKey = s.Get(secrets.KeyNCBIAPIKey)
	}
}

// Validate checks cfg. The LLM credential is checked first so its absence
// is always reported as a *MissingError.
func Validate(cfg *types.Config) error {
	if cfg.AI.APIKey == "" {
		env := []string{EnvPrefix + "_AI_API_KEY"}
		if name, ok := providerKeyEnv[cfg.AI.Provider]; ok {
			env = append(env, name)
		}
		return &MissingError{Field: "ai.api_key", Env: env}
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("validating configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Literature
	v.SetDefault("literature.base_url", pubmed.DefaultBaseURL)
	v.SetDefault("literature.email", "")
	v.SetDefault("literature.api_key", "")
	v.SetDefault("literature.tool", "clinical-digest")
	v.SetDefault("literature.timeout", "30s")
	v.SetDefault("literature.user_agent", "clinical-digest/dev")
	v.SetDefault("literature.rate_limit", 3)
	v.SetDefault("literature.max_results", 5)

	// AI
	v.SetDefault("ai.provider", string(types.ProviderOpenAI))
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.max_tokens", 800)
	v.SetDefault("ai.temperature", 0.3)
	v.SetDefault("ai.timeout", "60s")

	v.SetDefault("pipeline.summary_delay", "1s")

	// Server
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("output_dir", ".")
}
