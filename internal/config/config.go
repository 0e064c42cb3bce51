// Package config provides configuration management for the application.
// It supports YAML configuration files with environment variable overrides.
package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aireviewer/reviewerd/consts"
	"github.com/aireviewer/reviewerd/pkg/logger"
	"github.com/aireviewer/reviewerd/pkg/telemetry"
)

// Default configuration values
const (
	defaultDefaultModel             = "claude-sonnet-4-5"
	defaultMaxTokensPerReview        = 4096
	defaultInputPerMillionCents      = 300
	defaultOutputPerMillionCents     = 1500
	defaultMonthlyBudgetCents        = 10000
	defaultMaxFilesPerReview         = 50
	defaultMaxDiffSizeBytes    int64 = 1024 * 1024
	defaultReviewDebounceSeconds     = 30
	defaultOTLPEndpoint              = "localhost:4317"
	defaultPrometheusPort            = 9090
)

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	GitHubApp GitHubAppConfig  `yaml:"github_app"`
	AI        AIConfig         `yaml:"ai"`
	Cost      CostConfig       `yaml:"cost"`
	Review    ReviewConfig     `yaml:"review"`
	Logging   logger.Config    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// GitHubAppConfig holds the GitHub App identity used to authenticate as
// HostingClient against the code-hosting platform.
type GitHubAppConfig struct {
	// AppID is the GitHub App's numeric identifier, the `iss` claim of the
	// JWT minted for installation-token exchange.
	AppID int64 `yaml:"app_id"`

	// PrivateKeyPEM is the App's RS256 private key, PEM-encoded.
	PrivateKeyPEM string `yaml:"private_key_pem"`

	// WebhookSecret is the shared secret used to verify
	// X-Hub-Signature-256 on inbound webhook deliveries.
	WebhookSecret string `yaml:"webhook_secret"`
}

// AIConfig holds the external language-model endpoint configuration.
type AIConfig struct {
	APIKey             string `yaml:"api_key"`
	DefaultModel       string `yaml:"default_model"`
	MaxTokensPerReview int    `yaml:"max_tokens_per_review"`
}

// CostConfig holds per-million-token pricing used to compute a Review's
// cost_cents.
type CostConfig struct {
	InputPerMillionCents  int `yaml:"input_per_million_cents"`
	OutputPerMillionCents int `yaml:"output_per_million_cents"`
}

// ReviewConfig holds the review pipeline's operational defaults.
type ReviewConfig struct {
	// DefaultMonthlyBudgetCents seeds Installation.MonthlyBudgetCents for
	// installations created without an explicit override.
	DefaultMonthlyBudgetCents int `yaml:"default_monthly_budget_cents"`

	// MaxFilesPerReview gates PRs whose changed_files count exceeds it.
	MaxFilesPerReview int `yaml:"max_files_per_review"`

	// MaxDiffSizeBytes gates PRs whose unified diff exceeds it in size.
	MaxDiffSizeBytes int64 `yaml:"max_diff_size_bytes"`

	// EnableLineComments controls whether inline comments are attached to
	// the published review, or whether only the summary body is posted.
	EnableLineComments bool `yaml:"enable_line_comments"`

	// ReviewDebounceSeconds is the Scheduler delay applied to
	// pull_request-triggered reviews.
	ReviewDebounceSeconds int `yaml:"review_debounce_seconds"`

	// BotTriggers is the ordered list of phrases the CommandParser
	// recognizes inside PR comment bodies.
	BotTriggers []string `yaml:"bot_triggers"`
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:  "0.0.0.0",
			Port:  8080,
			Debug: false,
		},
		GitHubApp: GitHubAppConfig{},
		AI: AIConfig{
			DefaultModel:       defaultDefaultModel,
			MaxTokensPerReview: defaultMaxTokensPerReview,
		},
		Cost: CostConfig{
			InputPerMillionCents:  defaultInputPerMillionCents,
			OutputPerMillionCents: defaultOutputPerMillionCents,
		},
		Review: ReviewConfig{
			DefaultMonthlyBudgetCents: defaultMonthlyBudgetCents,
			MaxFilesPerReview:         defaultMaxFilesPerReview,
			MaxDiffSizeBytes:          defaultMaxDiffSizeBytes,
			EnableLineComments:        true,
			ReviewDebounceSeconds:     defaultReviewDebounceSeconds,
			BotTriggers:               []string{"@reviewer", "@procrasturbate", "it's gooning time"},
		},
		Logging: logger.Config{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 5,
			Compress:   false,
		},
		Telemetry: telemetry.Config{
			Enabled:     false,
			ServiceName: consts.ServiceName,
			OTLP: telemetry.OTLPConfig{
				Enabled:  false,
				Endpoint: defaultOTLPEndpoint,
				Insecure: true,
			},
			Prometheus: telemetry.PrometheusConfig{
				Enabled: false,
				Port:    defaultPrometheusPort,
			},
		},
	}
}

// Load loads configuration from a YAML file with environment variable
// expansion.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := expandEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with
// environment variable values. Only the braced form is matched (not bare
// $VAR_NAME), so secrets containing literal '$' are never mangled.
func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]

		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]

		if value := os.Getenv(varName); value != "" {
			return value
		}

		if len(parts) > 1 {
			return parts[1]
		}

		return ""
	})
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
