// Package config provides configuration management for the application.
// This file validates the fields required for the server to start safely.
package config

import (
	"strings"

	"github.com/aireviewer/reviewerd/pkg/errors"
)

// MinWebhookSecretLength is the minimum accepted length for the webhook
// HMAC secret.
const MinWebhookSecretLength = 16

// Validate checks that the configuration carries everything ReviewEngine and
// HostingClient require to run, returning an AppError describing the first
// problem found.
func (c *Config) Validate() *errors.AppError {
	if c.GitHubApp.AppID == 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "github_app.app_id must be set")
	}

	if strings.TrimSpace(c.GitHubApp.PrivateKeyPEM) == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "github_app.private_key_pem must be set")
	}

	if len(strings.TrimSpace(c.GitHubApp.WebhookSecret)) < MinWebhookSecretLength {
		return errors.New(errors.ErrCodeConfigInvalid,
			"github_app.webhook_secret must be at least 16 characters")
	}

	if strings.TrimSpace(c.AI.APIKey) == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "ai.api_key must be set")
	}

	if c.Review.MaxFilesPerReview <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "review.max_files_per_review must be positive")
	}

	if c.Review.MaxDiffSizeBytes <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "review.max_diff_size_bytes must be positive")
	}

	if len(c.Review.BotTriggers) == 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "review.bot_triggers must not be empty")
	}

	return nil
}
