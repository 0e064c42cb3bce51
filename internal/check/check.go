// Package check implements the non-interactive environment check behind
// `reviewerd serve --check`: it validates that the loaded configuration has
// everything the review pipeline needs before the server starts accepting
// webhooks.
package check

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/aireviewer/reviewerd/internal/config"
)

// Result collects the outcome of a non-interactive environment check.
type Result struct {
	// Success is false if any Errors were recorded; Warnings alone do not
	// fail the check.
	Success     bool
	Errors      []string
	Warnings    []string
	Suggestions []string
}

// Run validates cfg against the fields the pipeline requires at startup:
// GitHub App credentials, the AI endpoint key, and the review defaults.
func Run(cfg *config.Config) *Result {
	result := &Result{Success: true}

	checkGitHubApp(cfg, result)
	checkAI(cfg, result)
	checkReviewDefaults(cfg, result)

	if !result.Success {
		result.Suggestions = append(result.Suggestions,
			"Set the missing values in your config file or as environment variables, then rerun --check.")
	}
	return result
}

func checkGitHubApp(cfg *config.Config, result *Result) {
	app := cfg.GitHubApp
	if app.AppID == 0 {
		fail(result, "github_app.app_id is not set")
	}
	if app.PrivateKeyPEM == "" {
		fail(result, "github_app.private_key_pem is not set")
	}
	if app.WebhookSecret == "" {
		fail(result, "github_app.webhook_secret is not set")
	}
}

func checkAI(cfg *config.Config, result *Result) {
	ai := cfg.AI
	if ai.APIKey == "" {
		fail(result, "ai.api_key is not set")
	}
	if ai.DefaultModel == "" {
		warn(result, "ai.default_model is empty; every repository must set model explicitly in .aireviewer.yaml")
	}
	if ai.MaxTokensPerReview <= 0 {
		warn(result, "ai.max_tokens_per_review is zero or unset; the default of 4096 will be used")
	}

	cost := cfg.Cost
	if cost.InputPerMillionCents <= 0 || cost.OutputPerMillionCents <= 0 {
		warn(result, "a cost rate is zero or unset; tokens billed at that rate will be recorded at $0 cost")
	}
}

func checkReviewDefaults(cfg *config.Config, result *Result) {
	review := cfg.Review
	if review.MaxFilesPerReview < 1 || review.MaxFilesPerReview > 200 {
		warn(result, fmt.Sprintf("review.max_files_per_review = %d is outside the supported 1..200 range", review.MaxFilesPerReview))
	}
	if review.MaxDiffSizeBytes <= 0 {
		warn(result, "review.max_diff_size_bytes is zero or unset; every diff will be skipped as too large")
	}
	if len(review.BotTriggers) == 0 {
		warn(result, "review.bot_triggers is empty; no comment command will ever match")
	}
}

func fail(result *Result, msg string) {
	result.Success = false
	result.Errors = append(result.Errors, msg)
}

func warn(result *Result, msg string) {
	result.Warnings = append(result.Warnings, msg)
}

// Print renders a Result to stdout, colored by severity.
func Print(result *Result) {
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	if len(result.Errors) > 0 {
		fmt.Println()
		red.Println("[ERROR] Environment check failed")
		for _, e := range result.Errors {
			red.Printf("  x %s\n", e)
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Println()
		yellow.Println("[WARNING] Configuration warnings")
		for _, w := range result.Warnings {
			yellow.Printf("  ! %s\n", w)
		}
	}

	if len(result.Suggestions) > 0 {
		fmt.Println()
		cyan.Println("To fix these issues:")
		for _, s := range result.Suggestions {
			cyan.Printf("  -> %s\n", s)
		}
	}

	if result.Success && len(result.Warnings) == 0 {
		fmt.Println()
		green.Println("[OK] Environment check passed")
	}

	fmt.Println()
}
