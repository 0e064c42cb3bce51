package aireviewer

import (
	"fmt"
	"strings"
)

const systemPromptTemplate = `You are an expert code reviewer. Review the provided pull request diff and provide:

1. A summary of the changes (2-3 sentences)
2. An overall risk level: low, medium, high, or critical
3. Specific comments on issues you find

For each comment, provide:
- file: The file path
- line: The line number in the NEW version of the file (not the old version)
- severity: critical, warning, suggestion, or nitpick
- category: One of the focus areas below, or "bug"/"maintainability" if none fit
- message: Clear explanation of the issue
- suggested_fix: (optional) Code suggestion to fix the issue

Focus on:
%s

Additional context about this codebase:
%s

%s

Respond with valid JSON in this exact format:
{
  "summary": "Brief summary of the PR",
  "risk_level": "low|medium|high|critical",
  "comments": [
    {
      "file": "path/to/file.ext",
      "line": 42,
      "severity": "warning",
      "category": "security",
      "message": "Explanation of the issue",
      "suggested_fix": "Optional code fix"
    }
  ]
}

If the code looks good with no issues, return an empty comments array.
Only comment on lines that exist in the diff (additions or context lines).
Do not comment on removed lines.`

// Request bundles everything the AIReviewer needs to build a prompt and
// call the language-model endpoint for one review.
type Request struct {
	DiffText               string
	PRTitle                string
	PRDescription          string
	ContextContent         string // up to 5 concatenated context files, best-effort
	Rules                  RuleSet
	Languages              []string
	Frameworks             []string
	AdditionalInstructions string
	Model                  string
}

// buildSystemPrompt renders the fixed review template around the request's
// enabled rule categories and codebase hints.
func buildSystemPrompt(req Request) string {
	focusAreas := strings.Join(req.Rules.focusAreas(), "\n")
	if focusAreas == "" {
		focusAreas = "General code quality"
	}

	var ctx strings.Builder
	if len(req.Languages) > 0 {
		fmt.Fprintf(&ctx, "Languages: %s\n", strings.Join(req.Languages, ", "))
	}
	if len(req.Frameworks) > 0 {
		fmt.Fprintf(&ctx, "Frameworks: %s\n", strings.Join(req.Frameworks, ", "))
	}
	if req.ContextContent != "" {
		fmt.Fprintf(&ctx, "\nRepository documentation:\n%s\n", req.ContextContent)
	}
	additionalContext := ctx.String()
	if additionalContext == "" {
		additionalContext = "No additional context provided."
	}

	return fmt.Sprintf(systemPromptTemplate, focusAreas, additionalContext, req.AdditionalInstructions)
}

// buildUserPrompt renders the PR metadata and diff the model is asked to
// review.
func buildUserPrompt(req Request) string {
	var description string
	if req.PRDescription != "" {
		description = "\n## Description\n" + req.PRDescription
	}

	return fmt.Sprintf("# Pull Request: %s\n%s\n\n## Diff\n\n```diff\n%s\n```\n\nPlease review this pull request and provide your analysis as JSON.",
		req.PRTitle, description, req.DiffText)
}
