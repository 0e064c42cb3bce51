package aireviewer

import (
	"encoding/json"
	"strings"
)

// maxRawExcerpt bounds the raw-output excerpt folded into Summary when the
// model's response could not be parsed as JSON.
const maxRawExcerpt = 500

// Comment is one finding the model attached to a specific file/line.
type Comment struct {
	File         string `json:"file"`
	Line         int    `json:"line"`
	Severity     string `json:"severity"`
	Category     string `json:"category"`
	Message      string `json:"message"`
	SuggestedFix string `json:"suggested_fix,omitempty"`
}

// Response is the AIReviewer's structured output for one review.
type Response struct {
	Summary      string    `json:"summary"`
	RiskLevel    string    `json:"risk_level"`
	Comments     []Comment `json:"comments"`
	InputTokens  int       `json:"-"`
	OutputTokens int       `json:"-"`
}

// parseResponse extracts the model's text (stripping a fenced ```json or
// ``` code block if present) and decodes it into a Response. A malformed or
// non-JSON body never fails the call: it degrades to a well-formed Response
// with an empty comment list, risk_level "medium", and a truncated excerpt
// of the raw text folded into Summary.
func parseResponse(text string) Response {
	text = stripCodeFence(text)

	var decoded struct {
		Summary   string    `json:"summary"`
		RiskLevel string    `json:"risk_level"`
		Comments  []Comment `json:"comments"`
	}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return Response{
			Summary:   "Failed to parse structured response. Raw output: " + truncate(text, maxRawExcerpt),
			RiskLevel: "medium",
			Comments:  nil,
		}
	}

	if decoded.RiskLevel == "" {
		decoded.RiskLevel = "medium"
	}
	return Response{
		Summary:   decoded.Summary,
		RiskLevel: decoded.RiskLevel,
		Comments:  decoded.Comments,
	}
}

// stripCodeFence removes a single leading ```json ... ``` or ``` ... ```
// fence wrapping the model's response, if present.
func stripCodeFence(text string) string {
	if idx := strings.Index(text, "```json"); idx != -1 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	if strings.Contains(text, "```") {
		parts := strings.SplitN(text, "```", 3)
		if len(parts) >= 2 {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
