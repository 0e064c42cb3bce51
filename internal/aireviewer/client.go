package aireviewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aireviewer/reviewerd/internal/reviewerr"
	"github.com/aireviewer/reviewerd/pkg/logger"
)

const (
	defaultEndpoint   = "https://api.anthropic.com/v1/messages"
	anthropicVersion  = "2023-06-01"
	defaultHTTPTimeout = 2 * time.Minute
)

// Client is a thin HTTP client to the Anthropic Messages API, returning a
// structured Response per review request.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	maxTokens  int
}

// New builds a Client for the given API key and per-review token ceiling.
// A ceiling of zero or less falls back to 4096.
func New(apiKey string, maxTokensPerReview int) *Client {
	if maxTokensPerReview <= 0 {
		maxTokensPerReview = 4096
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		endpoint:   defaultEndpoint,
		apiKey:     apiKey,
		maxTokens:  maxTokensPerReview,
	}
}

type messagesRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system"`
	Messages  []messageEntry  `json:"messages"`
}

type messageEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type apiErrorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Review sends req to the language-model endpoint and returns the
// structured review. A transport failure or non-2xx response yields a
// retryable reviewerr.KindAIError; a malformed response body from an
// otherwise-successful call degrades gracefully (see parseResponse) rather
// than returning an error.
func (c *Client) Review(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		return nil, reviewerr.New(reviewerr.KindInternalInvariant, "aireviewer: no model configured")
	}

	body := messagesRequest{
		Model:     model,
		MaxTokens: c.maxTokens,
		System:    buildSystemPrompt(req),
		Messages: []messageEntry{
			{Role: "user", Content: buildUserPrompt(req)},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, reviewerr.Wrap(reviewerr.KindInternalInvariant, "marshaling ai review request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, reviewerr.Wrap(reviewerr.KindInternalInvariant, "building ai review request", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Get().Error("ai review request failed", zap.Error(err))
		return nil, reviewerr.Wrap(reviewerr.KindAIError, "calling ai review endpoint", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, reviewerr.Wrap(reviewerr.KindAIError, "reading ai review response body", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope apiErrorEnvelope
		_ = json.Unmarshal(respBody, &envelope)
		logger.Get().Error("ai review endpoint returned an error",
			zap.Int("status", resp.StatusCode), zap.String("type", envelope.Error.Type))
		return nil, reviewerr.New(reviewerr.KindAIError,
			fmt.Sprintf("ai endpoint returned status %d: %s", resp.StatusCode, envelope.Error.Message))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, reviewerr.Wrap(reviewerr.KindAIError, "decoding ai review response envelope", err)
	}

	var text string
	if len(parsed.Content) > 0 {
		text = parsed.Content[0].Text
	}

	result := parseResponse(text)
	result.InputTokens = parsed.Usage.InputTokens
	result.OutputTokens = parsed.Usage.OutputTokens
	return &result, nil
}
