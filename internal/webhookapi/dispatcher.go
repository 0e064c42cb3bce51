// Package webhookapi implements the EventDispatcher: the gin HTTP handler
// that verifies inbound GitHub webhook deliveries and maps them onto
// Scheduler submissions or synchronous Installation/Repository mutations.
package webhookapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/aireviewer/reviewerd/internal/commands"
	"github.com/aireviewer/reviewerd/internal/model"
	"github.com/aireviewer/reviewerd/internal/reviewengine"
	"github.com/aireviewer/reviewerd/internal/scheduler"
	"github.com/aireviewer/reviewerd/internal/store"
	pkgerrors "github.com/aireviewer/reviewerd/pkg/errors"
	"github.com/aireviewer/reviewerd/pkg/logger"
)

// reviewPullRequestTask is the Scheduler task name handled by ReviewEngine.
const reviewPullRequestTask = "review_pull_request"

// processCommentCommandTask is the Scheduler task name handled by this
// package's ProcessCommentCommand, dispatched from cmd/reviewerd's handler.
const processCommentCommandTask = "process_comment_command"

// CommentClient is the subset of ghclient.Client the dispatcher calls to
// respond to a parsed comment command directly (no review pipeline).
type CommentClient interface {
	CreateIssueComment(ctx context.Context, installationID int64, owner, repo string, number int, body string) (int64, error)
}

// Dispatcher is the EventDispatcher: it verifies and routes inbound GitHub
// webhook deliveries.
type Dispatcher struct {
	store         store.Store
	scheduler     *scheduler.Scheduler
	commands      *commands.Parser
	hosting       CommentClient
	webhookSecret string
	debounceDelay int // seconds
}

// New builds a Dispatcher. webhookSecret is the GitHub App's shared secret
// for X-Hub-Signature-256 verification; reviewDebounceSeconds is the delay
// applied to pull_request-triggered review jobs.
func New(s store.Store, sched *scheduler.Scheduler, parser *commands.Parser, hosting CommentClient, webhookSecret string, reviewDebounceSeconds int) *Dispatcher {
	return &Dispatcher{
		store:         s,
		scheduler:     sched,
		commands:      parser,
		hosting:       hosting,
		webhookSecret: webhookSecret,
		debounceDelay: reviewDebounceSeconds,
	}
}

// HandleWebhook handles POST /webhooks/host. It verifies the payload's
// HMAC-SHA256 signature via go-github's own ValidatePayload (the same
// constant-time comparison go-github uses internally), parses the typed
// event via ParseWebHook, and dispatches by concrete event type.
func (d *Dispatcher) HandleWebhook(c *gin.Context) {
	payload, err := github.ValidatePayload(c.Request, []byte(d.webhookSecret))
	if err != nil {
		logger.Warn("webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    pkgerrors.ErrCodeGitWebhook,
			"message": "invalid webhook signature",
		})
		return
	}
	defer io.Copy(io.Discard, c.Request.Body)

	eventType := github.WebHookType(c.Request)
	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		logger.Warn("failed to parse webhook payload", zap.String("event_type", eventType), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    pkgerrors.ErrCodeGitWebhook,
			"message": "failed to parse webhook: " + err.Error(),
		})
		return
	}

	logger.Info("webhook received", zap.String("event_type", eventType))

	switch evt := event.(type) {
	case *github.PullRequestEvent:
		d.handlePullRequestEvent(c, evt)
	case *github.IssueCommentEvent:
		d.handleIssueCommentEvent(c, evt)
	case *github.InstallationEvent:
		d.handleInstallationEvent(c, evt)
	case *github.InstallationRepositoriesEvent:
		d.handleInstallationRepositoriesEvent(c, evt)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "event": eventType})
	}
}

// reviewTrigger maps a pull_request webhook action to a ReviewTrigger, or
// reports ok=false for actions the service never reviews.
func reviewTrigger(action string) (model.ReviewTrigger, bool) {
	switch action {
	case "opened":
		return model.ReviewTriggerPROpened, true
	case "synchronize":
		return model.ReviewTriggerPRSynchronize, true
	case "reopened":
		return model.ReviewTriggerPRReopened, true
	default:
		return "", false
	}
}
