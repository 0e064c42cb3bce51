// Package reviewengine implements the ReviewEngine: the pipeline state
// machine that turns one scheduled (installation, repository, PR) tuple
// into a completed, skipped, failed, or superseded Review row.
package reviewengine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/aireviewer/reviewerd/internal/aireviewer"
	"github.com/aireviewer/reviewerd/internal/budget"
	"github.com/aireviewer/reviewerd/internal/diffparser"
	"github.com/aireviewer/reviewerd/internal/ghclient"
	"github.com/aireviewer/reviewerd/internal/model"
	"github.com/aireviewer/reviewerd/internal/reviewconfig"
	"github.com/aireviewer/reviewerd/internal/reviewerr"
	"github.com/aireviewer/reviewerd/internal/store"
	"github.com/aireviewer/reviewerd/pkg/idgen"
	"github.com/aireviewer/reviewerd/pkg/logger"
	"github.com/aireviewer/reviewerd/pkg/telemetry"
)

// HostingClient is the subset of ghclient.Client the engine calls against
// the code-hosting platform.
type HostingClient interface {
	GetPullRequest(ctx context.Context, installationID int64, owner, repo string, number int) (*ghclient.PullRequest, error)
	GetPullRequestDiff(ctx context.Context, installationID int64, owner, repo string, number int) (string, error)
	GetFileContent(ctx context.Context, installationID int64, owner, repo, path, ref string) ([]byte, error)
	CreateReview(ctx context.Context, installationID int64, owner, repo string, number int, commit, body, event string, comments []ghclient.ReviewComment) (int64, error)
	CreateIssueComment(ctx context.Context, installationID int64, owner, repo string, number int, body string) (int64, error)
	CreateCheckRun(ctx context.Context, installationID int64, owner, repo string, opts ghclient.CheckRunOptions) (int64, error)
	UpdateCheckRun(ctx context.Context, installationID int64, owner, repo string, checkRunID int64, opts ghclient.CheckRunOptions) error
}

// AIClient is the subset of aireviewer.Client the engine calls.
type AIClient interface {
	Review(ctx context.Context, req aireviewer.Request) (*aireviewer.Response, error)
}

// Task is one unit of review work, as submitted by the EventDispatcher
// through the Scheduler.
type Task struct {
	InstallationID  string
	RepoFullName    string // "owner/name"
	PRNumber        int
	Trigger         model.ReviewTrigger
	ExpectedHeadSHA string // set for PR-triggered tasks; empty for COMMAND
	TriggeredBy     string // GitHub login that issued a comment command; empty otherwise
	FocusHint       string // optional steering text for comment-triggered variants (explain, security)
}

// Engine runs the ReviewEngine pipeline.
type Engine struct {
	store   store.Store
	hosting HostingClient
	ai      AIClient
	budget  *budget.Tracker
	configs *reviewconfig.Loader
	rates   budget.Rates
	metrics *telemetry.Metrics

	maxDiffSizeBytes   int64
	enableLineComments bool
}

// New builds an Engine from its collaborators and the operator-level review
// defaults (cost rates, diff size ceiling, line-comment toggle).
func New(s store.Store, hosting HostingClient, ai AIClient, budgetTracker *budget.Tracker, configs *reviewconfig.Loader, rates budget.Rates, maxDiffSizeBytes int64, enableLineComments bool, metrics *telemetry.Metrics) *Engine {
	return &Engine{
		store:              s,
		hosting:            hosting,
		ai:                 ai,
		budget:             budgetTracker,
		configs:            configs,
		rates:              rates,
		metrics:            metrics,
		maxDiffSizeBytes:   maxDiffSizeBytes,
		enableLineComments: enableLineComments,
	}
}

// run carries everything the pipeline steps need once a task has been
// resolved to a repository and installation, so helper methods don't have
// to thread a dozen parameters individually.
type run struct {
	ctx            context.Context
	task           Task
	review         *model.Review
	repo           *model.Repository
	installation   *model.Installation
	owner, name    string
	cfg            reviewconfig.Config
	ghInstallation int64
}

// Process runs the full gate-check/review/publish pipeline for task. The
// returned error, if any, is typed via reviewerr so the Scheduler can apply
// its retry policy; the Review row itself always reaches a terminal status
// before Process returns, regardless of whether Process also returns an
// error.
func (e *Engine) Process(ctx context.Context, task Task) error {
	owner, name, err := splitFullName(task.RepoFullName)
	if err != nil {
		return reviewerr.Wrap(reviewerr.KindInternalInvariant, "invalid repo_full_name", err)
	}

	repo, err := e.store.Repository().GetByFullName(task.RepoFullName)
	if err != nil {
		return reviewerr.Wrap(reviewerr.KindInternalInvariant, "repository not found", err)
	}
	installation, err := e.store.Installation().GetByID(task.InstallationID)
	if err != nil {
		return reviewerr.Wrap(reviewerr.KindInternalInvariant, "installation not found", err)
	}

	cfg := e.configs.Load(ctx, repo, installation.GitHubInstallationID, owner, name)

	review := &model.Review{
		ID:           idgen.NewReviewID(),
		RepositoryID: repo.ID,
		PRNumber:     task.PRNumber,
		HeadSHA:      task.ExpectedHeadSHA,
		Trigger:      task.Trigger,
		Status:       model.ReviewStatusPending,
	}
	if task.TriggeredBy != "" {
		triggeredBy := task.TriggeredBy
		review.TriggeredBy = &triggeredBy
	}
	if err := e.store.Review().Create(review); err != nil {
		return reviewerr.Wrap(reviewerr.KindInternalInvariant, "creating review row", err)
	}

	log := logger.WithReviewContext(review.ID)
	ctx, span := telemetry.StartSpan(ctx, "reviewengine.Process", trace.WithAttributes(
		telemetry.AttrReviewID.String(review.ID),
		telemetry.AttrRepoFullName.String(task.RepoFullName),
	))
	defer span.End()

	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordReviewStarted(ctx, string(task.Trigger), "github")
	}

	rc := &run{
		ctx:            ctx,
		task:           task,
		review:         review,
		repo:           repo,
		installation:   installation,
		owner:          owner,
		name:           name,
		cfg:            cfg,
		ghInstallation: installation.GitHubInstallationID,
	}

	runErr := e.runPipeline(rc)

	if e.metrics != nil {
		e.metrics.RecordReviewCompleted(ctx, string(review.Status), time.Since(start).Seconds())
	}
	if runErr != nil {
		telemetry.SetSpanError(span, runErr)
		log.Warn("review pipeline ended with error", zap.Error(runErr), zap.String("status", string(review.Status)))
	} else {
		telemetry.SetSpanOK(span)
	}
	return runErr
}

// runPipeline implements the gate sequence and pipeline steps of the
// spec's state diagram. It always leaves rc.review in a terminal status
// before returning.
func (e *Engine) runPipeline(rc *run) error {
	if reason, ok := e.checkGates(rc); !ok {
		return e.skip(rc, reason)
	}

	now := time.Now()
	if _, err := e.store.Review().UpdateStatusToRunningIfPending(rc.review.ID, now); err != nil {
		return e.fail(rc, reviewerr.Wrap(reviewerr.KindInternalInvariant, "transitioning review to in_progress", err))
	}
	rc.review.Status = model.ReviewStatusInProgress
	rc.review.StartedAt = &now
	rc.review.ConfigSnapshot = configSnapshot(rc.cfg)
	if err := e.store.Review().Save(rc.review); err != nil {
		return e.fail(rc, reviewerr.Wrap(reviewerr.KindInternalInvariant, "saving config snapshot", err))
	}

	pr, err := e.hosting.GetPullRequest(rc.ctx, rc.ghInstallation, rc.owner, rc.name, rc.task.PRNumber)
	if err != nil {
		return e.fail(rc, err)
	}
	rc.review.PRTitle = pr.Title
	rc.review.PRAuthor = pr.Author
	rc.review.HeadSHA = pr.HeadSHA
	rc.review.BaseSHA = pr.BaseSHA
	if err := e.store.Review().Save(rc.review); err != nil {
		return e.fail(rc, reviewerr.Wrap(reviewerr.KindInternalInvariant, "saving pr metadata", err))
	}

	maxFiles := rc.cfg.MaxFiles
	if maxFiles <= 0 {
		maxFiles = 50
	}
	if pr.ChangedFiles > maxFiles {
		e.postComment(rc, fmt.Sprintf(
			"Skipping review: this pull request changes %d files, more than the configured limit of %d.",
			pr.ChangedFiles, maxFiles))
		return e.skip(rc, "too many files changed")
	}

	diffText, err := e.hosting.GetPullRequestDiff(rc.ctx, rc.ghInstallation, rc.owner, rc.name, rc.task.PRNumber)
	if err != nil {
		return e.fail(rc, err)
	}
	if int64(len(diffText)) > e.maxDiffSizeBytes {
		e.postComment(rc, "Skipping review: this pull request's diff is too large to review automatically.")
		return e.skip(rc, "diff too large")
	}

	retained, index, err := filterDiff(diffText, rc.cfg.Paths.Include, rc.cfg.Paths.Exclude)
	if err != nil {
		return e.fail(rc, reviewerr.Wrap(reviewerr.KindInternalInvariant, "compiling path filter", err))
	}
	if len(retained) == 0 {
		return e.complete(rc, nil, completionInput{
			summary:       "No files to review after applying path filters.",
			riskLevel:     "low",
			filesReviewed: 0,
		})
	}

	checkRunID, crErr := e.hosting.CreateCheckRun(rc.ctx, rc.ghInstallation, rc.owner, rc.name, ghclient.CheckRunOptions{
		Name:    "AI Code Review",
		HeadSHA: rc.review.HeadSHA,
		Status:  "in_progress",
		Title:   "Reviewing pull request",
		Summary: "The AI reviewer is analyzing this pull request.",
	})
	if crErr != nil {
		logger.WithReviewContext(rc.review.ID).Warn("check run creation failed, continuing without one", zap.Error(crErr))
	} else {
		rc.review.GitHubCheckRunID = &checkRunID
		_ = e.store.Review().Save(rc.review)
	}

	contextContent := e.loadContextFiles(rc, rc.cfg.ContextFiles)

	if superseded, shortSHA := e.isSuperseded(rc); superseded {
		return e.supersede(rc, shortSHA)
	}

	modelName := rc.cfg.Model
	if modelName == "" {
		modelName = "claude-sonnet-4-5"
	}
	rc.review.Model = modelName
	rc.review.UserPrompt = diffText

	if superseded, shortSHA := e.isSuperseded(rc); superseded {
		return e.supersede(rc, shortSHA)
	}

	additionalInstructions := rc.cfg.AdditionalInstructions
	if rc.task.FocusHint != "" {
		additionalInstructions = strings.TrimSpace(additionalInstructions + "\n" + rc.task.FocusHint)
	}

	req := aireviewer.Request{
		DiffText:               diffText,
		PRTitle:                rc.review.PRTitle,
		PRDescription:          pr.Body,
		ContextContent:         contextContent,
		Rules:                  rc.cfg.Rules.ToRuleSet(),
		Languages:              rc.cfg.Languages,
		Frameworks:             rc.cfg.Frameworks,
		AdditionalInstructions: additionalInstructions,
		Model:                  modelName,
	}

	resp, err := e.ai.Review(rc.ctx, req)
	if err != nil {
		return e.fail(rc, err)
	}

	costCents := budget.CostCents(e.rates, resp.InputTokens, resp.OutputTokens)
	matched, inline := e.mapCommentsToDiff(rc.review.ID, resp.Comments, index)

	if e.metrics != nil {
		byCategory := map[string]int64{}
		for _, c := range matched {
			byCategory[c.Category]++
		}
		for cat, n := range byCategory {
			e.metrics.RecordFindings(rc.ctx, cat, n)
		}
	}

	body := formatSummaryBody(resp.Summary, resp.RiskLevel, len(matched), len(retained), costCents)
	if !e.enableLineComments {
		inline = nil
	}

	hostReviewID, err := e.hosting.CreateReview(rc.ctx, rc.ghInstallation, rc.owner, rc.name, rc.task.PRNumber, rc.review.HeadSHA, body, "COMMENT", inline)
	if err != nil {
		return e.fail(rc, err)
	}

	return e.complete(rc, matched, completionInput{
		summary:       resp.Summary,
		riskLevel:     resp.RiskLevel,
		filesReviewed: len(retained),
		inputTokens:   resp.InputTokens,
		outputTokens:  resp.OutputTokens,
		costCents:     costCents,
		hostReviewID:  &hostReviewID,
	})
}

// splitFullName splits "owner/name" into its two parts.
func splitFullName(fullName string) (owner, name string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed repo_full_name %q", fullName)
	}
	return parts[0], parts[1], nil
}

func configSnapshot(cfg reviewconfig.Config) model.JSONMap {
	return model.JSONMap{
		"auto_review": cfg.AutoReview,
		"review_on":   cfg.ReviewOn,
		"max_files":   cfg.MaxFiles,
		"model":       cfg.Model,
	}
}

func currentYearMonth() (int, int) {
	now := time.Now().UTC()
	return now.Year(), int(now.Month())
}

// asReviewErr unwraps err to a *reviewerr.Error if possible, otherwise
// wraps it as a non-retryable internal invariant violation.
func asReviewErr(err error) *reviewerr.Error {
	var rerr *reviewerr.Error
	if errors.As(err, &rerr) {
		return rerr
	}
	return reviewerr.Wrap(reviewerr.KindInternalInvariant, "review pipeline failed", err)
}
