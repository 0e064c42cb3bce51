package reviewengine

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aireviewer/reviewerd/internal/aireviewer"
	"github.com/aireviewer/reviewerd/internal/diffparser"
	"github.com/aireviewer/reviewerd/internal/ghclient"
	"github.com/aireviewer/reviewerd/internal/model"
	"github.com/aireviewer/reviewerd/internal/reviewerr"
	"github.com/aireviewer/reviewerd/internal/store"
	"github.com/aireviewer/reviewerd/pkg/logger"
)

// completionInput carries the fields that vary between a no-op "nothing to
// review" completion and a full AI-reviewed completion.
type completionInput struct {
	summary       string
	riskLevel     string
	filesReviewed int
	inputTokens   int
	outputTokens  int
	costCents     int
	hostReviewID  *int64
}

// complete persists a COMPLETED Review, its comments, and (when the call
// produced billable token usage) the monthly UsageRecord delta, all in one
// transaction, then finalizes the check run.
func (e *Engine) complete(rc *run, comments []model.ReviewComment, in completionInput) error {
	now := time.Now()
	summary, riskLevel := in.summary, in.riskLevel

	rc.review.Status = model.ReviewStatusCompleted
	rc.review.Summary = &summary
	rc.review.RiskLevel = &riskLevel
	rc.review.FilesReviewed = in.filesReviewed
	rc.review.CommentsPosted = len(comments)
	rc.review.InputTokens = in.inputTokens
	rc.review.OutputTokens = in.outputTokens
	rc.review.CostCents = in.costCents
	rc.review.CompletedAt = &now
	if in.hostReviewID != nil {
		rc.review.GitHubReviewID = in.hostReviewID
	}
	for i := range comments {
		comments[i].ReviewID = rc.review.ID
	}

	err := e.store.Transaction(func(tx store.Store) error {
		if err := tx.Review().Save(rc.review); err != nil {
			return err
		}
		if len(comments) > 0 {
			if err := tx.Review().BatchCreateComments(comments); err != nil {
				return err
			}
		}
		if in.inputTokens > 0 || in.outputTokens > 0 || in.costCents > 0 {
			year, month := currentYearMonth()
			if err := tx.Usage().RecordUsage(rc.installation.ID, year, month, in.inputTokens, in.outputTokens, in.costCents); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return e.fail(rc, reviewerr.Wrap(reviewerr.KindInternalInvariant, "committing completed review", err))
	}

	e.finalizeCheckRun(rc, "success")
	return nil
}

// skip transitions the review to SKIPPED for a gate rejection. The returned
// error carries KindGateFailure, which the Scheduler never retries.
func (e *Engine) skip(rc *run, reason string) error {
	rc.review.ErrorMessage = &reason
	if err := e.store.Review().UpdateStatusWithError(rc.review.ID, model.ReviewStatusSkipped, reason); err != nil {
		logger.WithReviewContext(rc.review.ID).Error("failed to persist skipped review", zap.Error(err))
	}
	rc.review.Status = model.ReviewStatusSkipped
	e.finalizeCheckRun(rc, "skipped")
	return reviewerr.New(reviewerr.KindGateFailure, reason)
}

// fail transitions the review to FAILED. It preserves err's Kind (and thus
// its retry eligibility) if err already carries one.
func (e *Engine) fail(rc *run, err error) error {
	rerr := asReviewErr(err)
	msg := rerr.Error()
	rc.review.ErrorMessage = &msg
	if uerr := e.store.Review().UpdateStatusWithError(rc.review.ID, model.ReviewStatusFailed, msg); uerr != nil {
		logger.WithReviewContext(rc.review.ID).Error("failed to persist failed review", zap.Error(uerr))
	}
	rc.review.Status = model.ReviewStatusFailed
	e.finalizeCheckRun(rc, "failure")
	return rerr
}

// supersede transitions the review to SUPERSEDED because a newer commit
// arrived before the paid AI call. Never retried.
func (e *Engine) supersede(rc *run, shortSHA string) error {
	msg := fmt.Sprintf("superseded by newer commit %s", shortSHA)
	rc.review.ErrorMessage = &msg
	if err := e.store.Review().UpdateStatusWithError(rc.review.ID, model.ReviewStatusSuperseded, msg); err != nil {
		logger.WithReviewContext(rc.review.ID).Error("failed to persist superseded review", zap.Error(err))
	}
	rc.review.Status = model.ReviewStatusSuperseded
	e.finalizeCheckRun(rc, "cancelled")
	return reviewerr.New(reviewerr.KindSuperseded, msg)
}

// finalizeCheckRun transitions the check run created earlier in the
// pipeline (if any) to its terminal conclusion. Best-effort: a failure here
// is logged, never propagated, since the Review's own status is already
// the source of truth.
func (e *Engine) finalizeCheckRun(rc *run, conclusion string) {
	if rc.review.GitHubCheckRunID == nil {
		return
	}
	title, summary := checkRunFinalOutput(rc.review, conclusion)
	err := e.hosting.UpdateCheckRun(rc.ctx, rc.ghInstallation, rc.owner, rc.name, *rc.review.GitHubCheckRunID, ghclient.CheckRunOptions{
		Name:       "AI Code Review",
		Status:     "completed",
		Conclusion: conclusion,
		Title:      title,
		Summary:    summary,
	})
	if err != nil {
		logger.WithReviewContext(rc.review.ID).Warn("failed to finalize check run", zap.Error(err))
	}
}

func checkRunFinalOutput(review *model.Review, conclusion string) (title, summary string) {
	switch conclusion {
	case "success":
		s := ""
		if review.Summary != nil {
			s = *review.Summary
		}
		return "Review complete", s
	case "skipped":
		reason := ""
		if review.ErrorMessage != nil {
			reason = *review.ErrorMessage
		}
		return "Review skipped", reason
	case "cancelled":
		return "Review superseded", "A newer commit was pushed before this review completed."
	default:
		msg := ""
		if review.ErrorMessage != nil {
			msg = *review.ErrorMessage
		}
		return "Review failed", msg
	}
}

// postComment posts a best-effort top-level PR comment; a failure here is
// logged but never escalated to a pipeline error.
func (e *Engine) postComment(rc *run, body string) {
	if _, err := e.hosting.CreateIssueComment(rc.ctx, rc.ghInstallation, rc.owner, rc.name, rc.task.PRNumber, body); err != nil {
		logger.WithReviewContext(rc.review.ID).Warn("failed to post pr comment", zap.Error(err))
	}
}

// isSuperseded reports whether the PR's current head commit has moved past
// the one this task was scheduled for. Tasks without an expected head SHA
// (comment commands) are never superseded. A lookup failure here is not
// treated as superseded -- the same error will resurface at the next
// hosting call and be handled there.
func (e *Engine) isSuperseded(rc *run) (bool, string) {
	if rc.task.ExpectedHeadSHA == "" {
		return false, ""
	}
	pr, err := e.hosting.GetPullRequest(rc.ctx, rc.ghInstallation, rc.owner, rc.name, rc.task.PRNumber)
	if err != nil {
		return false, ""
	}
	if pr.HeadSHA == rc.task.ExpectedHeadSHA {
		return false, ""
	}
	short := pr.HeadSHA
	if len(short) > 7 {
		short = short[:7]
	}
	return true, short
}

// maxContextFiles caps how many context_files entries loadContextFiles reads.
const maxContextFiles = 5

// loadContextFiles best-effort fetches up to maxContextFiles repository
// paths at the review's head commit and concatenates them for the
// AIReviewer's context blob. A file that fails to load is skipped, not
// fatal.
func (e *Engine) loadContextFiles(rc *run, paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	if len(paths) > maxContextFiles {
		paths = paths[:maxContextFiles]
	}

	var b strings.Builder
	for _, p := range paths {
		content, err := e.hosting.GetFileContent(rc.ctx, rc.ghInstallation, rc.owner, rc.name, p, rc.review.HeadSHA)
		if err != nil {
			logger.WithReviewContext(rc.review.ID).Warn("failed to load context file", zap.String("path", p), zap.Error(err))
			continue
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", p, string(content))
	}
	return b.String()
}

// mapCommentsToDiff converts the AIReviewer's file/line findings into
// ReviewComment rows, and separately builds the subset that map onto a
// known diff position (and so can be posted as GitHub inline comments).
// A comment whose file/line falls outside any hunk is still recorded, just
// without a DiffPosition.
func (e *Engine) mapCommentsToDiff(reviewID string, comments []aireviewer.Comment, index map[string]map[int]diffparser.LinePosition) ([]model.ReviewComment, []ghclient.ReviewComment) {
	var matched []model.ReviewComment
	var inline []ghclient.ReviewComment

	for _, c := range comments {
		mc := model.ReviewComment{
			ReviewID:   reviewID,
			FilePath:   c.File,
			LineNumber: c.Line,
			Severity:   commentSeverity(c.Severity),
			Category:   c.Category,
			Message:    c.Message,
		}
		if c.SuggestedFix != "" {
			fix := c.SuggestedFix
			mc.SuggestedFix = &fix
		}

		if fileIndex, ok := index[c.File]; ok {
			if pos, ok := fileIndex[c.Line]; ok {
				diffPos := pos.DiffPosition
				mc.DiffPosition = &diffPos
				inline = append(inline, ghclient.ReviewComment{
					Path:     c.File,
					Position: diffPos,
					Body:     formatComment(c),
				})
			}
		}

		matched = append(matched, mc)
	}

	return matched, inline
}

func commentSeverity(raw string) model.CommentSeverity {
	switch model.CommentSeverity(strings.ToLower(raw)) {
	case model.CommentSeverityCritical, model.CommentSeverityWarning, model.CommentSeveritySuggestion,
		model.CommentSeverityNitpick, model.CommentSeverityPraise:
		return model.CommentSeverity(strings.ToLower(raw))
	default:
		return model.CommentSeveritySuggestion
	}
}

// formatComment renders a single finding as GitHub-flavored markdown for an
// inline review comment.
func formatComment(c aireviewer.Comment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] **%s**: %s", strings.ToUpper(c.Severity), c.Category, c.Message)
	if c.SuggestedFix != "" {
		fmt.Fprintf(&b, "\n\n```suggestion\n%s\n```", c.SuggestedFix)
	}
	return b.String()
}

// formatSummaryBody renders the top-level review body posted alongside any
// inline comments.
func formatSummaryBody(summary, riskLevel string, commentCount, filesReviewed, costCents int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## AI Code Review\n\n**Risk level:** %s\n\n%s\n\n", strings.ToUpper(riskLevel), summary)
	fmt.Fprintf(&b, "_%d files reviewed, %d comments, $%.2f estimated cost._", filesReviewed, commentCount, float64(costCents)/100)
	return b.String()
}
