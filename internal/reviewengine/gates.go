package reviewengine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/aireviewer/reviewerd/internal/model"
	"github.com/aireviewer/reviewerd/pkg/logger"
)

// checkGates runs the pre-review gates in order: repository enabled, (for
// non-command triggers) auto_review and review_on, then monthly budget. It
// returns the human-readable skip reason and false on the first gate that
// rejects the review.
func (e *Engine) checkGates(rc *run) (string, bool) {
	if !rc.repo.IsEnabled {
		return "reviews are disabled for this repository", false
	}

	if rc.task.Trigger != model.ReviewTriggerCommand {
		if !rc.cfg.AutoReview {
			return "automatic reviews are disabled for this repository", false
		}
		if !reviewOnContains(rc.cfg.ReviewOn, rc.task.Trigger) {
			return fmt.Sprintf("repository is not configured to review on %s", triggerEventName(rc.task.Trigger)), false
		}
	}

	status, err := e.budget.CheckBudget(rc.installation.ID, rc.repo)
	if err != nil {
		logger.WithReviewContext(rc.review.ID).Error("budget check failed", zap.Error(err))
		return "unable to verify the monthly review budget", false
	}
	if !status.HasBudget {
		if e.metrics != nil {
			e.metrics.RecordBudgetSkip(rc.ctx, rc.installation.ID)
		}
		e.postComment(rc, fmt.Sprintf(
			"Skipping automated review: this installation's monthly AI review budget of %d cents has been used up.",
			status.BudgetCents))
		return "monthly review budget exceeded", false
	}

	return "", true
}

// triggerEventName maps a ReviewTrigger to the review_on event name used in
// .aireviewer.yaml.
func triggerEventName(t model.ReviewTrigger) string {
	switch t {
	case model.ReviewTriggerPROpened:
		return "opened"
	case model.ReviewTriggerPRSynchronize:
		return "synchronize"
	case model.ReviewTriggerPRReopened:
		return "reopened"
	default:
		return string(t)
	}
}

func reviewOnContains(reviewOn []string, t model.ReviewTrigger) bool {
	event := triggerEventName(t)
	for _, e := range reviewOn {
		if e == event {
			return true
		}
	}
	return false
}
