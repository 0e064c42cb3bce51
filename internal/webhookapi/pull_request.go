package webhookapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/aireviewer/reviewerd/internal/reviewengine"
	"github.com/aireviewer/reviewerd/pkg/logger"
)

// handlePullRequestEvent schedules a debounced, lock-keyed review job for
// opened/synchronize/reopened actions. Other actions (closed, labeled, …)
// are acknowledged but never trigger a review.
func (d *Dispatcher) handlePullRequestEvent(c *gin.Context, event *github.PullRequestEvent) {
	action := event.GetAction()
	trigger, ok := reviewTrigger(action)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "event": "pull_request", "action": action})
		return
	}

	repo, err := d.store.Repository().GetByFullName(event.GetRepo().GetFullName())
	if err != nil {
		logger.Warn("pull_request event for unknown repository",
			zap.String("repo", event.GetRepo().GetFullName()), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "event": "pull_request", "reason": "repository not installed"})
		return
	}

	task := reviewengine.Task{
		InstallationID:  repo.InstallationID,
		RepoFullName:    event.GetRepo().GetFullName(),
		PRNumber:        event.GetNumber(),
		Trigger:         trigger,
		ExpectedHeadSHA: event.GetPullRequest().GetHead().GetSHA(),
	}

	lockKey := fmt.Sprintf("pr:%s:%d", task.RepoFullName, task.PRNumber)
	job := d.scheduler.Submit(reviewPullRequestTask, task, time.Duration(d.debounceDelay)*time.Second, lockKey)

	logger.Info("scheduled pull request review",
		zap.String("job_id", job.ID),
		zap.String("lock_key", lockKey),
		zap.String("action", action),
		zap.String("head_sha", task.ExpectedHeadSHA),
	)

	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled", "job_id": job.ID})
}
