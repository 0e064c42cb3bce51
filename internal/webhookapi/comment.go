package webhookapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/aireviewer/reviewerd/internal/commands"
	"github.com/aireviewer/reviewerd/internal/model"
	"github.com/aireviewer/reviewerd/internal/reviewconfig"
	"github.com/aireviewer/reviewerd/internal/reviewengine"
	"github.com/aireviewer/reviewerd/pkg/logger"
)

// CommentTask is the Scheduler payload for a parsed comment command,
// submitted with no delay and no lock key per spec.md §4.6.
type CommentTask struct {
	InstallationID       string
	GitHubInstallationID int64
	RepoFullName         string
	Owner, Name          string
	PRNumber             int
	TriggeredBy          string
	Command              commands.ParsedCommand
}

// handleIssueCommentEvent parses action=created comments on a pull request
// for a configured trigger phrase, and submits process_comment_command with
// no delay and no lock key. Comments on plain issues (not PRs), edits, and
// deletions are ignored.
func (d *Dispatcher) handleIssueCommentEvent(c *gin.Context, event *github.IssueCommentEvent) {
	if event.GetAction() != "created" || !event.GetIssue().IsPullRequest() {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "event": "issue_comment"})
		return
	}

	parsed := d.commands.Parse(event.GetComment().GetBody())
	if parsed == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "event": "issue_comment", "reason": "no trigger phrase"})
		return
	}

	fullName := event.GetRepo().GetFullName()
	repo, err := d.store.Repository().GetByFullName(fullName)
	if err != nil {
		logger.Warn("issue_comment command for unknown repository", zap.String("repo", fullName), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "event": "issue_comment", "reason": "repository not installed"})
		return
	}

	owner, name, err := splitFullName(fullName)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "event": "issue_comment", "reason": "malformed repo name"})
		return
	}

	task := CommentTask{
		InstallationID:       repo.InstallationID,
		GitHubInstallationID: event.GetInstallation().GetID(),
		RepoFullName:         fullName,
		Owner:                owner,
		Name:                 name,
		PRNumber:             event.GetIssue().GetNumber(),
		TriggeredBy:          event.GetComment().GetUser().GetLogin(),
		Command:              *parsed,
	}

	job := d.scheduler.Submit(processCommentCommandTask, task, 0, "")
	logger.Info("scheduled comment command",
		zap.String("job_id", job.ID),
		zap.String("command", string(parsed.Type)),
		zap.String("repo", fullName),
		zap.Int("pr_number", task.PRNumber),
	)

	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled", "job_id": job.ID})
}

// ProcessCommentCommand runs one parsed comment command. review/explain/
// security route into the ReviewEngine as a COMMAND-triggered review;
// help/config/ignore are handled directly with a single best-effort PR
// comment, without invoking the pipeline.
func (d *Dispatcher) ProcessCommentCommand(ctx context.Context, engine *reviewengine.Engine, loader *reviewconfig.Loader, task CommentTask) error {
	switch task.Command.Type {
	case commands.TypeReview:
		return engine.Process(ctx, reviewengine.Task{
			InstallationID: task.InstallationID,
			RepoFullName:   task.RepoFullName,
			PRNumber:       task.PRNumber,
			Trigger:        model.ReviewTriggerCommand,
			TriggeredBy:    task.TriggeredBy,
		})
	case commands.TypeExplain:
		return engine.Process(ctx, reviewengine.Task{
			InstallationID: task.InstallationID,
			RepoFullName:   task.RepoFullName,
			PRNumber:       task.PRNumber,
			Trigger:        model.ReviewTriggerCommand,
			TriggeredBy:    task.TriggeredBy,
			FocusHint:      "Explain what this change does in plain English; do not flag style nitpicks.",
		})
	case commands.TypeSecurity:
		return engine.Process(ctx, reviewengine.Task{
			InstallationID: task.InstallationID,
			RepoFullName:   task.RepoFullName,
			PRNumber:       task.PRNumber,
			Trigger:        model.ReviewTriggerCommand,
			TriggeredBy:    task.TriggeredBy,
			FocusHint:      "Focus exclusively on security vulnerabilities; ignore style and performance concerns.",
		})
	case commands.TypeIgnore:
		return d.handleIgnoreCommand(ctx, task)
	case commands.TypeConfig:
		return d.handleConfigCommand(ctx, loader, task)
	default:
		return d.postComment(ctx, task, d.commands.FormatHelp())
	}
}

func (d *Dispatcher) handleIgnoreCommand(ctx context.Context, task CommentTask) error {
	repo, err := d.store.Repository().GetByFullName(task.RepoFullName)
	if err != nil {
		return err
	}
	if err := d.store.Repository().SetEnabled(repo.ID, false); err != nil {
		return err
	}
	return d.postComment(ctx, task, "Automatic reviews are now disabled for this repository. Re-enable them from your installation settings.")
}

func (d *Dispatcher) handleConfigCommand(ctx context.Context, loader *reviewconfig.Loader, task CommentTask) error {
	repo, err := d.store.Repository().GetByFullName(task.RepoFullName)
	if err != nil {
		return err
	}
	cfg := loader.Load(ctx, repo, task.GitHubInstallationID, task.Owner, task.Name)

	var b strings.Builder
	b.WriteString("## Active configuration\n\n")
	b.WriteString("```yaml\n")
	b.WriteString(configAsYAMLSummary(cfg))
	b.WriteString("\n```\n")
	return d.postComment(ctx, task, b.String())
}

func configAsYAMLSummary(cfg reviewconfig.Config) string {
	return fmt.Sprintf("auto_review: %t\nreview_on: [%s]\nmax_files: %d\nmodel: %s",
		cfg.AutoReview, strings.Join(cfg.ReviewOn, ", "), cfg.MaxFiles, cfg.Model)
}

func (d *Dispatcher) postComment(ctx context.Context, task CommentTask, body string) error {
	_, err := d.hosting.CreateIssueComment(ctx, task.GitHubInstallationID, task.Owner, task.Name, task.PRNumber, body)
	return err
}
