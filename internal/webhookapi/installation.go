package webhookapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/aireviewer/reviewerd/internal/model"
	"github.com/aireviewer/reviewerd/pkg/idgen"
	"github.com/aireviewer/reviewerd/pkg/logger"
)

// handleInstallationEvent applies create/delete/suspend/unsuspend
// synchronously against the Installation table, grounded exactly on
// installation_manager.py's handle_installation_event: "created" also
// seeds a Repository row per repository the app was installed against.
func (d *Dispatcher) handleInstallationEvent(c *gin.Context, event *github.InstallationEvent) {
	inst := event.GetInstallation()
	action := event.GetAction()

	switch action {
	case "created":
		installation := &model.Installation{
			ID:                   idgen.NewInstallationID(),
			GitHubInstallationID: inst.GetID(),
			OwnerType:            inst.GetAccount().GetType(),
			OwnerLogin:           inst.GetAccount().GetLogin(),
			OwnerGitHubID:        inst.GetAccount().GetID(),
			IsActive:             true,
		}
		if err := d.store.Installation().Create(installation); err != nil {
			logger.Error("failed to create installation", zap.Int64("github_installation_id", inst.GetID()), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
			return
		}
		for _, repo := range event.Repositories {
			repository := &model.Repository{
				ID:             idgen.NewRepositoryID(),
				InstallationID: installation.ID,
				GitHubRepoID:   repo.GetID(),
				FullName:       repo.GetFullName(),
				DefaultBranch:  defaultBranchOr(repo.GetDefaultBranch(), "main"),
			}
			if err := d.store.Repository().Create(repository); err != nil {
				logger.Error("failed to create repository on installation",
					zap.String("full_name", repository.FullName), zap.Error(err))
			}
		}

	case "deleted":
		installation, err := d.store.Installation().GetByGitHubInstallationID(inst.GetID())
		if err != nil {
			logger.Warn("installation.deleted for unknown installation", zap.Int64("github_installation_id", inst.GetID()))
			break
		}
		if err := d.store.Installation().Delete(installation.ID); err != nil {
			logger.Error("failed to delete installation", zap.String("installation_id", installation.ID), zap.Error(err))
		}

	case "suspend":
		installation, err := d.store.Installation().GetByGitHubInstallationID(inst.GetID())
		if err != nil {
			logger.Warn("installation.suspend for unknown installation", zap.Int64("github_installation_id", inst.GetID()))
			break
		}
		if err := d.store.Installation().Suspend(installation.ID, event.GetSender().GetLogin()); err != nil {
			logger.Error("failed to suspend installation", zap.String("installation_id", installation.ID), zap.Error(err))
		}

	case "unsuspend":
		installation, err := d.store.Installation().GetByGitHubInstallationID(inst.GetID())
		if err != nil {
			logger.Warn("installation.unsuspend for unknown installation", zap.Int64("github_installation_id", inst.GetID()))
			break
		}
		if err := d.store.Installation().Unsuspend(installation.ID); err != nil {
			logger.Error("failed to unsuspend installation", zap.String("installation_id", installation.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed", "event": "installation", "action": action})
}

// handleInstallationRepositoriesEvent applies add/remove synchronously
// against the Repository table, grounded on installation_manager.py's
// handle_repos_event.
func (d *Dispatcher) handleInstallationRepositoriesEvent(c *gin.Context, event *github.InstallationRepositoriesEvent) {
	action := event.GetAction()

	installation, err := d.store.Installation().GetByGitHubInstallationID(event.GetInstallation().GetID())
	if err != nil {
		logger.Warn("installation_repositories event for unknown installation",
			zap.Int64("github_installation_id", event.GetInstallation().GetID()))
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "event": "installation_repositories"})
		return
	}

	switch action {
	case "added":
		for _, repo := range event.RepositoriesAdded {
			repository := &model.Repository{
				ID:             idgen.NewRepositoryID(),
				InstallationID: installation.ID,
				GitHubRepoID:   repo.GetID(),
				FullName:       repo.GetFullName(),
				DefaultBranch:  defaultBranchOr(repo.GetDefaultBranch(), "main"),
			}
			if err := d.store.Repository().Create(repository); err != nil {
				logger.Error("failed to create added repository",
					zap.String("full_name", repository.FullName), zap.Error(err))
			}
		}

	case "removed":
		for _, repo := range event.RepositoriesRemoved {
			existing, err := d.store.Repository().GetByGitHubRepoID(repo.GetID())
			if err != nil {
				continue
			}
			if err := d.store.Repository().Delete(existing.ID); err != nil {
				logger.Error("failed to delete removed repository",
					zap.String("full_name", existing.FullName), zap.Error(err))
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed", "event": "installation_repositories", "action": action})
}

func defaultBranchOr(branch, fallback string) string {
	if branch == "" {
		return fallback
	}
	return branch
}
