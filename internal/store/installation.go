package store

import (
	"gorm.io/gorm"

	"github.com/aireviewer/reviewerd/internal/model"
)

// InstallationStore defines operations for the Installation model: the
// tenant record created when an operator installs the GitHub App.
type InstallationStore interface {
	Create(installation *model.Installation) error
	GetByID(id string) (*model.Installation, error)
	GetByGitHubInstallationID(githubInstallationID int64) (*model.Installation, error)
	GetByIDWithRepositories(id string) (*model.Installation, error)
	Update(installation *model.Installation) error
	Delete(id string) error

	List() ([]model.Installation, error)
	ListActive() ([]model.Installation, error)

	Suspend(id string, suspendedBy string) error
	Unsuspend(id string) error
	UpdateMonthlyBudget(id string, budgetCents int) error
}

type installationStore struct {
	db *gorm.DB
}

func newInstallationStore(db *gorm.DB) InstallationStore {
	return &installationStore{db: db}
}

func (s *installationStore) Create(installation *model.Installation) error {
	return s.db.Create(installation).Error
}

func (s *installationStore) GetByID(id string) (*model.Installation, error) {
	var installation model.Installation
	if err := s.db.First(&installation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &installation, nil
}

func (s *installationStore) GetByGitHubInstallationID(githubInstallationID int64) (*model.Installation, error) {
	var installation model.Installation
	err := s.db.First(&installation, "git_hub_installation_id = ?", githubInstallationID).Error
	if err != nil {
		return nil, err
	}
	return &installation, nil
}

func (s *installationStore) GetByIDWithRepositories(id string) (*model.Installation, error) {
	var installation model.Installation
	err := s.db.Preload("Repositories").First(&installation, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &installation, nil
}

func (s *installationStore) Update(installation *model.Installation) error {
	return s.db.Save(installation).Error
}

func (s *installationStore) Delete(id string) error {
	return s.db.Delete(&model.Installation{}, "id = ?", id).Error
}

func (s *installationStore) List() ([]model.Installation, error) {
	var installations []model.Installation
	err := s.db.Order("created_at DESC").Find(&installations).Error
	return installations, err
}

func (s *installationStore) ListActive() ([]model.Installation, error) {
	var installations []model.Installation
	err := s.db.Where("is_active = ?", true).Find(&installations).Error
	return installations, err
}

func (s *installationStore) Suspend(id string, suspendedBy string) error {
	return s.db.Model(&model.Installation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_active":    false,
		"suspended_at": gorm.Expr("CURRENT_TIMESTAMP"),
		"suspended_by": suspendedBy,
	}).Error
}

func (s *installationStore) Unsuspend(id string) error {
	return s.db.Model(&model.Installation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_active":    true,
		"suspended_at": nil,
		"suspended_by": "",
	}).Error
}

func (s *installationStore) UpdateMonthlyBudget(id string, budgetCents int) error {
	return s.db.Model(&model.Installation{}).Where("id = ?", id).
		Update("monthly_budget_cents", budgetCents).Error
}
