package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/aireviewer/reviewerd/internal/model"
)

// RepositoryStore defines operations for the Repository model: a single
// GitHub repository covered by an Installation.
type RepositoryStore interface {
	Create(repository *model.Repository) error
	GetByID(id string) (*model.Repository, error)
	GetByGitHubRepoID(githubRepoID int64) (*model.Repository, error)
	GetByFullName(fullName string) (*model.Repository, error)
	Update(repository *model.Repository) error
	Delete(id string) error

	ListByInstallation(installationID string) ([]model.Repository, error)
	ListEnabled() ([]model.Repository, error)

	SetEnabled(id string, enabled bool) error
	UpdateConfig(id string, configYAML model.JSONMap, fetchedAt time.Time) error
}

type repositoryStore struct {
	db *gorm.DB
}

func newRepositoryStore(db *gorm.DB) RepositoryStore {
	return &repositoryStore{db: db}
}

func (s *repositoryStore) Create(repository *model.Repository) error {
	return s.db.Create(repository).Error
}

func (s *repositoryStore) GetByID(id string) (*model.Repository, error) {
	var repository model.Repository
	if err := s.db.First(&repository, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &repository, nil
}

func (s *repositoryStore) GetByGitHubRepoID(githubRepoID int64) (*model.Repository, error) {
	var repository model.Repository
	err := s.db.First(&repository, "git_hub_repo_id = ?", githubRepoID).Error
	if err != nil {
		return nil, err
	}
	return &repository, nil
}

func (s *repositoryStore) GetByFullName(fullName string) (*model.Repository, error) {
	var repository model.Repository
	err := s.db.First(&repository, "full_name = ?", fullName).Error
	if err != nil {
		return nil, err
	}
	return &repository, nil
}

func (s *repositoryStore) Update(repository *model.Repository) error {
	return s.db.Save(repository).Error
}

func (s *repositoryStore) Delete(id string) error {
	return s.db.Delete(&model.Repository{}, "id = ?", id).Error
}

func (s *repositoryStore) ListByInstallation(installationID string) ([]model.Repository, error) {
	var repositories []model.Repository
	err := s.db.Where("installation_id = ?", installationID).Order("full_name ASC").Find(&repositories).Error
	return repositories, err
}

func (s *repositoryStore) ListEnabled() ([]model.Repository, error) {
	var repositories []model.Repository
	err := s.db.Where("is_enabled = ?", true).Find(&repositories).Error
	return repositories, err
}

func (s *repositoryStore) SetEnabled(id string, enabled bool) error {
	return s.db.Model(&model.Repository{}).Where("id = ?", id).Update("is_enabled", enabled).Error
}

func (s *repositoryStore) UpdateConfig(id string, configYAML model.JSONMap, fetchedAt time.Time) error {
	return s.db.Model(&model.Repository{}).Where("id = ?", id).Updates(map[string]interface{}{
		"config_yaml":       configYAML,
		"config_fetched_at": fetchedAt,
	}).Error
}
