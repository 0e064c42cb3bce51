// Package store provides test utilities for database testing.
package store

import (
	"os"
	"testing"

	"gorm.io/gorm"

	"github.com/aireviewer/reviewerd/internal/database"
	"github.com/aireviewer/reviewerd/internal/model"
	"github.com/aireviewer/reviewerd/pkg/idgen"
)

// SetupTestDB creates a temp-file SQLite database for testing and returns a
// Store instance plus a cleanup function. The cleanup function should be
// called with defer in tests.
func SetupTestDB(t *testing.T) (Store, func()) {
	database.ResetForTesting()

	tmpFile, err := os.CreateTemp("", "reviewerd_test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	if err := database.InitWithPath(tmpPath); err != nil {
		os.Remove(tmpPath)
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	db := database.Get()
	s := NewStore(db)

	cleanup := func() {
		database.Close()
		database.ResetForTesting()
		os.Remove(tmpPath)
	}

	return s, cleanup
}

// SetupTestDBWithModels creates a temp-file SQLite database and runs
// migrations, returning the raw *gorm.DB for tests that need lower-level
// access than the Store interface offers.
func SetupTestDBWithModels(t *testing.T) (*gorm.DB, func()) {
	database.ResetForTesting()

	tmpFile, err := os.CreateTemp("", "reviewerd_test_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()

	if err := database.InitWithPath(tmpPath); err != nil {
		os.Remove(tmpPath)
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	db := database.Get()

	cleanup := func() {
		database.Close()
		database.ResetForTesting()
		os.Remove(tmpPath)
	}

	return db, cleanup
}

// CreateTestInstallation creates a test Installation with default values.
func CreateTestInstallation(t *testing.T, s Store, overrides ...func(*model.Installation)) *model.Installation {
	installation := &model.Installation{
		ID:                   idgen.NewInstallationID(),
		GitHubInstallationID: int64(1000000 + len(t.Name())),
		OwnerType:            "Organization",
		OwnerLogin:           "test-org",
		OwnerGitHubID:        424242,
		IsActive:             true,
		MonthlyBudgetCents:   10000,
	}

	for _, override := range overrides {
		override(installation)
	}

	if err := s.Installation().Create(installation); err != nil {
		t.Fatalf("Failed to create test installation: %v", err)
	}

	return installation
}

// CreateTestRepository creates a test Repository with default values.
func CreateTestRepository(t *testing.T, s Store, installationID string, overrides ...func(*model.Repository)) *model.Repository {
	repository := &model.Repository{
		ID:             idgen.NewRepositoryID(),
		InstallationID: installationID,
		GitHubRepoID:   int64(2000000 + len(t.Name())),
		FullName:       "test-org/test-repo",
		DefaultBranch:  "main",
		IsEnabled:      true,
		AutoReview:     true,
	}

	for _, override := range overrides {
		override(repository)
	}

	if err := s.Repository().Create(repository); err != nil {
		t.Fatalf("Failed to create test repository: %v", err)
	}

	return repository
}

// CreateTestReview creates a test Review with default values.
func CreateTestReview(t *testing.T, s Store, repositoryID string, overrides ...func(*model.Review)) *model.Review {
	review := &model.Review{
		ID:           idgen.NewReviewID(),
		RepositoryID: repositoryID,
		PRNumber:     1,
		PRTitle:      "Test PR",
		PRAuthor:     "octocat",
		HeadSHA:      "0123456789abcdef0123456789abcdef01234567",
		BaseSHA:      "abcdef0123456789abcdef0123456789abcdef01",
		Status:       model.ReviewStatusPending,
		Trigger:      model.ReviewTriggerPROpened,
	}

	for _, override := range overrides {
		override(review)
	}

	if err := s.Review().Create(review); err != nil {
		t.Fatalf("Failed to create test review: %v", err)
	}

	return review
}
