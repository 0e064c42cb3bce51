// Package model defines the data models for the application.
// All models use GORM for ORM operations with SQLite database.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// StringArray is a custom type for storing string arrays in SQLite
type StringArray []string

// Value implements driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	return string(data), err
}

// Scan implements sql.Scanner interface
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	}
	return json.Unmarshal(bytes, s)
}

// JSONMap is a custom type for storing JSON maps in SQLite
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	data, err := json.Marshal(j)
	return string(data), err
}

// Scan implements sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	}
	return json.Unmarshal(bytes, j)
}

// Installation represents a GitHub App installation on an org or user account.
type Installation struct {
	ID        string         `gorm:"primarykey;size:20" json:"id"` // xid
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	GitHubInstallationID int64  `gorm:"uniqueIndex;not null" json:"github_installation_id"`
	OwnerType            string `gorm:"size:20;not null" json:"owner_type"` // "User" or "Organization"
	OwnerLogin           string `gorm:"size:255;not null;index" json:"owner_login"`
	OwnerGitHubID        int64  `gorm:"not null" json:"owner_github_id"`

	IsActive    bool       `gorm:"default:true;not null" json:"is_active"`
	SuspendedAt *time.Time `json:"suspended_at,omitempty"`
	SuspendedBy string     `gorm:"size:255" json:"suspended_by,omitempty"`

	// MonthlyBudgetCents is the default monthly AI-spend budget in cents for
	// repositories owned by this installation, absent a per-repository override.
	MonthlyBudgetCents int `gorm:"not null;default:10000" json:"monthly_budget_cents"`

	Repositories []Repository  `gorm:"foreignKey:InstallationID" json:"repositories,omitempty"`
	UsageRecords []UsageRecord `gorm:"foreignKey:InstallationID" json:"usage_records,omitempty"`
}

// Repository represents a single GitHub repository covered by an installation.
type Repository struct {
	ID        string         `gorm:"primarykey;size:20" json:"id"` // xid
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	InstallationID string `gorm:"size:20;not null;index" json:"installation_id"`
	GitHubRepoID   int64  `gorm:"uniqueIndex;not null" json:"github_repo_id"`
	FullName       string `gorm:"size:255;not null;index" json:"full_name"` // "owner/name"
	DefaultBranch  string `gorm:"size:255;not null;default:main" json:"default_branch"`

	IsEnabled  bool `gorm:"default:true;not null" json:"is_enabled"`
	AutoReview bool `gorm:"default:true;not null" json:"auto_review"`

	// MonthlyBudgetCentsOverride, when set, overrides the owning
	// installation's monthly budget for this repository only.
	MonthlyBudgetCentsOverride *int `json:"monthly_budget_cents_override,omitempty"`

	// ConfigYAML caches the parsed .aireviewer.yaml contents (as a JSON blob);
	// ConfigFetchedAt records when it was last refreshed from the default branch.
	ConfigYAML      JSONMap    `gorm:"type:json" json:"config_yaml,omitempty"`
	ConfigFetchedAt *time.Time `json:"config_fetched_at,omitempty"`

	Reviews []Review `gorm:"foreignKey:RepositoryID" json:"reviews,omitempty"`
}

// ReviewStatus represents the lifecycle status of a Review.
type ReviewStatus string

const (
	ReviewStatusPending    ReviewStatus = "pending"
	ReviewStatusInProgress ReviewStatus = "in_progress"
	ReviewStatusCompleted  ReviewStatus = "completed"
	ReviewStatusFailed     ReviewStatus = "failed"
	ReviewStatusSkipped    ReviewStatus = "skipped"
	ReviewStatusSuperseded ReviewStatus = "superseded"
)

// IsTerminal reports whether the status is one the Review never leaves.
func (s ReviewStatus) IsTerminal() bool {
	switch s {
	case ReviewStatusCompleted, ReviewStatusFailed, ReviewStatusSkipped, ReviewStatusSuperseded:
		return true
	default:
		return false
	}
}

// ReviewTrigger records what caused a Review to be scheduled.
type ReviewTrigger string

const (
	ReviewTriggerPROpened      ReviewTrigger = "pr_opened"
	ReviewTriggerPRSynchronize ReviewTrigger = "pr_synchronize"
	ReviewTriggerPRReopened    ReviewTrigger = "pr_reopened"
	ReviewTriggerCommand       ReviewTrigger = "command"
)

// Review is the central state entity: one row per scheduled/attempted review
// of a single PR head commit.
type Review struct {
	ID        string    `gorm:"primarykey;size:20" json:"id"` // xid
	CreatedAt time.Time `json:"created_at"`

	RepositoryID string `gorm:"size:20;not null;index" json:"repository_id"`

	PRNumber int    `gorm:"not null;index" json:"pr_number"`
	PRTitle  string `gorm:"size:1024" json:"pr_title"`
	PRAuthor string `gorm:"size:255" json:"pr_author"`

	HeadSHA string `gorm:"size:40;not null;index" json:"head_sha"`
	BaseSHA string `gorm:"size:40" json:"base_sha"`

	Status      ReviewStatus  `gorm:"size:20;not null;default:pending;index" json:"status"`
	Trigger     ReviewTrigger `gorm:"size:20;not null" json:"trigger"`
	TriggeredBy *string       `gorm:"size:255" json:"triggered_by,omitempty"`

	Summary   *string `gorm:"type:text" json:"summary,omitempty"`
	RiskLevel *string `gorm:"size:20" json:"risk_level,omitempty"` // low, medium, high, critical

	GitHubReviewID   *int64 `json:"github_review_id,omitempty"`
	GitHubCheckRunID *int64 `json:"github_check_run_id,omitempty"`

	FilesReviewed  int `gorm:"default:0" json:"files_reviewed"`
	CommentsPosted int `gorm:"default:0" json:"comments_posted"`

	InputTokens  int `gorm:"default:0" json:"input_tokens"`
	OutputTokens int `gorm:"default:0" json:"output_tokens"`
	CostCents    int `gorm:"default:0" json:"cost_cents"`

	ErrorMessage *string `gorm:"type:text" json:"error_message,omitempty"`

	// ConfigSnapshot records the auto_review, review_on, max_files and model
	// settings of the ReviewConfig in effect at the moment this Review entered
	// IN_PROGRESS, captured for audit purposes; paths, rules and the other
	// config fields are not captured.
	ConfigSnapshot JSONMap `gorm:"type:json" json:"config_snapshot,omitempty"`

	Model        string `gorm:"size:255" json:"model,omitempty"`
	SystemPrompt string `gorm:"type:text" json:"system_prompt,omitempty"`
	UserPrompt   string `gorm:"type:text" json:"user_prompt,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Comments []ReviewComment `gorm:"foreignKey:ReviewID" json:"comments,omitempty"`
}

// CommentSeverity classifies a single review comment.
type CommentSeverity string

const (
	CommentSeverityCritical   CommentSeverity = "critical"
	CommentSeverityWarning    CommentSeverity = "warning"
	CommentSeveritySuggestion CommentSeverity = "suggestion"
	CommentSeverityNitpick    CommentSeverity = "nitpick"
	CommentSeverityPraise     CommentSeverity = "praise"
)

// ReviewComment is a single inline finding posted (or attempted) against a
// Review's diff.
type ReviewComment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ReviewID string `gorm:"size:20;not null;index" json:"review_id"`

	FilePath   string `gorm:"size:1024;not null" json:"file_path"`
	LineNumber int    `gorm:"not null" json:"line_number"`

	// DiffPosition is nil when the finding's line could not be mapped onto
	// the diff (e.g. it falls outside any hunk); such comments are stored but
	// not posted as inline PR comments, and the review summary only counts
	// them.
	DiffPosition *int `json:"diff_position,omitempty"`

	Severity CommentSeverity `gorm:"size:20;not null" json:"severity"`
	Category string          `gorm:"size:50;not null" json:"category"`
	Message  string          `gorm:"type:text;not null" json:"message"`

	SuggestedFix *string `gorm:"type:text" json:"suggested_fix,omitempty"`

	GitHubCommentID *int64 `json:"github_comment_id,omitempty"`
}

// UsageRecord aggregates one installation's AI spend for one calendar month.
type UsageRecord struct {
	ID        string    `gorm:"primarykey;size:20" json:"id"` // xid
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	InstallationID string `gorm:"size:20;not null;uniqueIndex:uq_installation_year_month" json:"installation_id"`
	Year           int    `gorm:"not null;uniqueIndex:uq_installation_year_month" json:"year"`
	Month          int    `gorm:"not null;uniqueIndex:uq_installation_year_month" json:"month"`

	TotalInputTokens  int `gorm:"not null;default:0" json:"total_input_tokens"`
	TotalOutputTokens int `gorm:"not null;default:0" json:"total_output_tokens"`
	TotalCostCents    int `gorm:"not null;default:0" json:"total_cost_cents"`
	TotalReviews      int `gorm:"not null;default:0" json:"total_reviews"`
}

// AllModels returns all models for auto-migration.
func AllModels() []interface{} {
	return []interface{}{
		&Installation{},
		&Repository{},
		&Review{},
		&ReviewComment{},
		&UsageRecord{},
	}
}
