package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/aireviewer/reviewerd/internal/model"
)

// ReviewStore defines operations for the Review and ReviewComment models.
type ReviewStore interface {
	// Review CRUD
	Create(review *model.Review) error
	GetByID(id string) (*model.Review, error)
	GetByIDWithComments(id string) (*model.Review, error)
	Update(review *model.Review) error
	Save(review *model.Review) error

	// Status transitions
	//
	// UpdateStatusToRunningIfPending performs the atomic PENDING -> IN_PROGRESS
	// transition used by the ReviewEngine; it reports whether the row
	// actually transitioned.
	UpdateStatusToRunningIfPending(id string, startedAt time.Time) (bool, error)
	UpdateStatusIfAllowed(id string, newStatus model.ReviewStatus, allowedStatuses []model.ReviewStatus) (int64, error)
	UpdateStatus(id string, status model.ReviewStatus) error
	UpdateStatusWithError(id string, status model.ReviewStatus, errMsg string) error
	MarkCompleted(id string, summary, riskLevel string, filesReviewed, commentsPosted int) error

	// Queries
	ListByRepository(repositoryID string, limit, offset int) ([]model.Review, int64, error)
	ListPendingOrRunning() ([]model.Review, error)
	GetLatestForPR(repositoryID string, prNumber int) (*model.Review, error)
	GetByRepositoryAndHeadSHA(repositoryID, headSHA string) (*model.Review, error)

	// ReviewComment operations
	CreateComment(comment *model.ReviewComment) error
	BatchCreateComments(comments []model.ReviewComment) error
	GetCommentsByReviewID(reviewID string) ([]model.ReviewComment, error)
	UpdateCommentGitHubID(id uint, githubCommentID int64) error

	// Statistics
	CountByStatusAndDateRange(status model.ReviewStatus, start, end time.Time) (int64, error)
	SumCostCentsForInstallationMonth(installationID string, year, month int) (int, error)
}

type reviewStore struct {
	db *gorm.DB
}

func newReviewStore(db *gorm.DB) ReviewStore {
	return &reviewStore{db: db}
}

func (s *reviewStore) Create(review *model.Review) error {
	return s.db.Create(review).Error
}

func (s *reviewStore) GetByID(id string) (*model.Review, error) {
	var review model.Review
	if err := s.db.First(&review, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *reviewStore) GetByIDWithComments(id string) (*model.Review, error) {
	var review model.Review
	err := s.db.Preload("Comments").First(&review, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *reviewStore) Update(review *model.Review) error {
	return s.db.Model(review).Updates(review).Error
}

func (s *reviewStore) Save(review *model.Review) error {
	return s.db.Save(review).Error
}

func (s *reviewStore) UpdateStatusToRunningIfPending(id string, startedAt time.Time) (bool, error) {
	result := s.db.Model(&model.Review{}).
		Where("id = ?", id).
		Where("status = ?", model.ReviewStatusPending).
		Updates(map[string]interface{}{
			"status":     model.ReviewStatusInProgress,
			"started_at": startedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *reviewStore) UpdateStatusIfAllowed(id string, newStatus model.ReviewStatus, allowedStatuses []model.ReviewStatus) (int64, error) {
	result := s.db.Model(&model.Review{}).
		Where("id = ? AND status IN ?", id, allowedStatuses).
		Update("status", newStatus)
	return result.RowsAffected, result.Error
}

func (s *reviewStore) UpdateStatus(id string, status model.ReviewStatus) error {
	return s.db.Model(&model.Review{}).Where("id = ?", id).Update("status", status).Error
}

func (s *reviewStore) UpdateStatusWithError(id string, status model.ReviewStatus, errMsg string) error {
	return s.db.Model(&model.Review{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        status,
		"error_message": errMsg,
		"completed_at":  time.Now(),
	}).Error
}

func (s *reviewStore) MarkCompleted(id string, summary, riskLevel string, filesReviewed, commentsPosted int) error {
	return s.db.Model(&model.Review{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          model.ReviewStatusCompleted,
		"summary":         summary,
		"risk_level":      riskLevel,
		"files_reviewed":  filesReviewed,
		"comments_posted": commentsPosted,
		"completed_at":    time.Now(),
	}).Error
}

func (s *reviewStore) ListByRepository(repositoryID string, limit, offset int) ([]model.Review, int64, error) {
	var reviews []model.Review
	var total int64

	query := s.db.Model(&model.Review{}).Where("repository_id = ?", repositoryID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&reviews).Error
	return reviews, total, err
}

func (s *reviewStore) ListPendingOrRunning() ([]model.Review, error) {
	var reviews []model.Review
	err := s.db.Where("status IN ?", []model.ReviewStatus{
		model.ReviewStatusPending,
		model.ReviewStatusInProgress,
	}).Order("created_at ASC").Find(&reviews).Error
	return reviews, err
}

func (s *reviewStore) GetLatestForPR(repositoryID string, prNumber int) (*model.Review, error) {
	var review model.Review
	err := s.db.Where("repository_id = ? AND pr_number = ?", repositoryID, prNumber).
		Order("created_at DESC").
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *reviewStore) GetByRepositoryAndHeadSHA(repositoryID, headSHA string) (*model.Review, error) {
	var review model.Review
	err := s.db.Where("repository_id = ? AND head_sha = ?", repositoryID, headSHA).
		Order("created_at DESC").
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (s *reviewStore) CreateComment(comment *model.ReviewComment) error {
	return s.db.Create(comment).Error
}

func (s *reviewStore) BatchCreateComments(comments []model.ReviewComment) error {
	if len(comments) == 0 {
		return nil
	}
	return s.db.Create(&comments).Error
}

func (s *reviewStore) GetCommentsByReviewID(reviewID string) ([]model.ReviewComment, error) {
	var comments []model.ReviewComment
	err := s.db.Where("review_id = ?", reviewID).Order("line_number ASC").Find(&comments).Error
	return comments, err
}

func (s *reviewStore) UpdateCommentGitHubID(id uint, githubCommentID int64) error {
	return s.db.Model(&model.ReviewComment{}).Where("id = ?", id).
		Update("git_hub_comment_id", githubCommentID).Error
}

func (s *reviewStore) CountByStatusAndDateRange(status model.ReviewStatus, start, end time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&model.Review{}).
		Where("status = ? AND created_at >= ? AND created_at < ?", status, start, end).
		Count(&count).Error
	return count, err
}

func (s *reviewStore) SumCostCentsForInstallationMonth(installationID string, year, month int) (int, error) {
	var total int
	err := s.db.Table("reviews").
		Joins("JOIN repositories ON repositories.id = reviews.repository_id").
		Where("repositories.installation_id = ?", installationID).
		Where("reviews.created_at >= ? AND reviews.created_at < ?",
			time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC),
			time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)).
		Select("COALESCE(SUM(reviews.cost_cents), 0)").
		Row().Scan(&total)
	return total, err
}
