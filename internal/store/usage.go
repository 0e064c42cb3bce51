package store

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aireviewer/reviewerd/internal/model"
	"github.com/aireviewer/reviewerd/pkg/idgen"
)

// UsageStore defines operations for the UsageRecord model, the monthly
// per-installation spend aggregate the BudgetTracker reads and writes.
type UsageStore interface {
	GetOrCreate(installationID string, year, month int) (*model.UsageRecord, error)
	// RecordUsage upserts the (installationID, year, month) row, adding the
	// given deltas atomically. Intended to run inside the same transaction
	// that commits the owning Review so usage accounting never drifts from
	// the Review it is derived from.
	RecordUsage(installationID string, year, month, inputTokens, outputTokens, costCents int) error
	GetForInstallationMonth(installationID string, year, month int) (*model.UsageRecord, error)
}

type usageStore struct {
	db *gorm.DB
}

func newUsageStore(db *gorm.DB) UsageStore {
	return &usageStore{db: db}
}

func (s *usageStore) GetOrCreate(installationID string, year, month int) (*model.UsageRecord, error) {
	var record model.UsageRecord
	err := s.db.Where("installation_id = ? AND year = ? AND month = ?", installationID, year, month).
		First(&record).Error
	if err == nil {
		return &record, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	record = model.UsageRecord{
		ID:             idgen.NewUsageRecordID(),
		InstallationID: installationID,
		Year:           year,
		Month:          month,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *usageStore) RecordUsage(installationID string, year, month, inputTokens, outputTokens, costCents int) error {
	record := model.UsageRecord{
		ID:                idgen.NewUsageRecordID(),
		InstallationID:    installationID,
		Year:              year,
		Month:             month,
		TotalInputTokens:  inputTokens,
		TotalOutputTokens: outputTokens,
		TotalCostCents:    costCents,
		TotalReviews:      1,
	}

	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "installation_id"}, {Name: "year"}, {Name: "month"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_input_tokens":  gorm.Expr("total_input_tokens + ?", inputTokens),
			"total_output_tokens": gorm.Expr("total_output_tokens + ?", outputTokens),
			"total_cost_cents":    gorm.Expr("total_cost_cents + ?", costCents),
			"total_reviews":       gorm.Expr("total_reviews + 1"),
		}),
	}).Create(&record).Error
}

func (s *usageStore) GetForInstallationMonth(installationID string, year, month int) (*model.UsageRecord, error) {
	var record model.UsageRecord
	err := s.db.Where("installation_id = ? AND year = ? AND month = ?", installationID, year, month).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}
