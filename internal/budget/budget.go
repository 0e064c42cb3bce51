// Package budget implements the BudgetTracker: cost-cents arithmetic for
// one AI review call, and the monthly spend gate that decides whether an
// installation (or a repository override) still has budget left.
package budget

import (
	"time"

	"github.com/aireviewer/reviewerd/internal/model"
	"github.com/aireviewer/reviewerd/internal/store"
)

// Rates holds the per-million-token pricing used to compute a review's cost.
type Rates struct {
	InputPerMillionCents  int
	OutputPerMillionCents int
}

// CostCents computes the integer cost of one AI call, truncating (not
// rounding) fractional cents, matching the floor-division the pipeline's
// originating cost accounting used.
func CostCents(rates Rates, inputTokens, outputTokens int) int {
	inputCost := inputTokens * rates.InputPerMillionCents / 1_000_000
	outputCost := outputTokens * rates.OutputPerMillionCents / 1_000_000
	return inputCost + outputCost
}

// Status reports an installation's (or repository-overridden) monthly
// budget standing.
type Status struct {
	HasBudget      bool
	RemainingCents int
	BudgetCents    int
}

// Tracker checks and records AI spend against the monthly per-installation
// (or per-repository-override) budget.
type Tracker struct {
	store store.Store
}

// New builds a Tracker backed by the given Store.
func New(s store.Store) *Tracker {
	return &Tracker{store: s}
}

// CheckBudget reports whether installationID has budget remaining for the
// current calendar month, honoring repo's MonthlyBudgetCentsOverride when
// set. An inactive (suspended) installation never has budget.
func (t *Tracker) CheckBudget(installationID string, repo *model.Repository) (Status, error) {
	installation, err := t.store.Installation().GetByID(installationID)
	if err != nil {
		return Status{}, err
	}
	if !installation.IsActive {
		return Status{HasBudget: false}, nil
	}

	budgetCents := installation.MonthlyBudgetCents
	if repo != nil && repo.MonthlyBudgetCentsOverride != nil {
		budgetCents = *repo.MonthlyBudgetCentsOverride
	}

	year, month := currentYearMonth()
	usage, err := t.store.Usage().GetForInstallationMonth(installationID, year, month)
	if err != nil {
		// No usage yet this month: the full budget is available.
		usage = &model.UsageRecord{}
	}

	remaining := budgetCents - usage.TotalCostCents
	return Status{
		HasBudget:      remaining > 0,
		RemainingCents: remaining,
		BudgetCents:    budgetCents,
	}, nil
}

// RecordUsage upserts the current month's UsageRecord for installationID,
// adding the given deltas. It writes through the Tracker's own Store, so
// it never joins a store.Transaction; a caller that must commit usage
// together with a Review calls the transaction's Usage().RecordUsage
// directly.
func (t *Tracker) RecordUsage(installationID string, inputTokens, outputTokens, costCents int) error {
	year, month := currentYearMonth()
	return t.store.Usage().RecordUsage(installationID, year, month, inputTokens, outputTokens, costCents)
}

func currentYearMonth() (int, int) {
	now := time.Now().UTC()
	return now.Year(), int(now.Month())
}
