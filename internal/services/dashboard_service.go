package services

import (
	"context"
	"time"

	"tally/internal/core"
	"tally/internal/storage"
)

// breakdownDays is the lookback window of the category breakdown.
const breakdownDays = 30

type DashboardStore interface {
	SumByTypeAndUser(ctx context.Context, userID string, typ core.TxnType) (core.Money, error)
	ExpenseStatsByCategorySince(ctx context.Context, userID string, since time.Time) ([]core.CategoryStat, error)
	ActiveBudgetsForUser(ctx context.Context, userID string, today time.Time) ([]storage.ActiveBudget, error)
	ExpenseSumForCategoryInRange(ctx context.Context, userID string, categoryID int64, from, to time.Time) (core.Money, error)
}

// DashboardService aggregates the read-model on every call. Nothing is
// cached: each request reflects all writes committed before it.
type DashboardService struct {
	store DashboardStore
}

func NewDashboardService(store DashboardStore) *DashboardService {
	return &DashboardService{store: store}
}

// Summary builds the user's dashboard relative to now: all-time totals, the
// 30-day expense breakdown, and budget-vs-actual for budgets whose window
// contains now's date.
func (s *DashboardService) Summary(ctx context.Context, userID string, now time.Time) (core.DashboardSummary, error) {
	income, err := s.store.SumByTypeAndUser(ctx, userID, core.Income)
	if err != nil {
		return core.DashboardSummary{}, err
	}
	expense, err := s.store.SumByTypeAndUser(ctx, userID, core.Expense)
	if err != nil {
		return core.DashboardSummary{}, err
	}

	stats, err := s.store.ExpenseStatsByCategorySince(ctx, userID, now.AddDate(0, 0, -breakdownDays))
	if err != nil {
		return core.DashboardSummary{}, err
	}

	active, err := s.store.ActiveBudgetsForUser(ctx, userID, core.DateOnly(now))
	if err != nil {
		return core.DashboardSummary{}, err
	}

	comparisons := make([]core.BudgetComparison, 0, len(active))
	for _, ab := range active {
		spent, err := s.store.ExpenseSumForCategoryInRange(ctx, userID, ab.CategoryID, ab.StartDate, ab.EndDate)
		if err != nil {
			return core.DashboardSummary{}, err
		}
		comparisons = append(comparisons, core.BudgetComparison{
			Category:     ab.CategoryName,
			BudgetAmount: ab.Amount,
			ActualSpent:  spent,
			Remaining:    ab.Amount.Sub(spent),
		})
	}

	return core.DashboardSummary{
		Balance:          income.Sub(expense),
		IncomeTotal:      income,
		ExpenseTotal:     expense,
		CategoryStats:    stats,
		BudgetComparison: comparisons,
	}, nil
}
