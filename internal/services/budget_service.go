package services

import (
	"context"
	"fmt"

	"tally/internal/core"
)

type BudgetStore interface {
	CreateBudget(ctx context.Context, b *core.Budget) error
	ListBudgets(ctx context.Context, userID string) ([]core.Budget, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
}

type BudgetService struct {
	store BudgetStore
}

func NewBudgetService(store BudgetStore) *BudgetService {
	return &BudgetService{store: store}
}

// Create validates and persists a budget. The category must be an expense
// category visible to the user; the (user, category, period, start) scope
// must be unique.
func (s *BudgetService) Create(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.StartDate = core.DateOnly(b.StartDate)
	b.EndDate = core.DateOnly(b.EndDate)
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	cat, err := s.store.GetCategory(ctx, b.CategoryID)
	if err != nil {
		return core.Budget{}, err
	}
	if cat.UserID != nil && *cat.UserID != b.UserID {
		return core.Budget{}, fmt.Errorf("category %d: %w", cat.ID, core.ErrNotFound)
	}
	if err := b.CheckCategory(cat); err != nil {
		return core.Budget{}, err
	}

	if err := s.store.CreateBudget(ctx, &b); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (s *BudgetService) List(ctx context.Context, userID string) ([]core.Budget, error) {
	return s.store.ListBudgets(ctx, userID)
}
