package services

import (
	"context"
	"fmt"

	"tally/internal/core"
)

type CategoryStore interface {
	CreateCategory(ctx context.Context, c *core.Category) error
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	ListCategories(ctx context.Context, userID string) ([]core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

type CategoryService struct {
	store CategoryStore
}

func NewCategoryService(store CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

// maxParentDepth bounds the parent walk; chains this deep are treated as
// cyclic.
const maxParentDepth = 50

// Create validates and persists a category. A parent must exist, be visible
// to the user, share the category's type, and not sit on a cyclic chain.
func (s *CategoryService) Create(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	if c.ParentID != nil {
		parent, err := s.store.GetCategory(ctx, *c.ParentID)
		if err != nil {
			return core.Category{}, err
		}
		if parent.UserID != nil && (c.UserID == nil || *parent.UserID != *c.UserID) {
			return core.Category{}, fmt.Errorf("category %d: %w", parent.ID, core.ErrNotFound)
		}
		if parent.Type != c.Type {
			return core.Category{}, &core.TypeMismatchError{
				CategoryName: parent.Name, CategoryType: parent.Type, GotType: c.Type,
			}
		}
		if err := s.walkParents(ctx, parent); err != nil {
			return core.Category{}, err
		}
	}

	if err := s.store.CreateCategory(ctx, &c); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// walkParents follows the parent chain upward and fails on a revisit or a
// chain deeper than maxParentDepth.
func (s *CategoryService) walkParents(ctx context.Context, start core.Category) error {
	seen := map[int64]bool{start.ID: true}
	cur := start
	for depth := 0; cur.ParentID != nil; depth++ {
		if depth >= maxParentDepth {
			return core.ErrCategoryCycle
		}
		next, err := s.store.GetCategory(ctx, *cur.ParentID)
		if err != nil {
			return err
		}
		if seen[next.ID] {
			return core.ErrCategoryCycle
		}
		seen[next.ID] = true
		cur = next
	}
	return nil
}

func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	return s.store.ListCategories(ctx, userID)
}

// Delete removes the user's own category. Shared categories and other
// users' categories are not deletable through this path.
func (s *CategoryService) Delete(ctx context.Context, userID string, id int64) error {
	cat, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if cat.UserID == nil || *cat.UserID != userID {
		return fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	return s.store.DeleteCategory(ctx, id)
}
