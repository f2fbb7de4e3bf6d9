// Package services holds the application logic between HTTP handlers and
// storage. Each service declares the slice of the store it needs, so tests
// can swap in fakes without a database.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/core"
)

// TransactionStore is the storage surface the transaction service uses.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t *core.Transaction) error
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
}

// ExportPublisher hands transactions to the backup export queue. Publish
// failures never fail the request; the reconciler picks the row up later.
type ExportPublisher interface {
	PublishCreated(ctx context.Context, t core.Transaction) error
	PublishDeleted(ctx context.Context, t core.Transaction) error
}

type TransactionService struct {
	store     TransactionStore
	publisher ExportPublisher
	now       func() time.Time
}

// NewTransactionService builds the service. publisher may be nil when the
// export pipeline is disabled.
func NewTransactionService(store TransactionStore, publisher ExportPublisher) *TransactionService {
	return &TransactionService{store: store, publisher: publisher, now: time.Now}
}

// Create validates and persists a transaction. A zero Date defaults to the
// current time. The referenced category must exist, be visible to the user,
// and match the transaction's type.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	now := s.now().UTC()
	if t.Date.IsZero() {
		t.Date = now
	}
	if err := t.Validate(now); err != nil {
		return core.Transaction{}, err
	}

	if t.CategoryID != nil {
		cat, err := s.store.GetCategory(ctx, *t.CategoryID)
		if err != nil {
			return core.Transaction{}, err
		}
		if cat.UserID != nil && *cat.UserID != t.UserID {
			return core.Transaction{}, fmt.Errorf("category %d: %w", cat.ID, core.ErrNotFound)
		}
		if err := t.CheckCategory(cat); err != nil {
			return core.Transaction{}, err
		}
	}

	if err := s.store.CreateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishCreated(ctx, t); err != nil {
			slog.WarnContext(ctx, "Failed to publish transaction for export, will reconcile",
				"id", t.ID, "error", err)
		}
	}
	return t, nil
}

func (s *TransactionService) Get(ctx context.Context, userID string, id int64) (core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if t.UserID != userID {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return t, nil
}

func (s *TransactionService) List(ctx context.Context, userID string, limit int) ([]core.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListTransactions(ctx, userID, limit)
}

// Delete removes the user's transaction and publishes the removed row so the
// backup log records the deletion.
func (s *TransactionService) Delete(ctx context.Context, userID string, id int64) error {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if t.UserID != userID {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}

	deleted, err := s.store.DeleteTransaction(ctx, id)
	if err != nil {
		return err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishDeleted(ctx, deleted); err != nil {
			slog.WarnContext(ctx, "Failed to publish deletion for export",
				"id", deleted.ID, "error", err)
		}
	}
	return nil
}

// errIsNotFound reports whether err is the store's missing-row error.
func errIsNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
