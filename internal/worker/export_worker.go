// Package worker runs the export side of the pipeline: it consumes queue
// messages and periodically sweeps rows the queue missed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/export"
	"tally/internal/storage"
)

// ExportStore is the storage surface the worker needs.
type ExportStore interface {
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	PendingExportTransactions(ctx context.Context, maxAttempts, limit int) ([]storage.PendingExport, error)
	MarkExported(ctx context.Context, id int64) error
	MarkExportError(ctx context.Context, id int64) error
}

// maxExportAttempts caps reconciler retries per row. Rows that keep failing
// stay in the errored state for manual inspection instead of looping forever.
const maxExportAttempts = 5

// ExportWorker appends transaction events to the backup log and keeps the
// export_state bookkeeping in the database consistent with it.
type ExportWorker struct {
	store     ExportStore
	appender  export.Appender
	batchSize int
	now       func() time.Time
}

func NewExportWorker(store ExportStore, appender export.Appender, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ExportWorker{store: store, appender: appender, batchSize: batchSize, now: time.Now}
}

// HandleMessage processes one queue message. Created events read the row
// from the database; deleted events carry the row in the message because it
// is already gone.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *amqp.ExportMessage) error {
	switch msg.Op {
	case amqp.OpCreated:
		return w.exportByID(ctx, msg.ID)
	case amqp.OpDeleted:
		ev := export.Event{
			Op:         amqp.OpDeleted,
			RecordedAt: w.now(),
			Transaction: core.Transaction{
				ID:          msg.ID,
				UserID:      msg.UserID,
				Amount:      core.Money{Cents: msg.AmountCents},
				Type:        core.TxnType(msg.Type),
				Description: msg.Description,
				Date:        msg.Date,
			},
		}
		if err := w.appender.Append(ctx, ev); err != nil {
			return fmt.Errorf("append deleted event: %w", err)
		}
		slog.InfoContext(ctx, "Exported deletion", "id", msg.ID)
		return nil
	default:
		// Unknown ops are dropped, not requeued.
		slog.WarnContext(ctx, "Dropping export message with unknown op", "op", msg.Op, "id", msg.ID)
		return nil
	}
}

func (w *ExportWorker) exportByID(ctx context.Context, id int64) error {
	t, err := w.store.GetTransaction(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before the message arrived. The deletion event covers it.
		slog.WarnContext(ctx, "Transaction vanished before export", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}

	ev := export.Event{Op: amqp.OpCreated, RecordedAt: w.now(), Transaction: t}
	if err := w.appender.Append(ctx, ev); err != nil {
		if markErr := w.store.MarkExportError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append created event: %w", err)
	}

	if err := w.store.MarkExported(ctx, id); err != nil {
		// The append went through; log and move on.
		slog.ErrorContext(ctx, "Failed to mark as exported", "id", id, "error", err)
	}

	slog.InfoContext(ctx, "Exported transaction", "id", id, "user_id", t.UserID)
	return nil
}

// ProcessPending sweeps rows that have not reached the backup log yet,
// retrying failed ones up to maxExportAttempts. It is the safety net for
// lost queue messages.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.PendingExportTransactions(ctx, maxExportAttempts, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending exports: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))
	for _, p := range pending {
		if err := w.exportByID(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending transaction", "id", p.ID, "error", err)
		}
	}
	return nil
}

// RunReconciler sweeps pending rows on startup and then on every tick until
// ctx is cancelled.
func (w *ExportWorker) RunReconciler(ctx context.Context, interval time.Duration) error {
	if err := w.ProcessPending(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup export sweep failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Export sweep failed", "error", err)
			}
		}
	}
}
