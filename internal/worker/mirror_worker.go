package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pfm/internal/amqp"
	pfmlog "pfm/internal/log"
	ports "pfm/internal/sheets"
)

// MirrorWorker copies the primary transaction set into a mirror store,
// on every transaction.added event and on a fixed reconcile interval.
type MirrorWorker struct {
	primary  ports.TransactionStore
	mirror   ports.TransactionStore
	interval time.Duration

	// Serializes copies so an event and a tick never interleave.
	mu      sync.Mutex
	lastRun time.Time
	copied  int
}

func NewMirrorWorker(primary, mirror ports.TransactionStore, interval time.Duration) *MirrorWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MirrorWorker{primary: primary, mirror: mirror, interval: interval}
}

// HandleAdded processes a single transaction.added event.
func (w *MirrorWorker) HandleAdded(ctx context.Context, msg *amqp.TransactionAddedMessage) error {
	slog.InfoContext(ctx, "Processing transaction event",
		pfmlog.FieldOperation, pfmlog.OpMirror,
		pfmlog.FieldEventID, msg.ID,
		"count", msg.Count)

	n, err := w.copy(ctx)
	if err != nil {
		return fmt.Errorf("mirror after event %s: %w", msg.ID, err)
	}
	if n < msg.Count {
		// The primary cannot shrink; a smaller read means a stale replica.
		slog.WarnContext(ctx, "Primary returned fewer transactions than announced",
			pfmlog.FieldOperation, pfmlog.OpMirror,
			pfmlog.FieldEventID, msg.ID, "announced", msg.Count, "read", n)
	}
	return nil
}

// Reconcile copies the primary into the mirror regardless of events.
// It backs up lost AMQP messages.
func (w *MirrorWorker) Reconcile(ctx context.Context) error {
	n, err := w.copy(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	slog.DebugContext(ctx, "Mirror reconciled", "count", n)
	return nil
}

// Run reconciles immediately and then on every interval until ctx ends.
func (w *MirrorWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if err := w.Reconcile(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial reconcile failed", "error", err)
	}

	slog.InfoContext(ctx, "Mirror reconcile loop started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Mirror reconcile loop stopped")
			return nil
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil {
				slog.ErrorContext(ctx, "Reconcile failed", "error", err)
			}
		}
	}
}

// Status returns when the last successful copy happened and its size.
func (w *MirrorWorker) Status() (time.Time, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun, w.copied
}

func (w *MirrorWorker) copy(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	txs, err := w.primary.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load primary: %w", err)
	}
	if err := w.mirror.Save(ctx, txs); err != nil {
		return 0, fmt.Errorf("save mirror: %w", err)
	}
	w.lastRun = time.Now()
	w.copied = len(txs)
	return len(txs), nil
}
