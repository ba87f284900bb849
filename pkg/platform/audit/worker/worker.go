package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lockmint/pkg/platform/audit/store/postgres"
)

// Outbox is the subset of the Postgres audit store the relay needs.
type Outbox interface {
	FetchPending(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Sink receives raw outbox payloads.
type Sink interface {
	PublishRaw(ctx context.Context, key string, payload []byte) error
}

// OutboxRelay moves committed outbox rows to the sink. Rows are marked
// published only after the sink accepted them, so delivery is at-least-once.
type OutboxRelay struct {
	outbox    Outbox
	sink      Sink
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewOutboxRelay(outbox Outbox, sink Sink, logger *slog.Logger) *OutboxRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxRelay{
		outbox:    outbox,
		sink:      sink,
		logger:    logger,
		interval:  time.Second,
		batchSize: 100,
	}
}

// Run relays until ctx is cancelled.
func (w *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RelayOnce(ctx); err != nil {
				w.logger.WarnContext(ctx, "audit outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many rows were marked.
func (w *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := w.outbox.FetchPending(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	published := make([]uuid.UUID, 0, len(entries))
	var publishErr error
	for _, e := range entries {
		if err := w.sink.PublishRaw(ctx, e.Action, e.Payload); err != nil {
			publishErr = err
			break
		}
		published = append(published, e.ID)
	}

	if err := w.outbox.MarkPublished(ctx, published); err != nil {
		return 0, err
	}
	return len(published), publishErr
}
