package queue

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/quave-io/frida-go/internal/adapter/observability"
	"github.com/quave-io/frida-go/internal/domain"
)

// LeaseSweeper periodically reclaims rows whose lease has expired without a
// matching MarkProcessed — a worker that fetched a batch and then crashed
// before finishing it. Reclaiming just means clearing locked_at; the next
// FetchNext on either queue picks the row back up through its own
// lease-expiry check, so the sweeper's SQL is a proactive version of the
// same WHERE clause rather than a distinct code path.
type LeaseSweeper struct {
	pool     PgxPool
	lease    time.Duration
	interval time.Duration
}

// NewLeaseSweeper constructs a LeaseSweeper. A nil pool makes Run a no-op,
// matching the teacher's nil-safe sweeper pattern.
func NewLeaseSweeper(pool PgxPool, lease, interval time.Duration) *LeaseSweeper {
	if pool == nil {
		return nil
	}
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &LeaseSweeper{pool: pool, lease: lease, interval: interval}
}

// Run blocks, sweeping both queues every interval until ctx is cancelled.
func (s *LeaseSweeper) Run(ctx domain.Context) {
	if s == nil || s.pool == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("queue lease sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *LeaseSweeper) sweepOnce(ctx domain.Context) {
	tracer := otel.Tracer("queue.sweeper")
	ctx, span := tracer.Start(ctx, "LeaseSweeper.sweepOnce")
	defer span.End()
	span.SetAttributes(attribute.Float64("queue.lease_seconds", s.lease.Seconds()))

	for _, kind := range []domain.QueueKind{domain.QueuePrimary, domain.QueueRecalculation} {
		table, err := tableFor(kind)
		if err != nil {
			continue
		}
		n, err := s.reclaim(ctx, table)
		if err != nil {
			slog.Error("queue lease sweep failed", slog.String("queue", table), slog.Any("error", err))
			continue
		}
		if n > 0 {
			slog.Info("queue lease sweep reclaimed rows", slog.String("queue", table), slog.Int64("count", n))
			for i := int64(0); i < n; i++ {
				observability.RecordQueueSwept(table)
			}
		}
	}
}

func (s *LeaseSweeper) reclaim(ctx domain.Context, table string) (int64, error) {
	q := fmt.Sprintf(`
		UPDATE %s
		SET locked_at = NULL
		WHERE processed_at IS NULL
		  AND locked_at IS NOT NULL
		  AND locked_at < now() - $1::interval`, table)
	tag, err := s.pool.Exec(ctx, q, s.lease.String())
	if err != nil {
		return 0, fmt.Errorf("op=queue.sweeper.reclaim table=%s: %w: %w", table, domain.ErrStorage, err)
	}
	return tag.RowsAffected(), nil
}
