// Package queue implements the durable work queue (spec §4.1) on top of
// PostgreSQL: two structurally identical tables (processing_queue,
// recalculation_queue) dequeued with SELECT ... FOR UPDATE SKIP LOCKED so
// concurrent workers never fetch the same row, plus a time-based lease so a
// worker that crashes after fetch (and therefore after the row lock is
// released by commit) doesn't strand the row forever.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/quave-io/frida-go/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by PostgresQueue for easy
// testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PostgresQueue implements domain.Queue against the processing_queue and
// recalculation_queue tables. LeaseTimeout bounds how long a fetched-but-
// unprocessed row is considered "owned" before a sweeper may hand it out
// again.
type PostgresQueue struct {
	Pool         PgxPool
	LeaseTimeout time.Duration
}

// NewPostgresQueue constructs a PostgresQueue with the given pool and lease
// timeout.
func NewPostgresQueue(p PgxPool, leaseTimeout time.Duration) *PostgresQueue {
	if leaseTimeout <= 0 {
		leaseTimeout = 5 * time.Minute
	}
	return &PostgresQueue{Pool: p, LeaseTimeout: leaseTimeout}
}

func tableFor(kind domain.QueueKind) (string, error) {
	switch kind {
	case domain.QueuePrimary:
		return "processing_queue", nil
	case domain.QueueRecalculation:
		return "recalculation_queue", nil
	default:
		return "", fmt.Errorf("%w: unknown queue kind %q", domain.ErrValidation, kind)
	}
}

// Enqueue inserts a row with processed_at and locked_at both null.
// Re-enqueuing a transaction id that is already pending is permitted; it
// simply produces a second row, which is the recalculation semantics §4.1
// asks for.
func (q *PostgresQueue) Enqueue(ctx domain.Context, kind domain.QueueKind, transactionID int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	tracer := otel.Tracer("queue")
	ctx, span := tracer.Start(ctx, "queue.Enqueue")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.sql.table", table),
		attribute.Int64("transaction.id", transactionID),
	)

	q0 := fmt.Sprintf(`INSERT INTO %s (transaction_id, created_at) VALUES ($1, now())`, table)
	if _, err := q.Pool.Exec(ctx, q0, transactionID); err != nil {
		return fmt.Errorf("op=queue.enqueue table=%s: %w: %w", table, domain.ErrStorage, err)
	}
	return nil
}

// FetchNext claims up to n of the oldest eligible rows: unprocessed, and
// either never leased or whose lease has expired. The row lock taken by FOR
// UPDATE SKIP LOCKED only spans this transaction; the locked_at timestamp
// written before commit is what keeps the row claimed afterward.
func (q *PostgresQueue) FetchNext(ctx domain.Context, kind domain.QueueKind, n int) ([]domain.QueueEntry, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	tracer := otel.Tracer("queue")
	ctx, span := tracer.Start(ctx, "queue.FetchNext")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.sql.table", table),
		attribute.Int("queue.batch_size", n),
	)

	tx, err := q.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("op=queue.fetch_next.begin_tx table=%s: %w: %w", table, domain.ErrStorage, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	selectQ := fmt.Sprintf(`
		SELECT id, transaction_id, processed_at, created_at
		FROM %s
		WHERE processed_at IS NULL
		  AND (locked_at IS NULL OR locked_at < now() - $1::interval)
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, table)
	rows, err := tx.Query(ctx, selectQ, q.LeaseTimeout.String(), n)
	if err != nil {
		return nil, fmt.Errorf("op=queue.fetch_next.select table=%s: %w: %w", table, domain.ErrStorage, err)
	}
	var entries []domain.QueueEntry
	var ids []int64
	for rows.Next() {
		var e domain.QueueEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.ProcessedAt, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("op=queue.fetch_next.scan table=%s: %w: %w", table, domain.ErrStorage, err)
		}
		entries = append(entries, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("op=queue.fetch_next.rows table=%s: %w: %w", table, domain.ErrStorage, err)
	}
	rows.Close()

	if len(ids) > 0 {
		leaseQ := fmt.Sprintf(`UPDATE %s SET locked_at = now() WHERE id = ANY($1)`, table)
		if _, err := tx.Exec(ctx, leaseQ, ids); err != nil {
			return nil, fmt.Errorf("op=queue.fetch_next.lease table=%s: %w: %w", table, domain.ErrStorage, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("op=queue.fetch_next.commit table=%s: %w: %w", table, domain.ErrStorage, err)
	}
	committed = true

	span.SetAttributes(attribute.Int("queue.fetched", len(entries)))
	return entries, nil
}

// MarkProcessed sets processed_at = now(). Idempotent: a second call affects
// zero rows and is not an error.
func (q *PostgresQueue) MarkProcessed(ctx domain.Context, kind domain.QueueKind, entryID int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	tracer := otel.Tracer("queue")
	ctx, span := tracer.Start(ctx, "queue.MarkProcessed")
	defer span.End()
	span.SetAttributes(attribute.String("db.sql.table", table), attribute.Int64("queue.entry_id", entryID))

	q0 := fmt.Sprintf(`UPDATE %s SET processed_at = now() WHERE id = $1 AND processed_at IS NULL`, table)
	if _, err := q.Pool.Exec(ctx, q0, entryID); err != nil {
		return fmt.Errorf("op=queue.mark_processed table=%s: %w: %w", table, domain.ErrStorage, err)
	}
	return nil
}

// Depth returns the number of unprocessed rows on the given queue, used to
// feed the QueueDepth gauge.
func (q *PostgresQueue) Depth(ctx domain.Context, kind domain.QueueKind) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	row := q.Pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE processed_at IS NULL`, table))
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("op=queue.depth table=%s: %w: %w", table, domain.ErrStorage, err)
	}
	return n, nil
}
