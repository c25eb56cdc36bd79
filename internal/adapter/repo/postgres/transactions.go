package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/quave-io/frida-go/internal/domain"
)

// SaveTransactionAndEnqueue persists the transaction row and its primary
// queue entry in one explicit transaction, so a commit failure leaves
// neither observable (§4.2).
func (s *Store) SaveTransactionAndEnqueue(ctx domain.Context, payload domain.Payload, major, minor int) (int64, error) {
	tracer := otel.Tracer("repo.transactions")
	ctx, span := tracer.Start(ctx, "transactions.SaveAndEnqueue")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "transactions"),
	)

	raw, err := payload.MarshalJSON()
	if err != nil {
		return 0, fmt.Errorf("op=transactions.save_and_enqueue: %w: %w", domain.ErrValidation, err)
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("op=transactions.save_and_enqueue.begin_tx: %w: %w", domain.ErrStorage, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	insertTx := `INSERT INTO transactions (payload_number, schema_major, schema_minor, payload, created_at)
	             VALUES ($1, $2, $3, $4, now()) RETURNING id`
	row := tx.QueryRow(ctx, insertTx, payload.PayloadNumber(), major, minor, raw)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("op=transactions.save_and_enqueue: %w: %w", domain.ErrStorage, err)
	}

	insertQueue := `INSERT INTO processing_queue (transaction_id, created_at) VALUES ($1, now())`
	if _, err := tx.Exec(ctx, insertQueue, id); err != nil {
		return 0, fmt.Errorf("op=transactions.save_and_enqueue.enqueue: %w: %w", domain.ErrStorage, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("op=transactions.save_and_enqueue.commit: %w: %w", domain.ErrStorage, err)
	}
	committed = true
	return id, nil
}

// GetTransaction loads a transaction by id.
func (s *Store) GetTransaction(ctx domain.Context, id int64) (domain.Transaction, error) {
	tracer := otel.Tracer("repo.transactions")
	ctx, span := tracer.Start(ctx, "transactions.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "transactions"),
	)

	q := `SELECT id, payload_number, schema_major, schema_minor, payload, label_id, last_scoring_at, processing_complete, created_at
	      FROM transactions WHERE id = $1`
	row := s.Pool.QueryRow(ctx, q, id)
	var tx domain.Transaction
	if err := row.Scan(&tx.ID, &tx.PayloadNumber, &tx.SchemaMajor, &tx.SchemaMinor, &tx.Payload,
		&tx.LabelID, &tx.LastScoringAt, &tx.ProcessingComplete, &tx.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Transaction{}, fmt.Errorf("op=transactions.get id=%d: %w", id, domain.ErrNotFound)
		}
		return domain.Transaction{}, fmt.Errorf("op=transactions.get id=%d: %w: %w", id, domain.ErrStorage, err)
	}
	return tx, nil
}

// LoadPayload loads the stored payload bytes for a transaction id and
// unmarshals them into into.
func (s *Store) LoadPayload(ctx domain.Context, transactionID int64, into domain.Payload) error {
	tracer := otel.Tracer("repo.transactions")
	ctx, span := tracer.Start(ctx, "transactions.LoadPayload")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "transactions"),
	)

	q := `SELECT payload FROM transactions WHERE id = $1`
	row := s.Pool.QueryRow(ctx, q, transactionID)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("op=transactions.load_payload id=%d: %w", transactionID, domain.ErrNotFound)
		}
		return fmt.Errorf("op=transactions.load_payload id=%d: %w: %w", transactionID, domain.ErrStorage, err)
	}
	if err := into.UnmarshalJSON(raw); err != nil {
		return fmt.Errorf("op=transactions.load_payload id=%d: %w: %w", transactionID, domain.ErrValidation, err)
	}
	return nil
}

// SetTransactionID is a no-op for this adapter: a transaction row's id is
// already the canonical identity the payload was loaded by, so there is
// nothing left to bind. The hook exists on the port for payload shapes
// whose in-memory representation only learns its owning row id after load.
func (s *Store) SetTransactionID(ctx domain.Context, transactionID int64) error {
	return nil
}

// LabelTransactions applies label to every id in ids, reporting which
// succeeded and which failed rather than aborting the whole batch on the
// first miss (§7, §9 supplemented feature 2).
func (s *Store) LabelTransactions(ctx domain.Context, ids []int64, label domain.Label) (domain.LabelingResult, error) {
	tracer := otel.Tracer("repo.transactions")
	ctx, span := tracer.Start(ctx, "transactions.LabelTransactions")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "labels"),
		attribute.Int("transactions.batch_size", len(ids)),
	)

	var result domain.LabelingResult
	for _, id := range ids {
		insertLabel := `INSERT INTO labels (transaction_id, fraud_level, fraud_category, source, labeled_by, created_at)
		                VALUES ($1, $2, $3, $4, $5, now()) RETURNING id`
		row := s.Pool.QueryRow(ctx, insertLabel, id, label.FraudLevel, label.FraudCategory, label.Source, label.LabeledBy)
		var labelID int64
		if err := row.Scan(&labelID); err != nil {
			result.FailedTransactionIDs = append(result.FailedTransactionIDs, id)
			continue
		}
		updateTx := `UPDATE transactions SET label_id = $1 WHERE id = $2`
		if _, err := s.Pool.Exec(ctx, updateTx, labelID, id); err != nil {
			result.FailedTransactionIDs = append(result.FailedTransactionIDs, id)
			continue
		}
		result.SuccessCount++
	}
	return result, nil
}

// ListTransactions executes a compiled filter/query planner query.
func (s *Store) ListTransactions(ctx domain.Context, query domain.CompiledQuery) ([]domain.Transaction, error) {
	tracer := otel.Tracer("repo.transactions")
	ctx, span := tracer.Start(ctx, "transactions.ListTransactions")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "transactions"),
	)

	rows, err := s.Pool.Query(ctx, query.SQL, query.Args...)
	if err != nil {
		return nil, fmt.Errorf("op=transactions.list: %w: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.PayloadNumber, &tx.SchemaMajor, &tx.SchemaMinor, &tx.Payload,
			&tx.LabelID, &tx.LastScoringAt, &tx.ProcessingComplete, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("op=transactions.list_scan: %w: %w", domain.ErrStorage, err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=transactions.list_rows: %w: %w", domain.ErrStorage, err)
	}
	return out, nil
}
