package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/quave-io/frida-go/internal/adapter/observability"
	"github.com/quave-io/frida-go/internal/domain"
	"github.com/quave-io/frida-go/internal/matchgraph"
)

// SaveMatchingFields upserts one MatchNode per (matcher, value) and an edge
// from each node to transactionID. Node upserts are the pipeline's hottest
// contention point (§5): many workers may race to insert the same
// (matcher, value), so confidence/importance are only ever assigned on the
// row that actually lands the unique constraint, never on a later writer
// that loses the race and falls back to select-by-key.
func (s *Store) SaveMatchingFields(ctx domain.Context, transactionID int64, fields []domain.MatchingField) error {
	tracer := otel.Tracer("repo.matchgraph")
	ctx, span := tracer.Start(ctx, "matchgraph.SaveMatchingFields")
	defer span.End()
	span.SetAttributes(attribute.Int64("transaction.id", transactionID), attribute.Int("fields.count", len(fields)))

	for _, f := range fields {
		nodeID, err := s.resolveNodeID(ctx, f.Matcher, f.Value)
		if err != nil {
			return fmt.Errorf("op=matchgraph.save_matching_fields transaction_id=%d matcher=%s: %w", transactionID, f.Matcher, err)
		}
		edgeQ := `INSERT INTO match_node_transactions (node_id, transaction_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
		if _, err := s.Pool.Exec(ctx, edgeQ, nodeID, transactionID); err != nil {
			return fmt.Errorf("op=matchgraph.save_matching_fields.edge transaction_id=%d matcher=%s: %w: %w", transactionID, f.Matcher, domain.ErrStorage, err)
		}
	}
	return nil
}

// resolveNodeID returns the MatchNode.ID for (matcher, value), consulting
// the cache first, then attempting a conflict-tolerant insert, then falling
// back to select-by-key when the insert loses the race (§5).
func (s *Store) resolveNodeID(ctx domain.Context, matcher, value string) (int64, error) {
	if s.Cache != nil {
		if id, ok := s.Cache.Get(ctx, matcher, value); ok {
			return id, nil
		}
	}

	cfg := domain.DefaultMatcherConfig
	if s.Matchers != nil {
		cfg = s.Matchers.Resolve(matcher)
	}

	insertQ := `INSERT INTO match_node (matcher, value, confidence, importance) VALUES ($1, $2, $3, $4)
	            ON CONFLICT (matcher, value) DO NOTHING RETURNING id`
	row := s.Pool.QueryRow(ctx, insertQ, matcher, value, cfg.Confidence, cfg.Importance)
	var id int64
	err := row.Scan(&id)
	if err == nil {
		if s.Cache != nil {
			s.Cache.Set(ctx, matcher, value, id)
		}
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return 0, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}

	// Conflict: another writer already holds this (matcher, value).
	observability.RecordMatchNodeContention(matcher)
	selectQ := `SELECT id FROM match_node WHERE matcher = $1 AND value = $2`
	row = s.Pool.QueryRow(ctx, selectQ, matcher, value)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	if s.Cache != nil {
		s.Cache.Set(ctx, matcher, value, id)
	}
	return id, nil
}

// GetDirectConnections returns the one-hop shortcut shape of the match
// graph around transactionID (§4.3).
func (s *Store) GetDirectConnections(ctx domain.Context, transactionID int64) ([]domain.DirectConnection, error) {
	tracer := otel.Tracer("repo.matchgraph")
	ctx, span := tracer.Start(ctx, "matchgraph.GetDirectConnections")
	defer span.End()
	span.SetAttributes(attribute.Int64("transaction.id", transactionID))

	out, err := matchgraph.DirectFromEdges(ctx, s, transactionID)
	if err != nil {
		return nil, fmt.Errorf("op=matchgraph.get_direct_connections transaction_id=%d: %w: %w", transactionID, domain.ErrStorage, err)
	}
	return out, nil
}

// FindConnectedTransactions runs the depth-bounded bipartite traversal
// described in §4.3, recording the reached depth for observability.
func (s *Store) FindConnectedTransactions(ctx domain.Context, transactionID int64, opts domain.TraversalOptions) ([]domain.ConnectedTransaction, error) {
	tracer := otel.Tracer("repo.matchgraph")
	ctx, span := tracer.Start(ctx, "matchgraph.FindConnectedTransactions")
	defer span.End()
	span.SetAttributes(attribute.Int64("transaction.id", transactionID))

	out, err := matchgraph.Traverse(ctx, s, transactionID, opts)
	if err != nil {
		return nil, fmt.Errorf("op=matchgraph.find_connected_transactions transaction_id=%d: %w: %w", transactionID, domain.ErrStorage, err)
	}
	maxDepth := 0
	for _, c := range out {
		if c.Depth > maxDepth {
			maxDepth = c.Depth
		}
	}
	observability.RecordTraversalDepth(maxDepth)
	return out, nil
}

// NodesForTransaction implements matchgraph.EdgeSource.
func (s *Store) NodesForTransaction(ctx domain.Context, txID int64) ([]matchgraph.NodeEdge, error) {
	q := `SELECT n.id, n.matcher, n.value, n.confidence, n.importance
	      FROM match_node_transactions mnt
	      JOIN match_node n ON n.id = mnt.node_id
	      WHERE mnt.transaction_id = $1`
	rows, err := s.Pool.Query(ctx, q, txID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []matchgraph.NodeEdge
	for rows.Next() {
		var e matchgraph.NodeEdge
		if err := rows.Scan(&e.NodeID, &e.Matcher, &e.Value, &e.Confidence, &e.Importance); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TransactionsForNode implements matchgraph.EdgeSource.
func (s *Store) TransactionsForNode(ctx domain.Context, nodeID int64) ([]matchgraph.TxEdge, error) {
	q := `SELECT t.id, t.created_at
	      FROM match_node_transactions mnt
	      JOIN transactions t ON t.id = mnt.transaction_id
	      WHERE mnt.node_id = $1`
	rows, err := s.Pool.Query(ctx, q, nodeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []matchgraph.TxEdge
	for rows.Next() {
		var e matchgraph.TxEdge
		if err := rows.Scan(&e.TransactionID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
