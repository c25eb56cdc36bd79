package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/quave-io/frida-go/internal/domain"
	"github.com/quave-io/frida-go/internal/features"
)

// SaveFeatures replaces the transaction's FeatureSet and records major.minor
// as its version; one FeatureSet is stored per transaction, whatever its
// version. With retainSimple set, simple is ignored and the simple features
// already stored are kept (§4.4).
func (s *Store) SaveFeatures(ctx domain.Context, transactionID int64, major, minor int, simple []domain.Feature, graph []domain.Feature, retainSimple bool) error {
	tracer := otel.Tracer("repo.features")
	ctx, span := tracer.Start(ctx, "features.Save")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("transaction.id", transactionID),
		attribute.Bool("features.retain_simple", retainSimple),
	)

	graphRaw, err := features.EncodeFeatures(graph)
	if err != nil {
		return fmt.Errorf("op=features.save transaction_id=%d: %w: %w", transactionID, domain.ErrValidation, err)
	}

	if retainSimple {
		q := `INSERT INTO features (transaction_id, schema_major, schema_minor, graph_features)
		      VALUES ($1, $2, $3, $4)
		      ON CONFLICT (transaction_id) DO UPDATE SET
		        schema_major = EXCLUDED.schema_major, schema_minor = EXCLUDED.schema_minor,
		        graph_features = EXCLUDED.graph_features`
		if _, err := s.Pool.Exec(ctx, q, transactionID, major, minor, graphRaw); err != nil {
			return fmt.Errorf("op=features.save transaction_id=%d: %w: %w", transactionID, domain.ErrStorage, err)
		}
		return nil
	}

	simpleRaw, err := features.EncodeFeatures(simple)
	if err != nil {
		return fmt.Errorf("op=features.save transaction_id=%d: %w: %w", transactionID, domain.ErrValidation, err)
	}
	q := `INSERT INTO features (transaction_id, schema_major, schema_minor, simple_features, graph_features)
	      VALUES ($1, $2, $3, $4, $5)
	      ON CONFLICT (transaction_id) DO UPDATE SET
	        schema_major = EXCLUDED.schema_major, schema_minor = EXCLUDED.schema_minor,
	        simple_features = EXCLUDED.simple_features, graph_features = EXCLUDED.graph_features`
	if _, err := s.Pool.Exec(ctx, q, transactionID, major, minor, simpleRaw, graphRaw); err != nil {
		return fmt.Errorf("op=features.save transaction_id=%d: %w: %w", transactionID, domain.ErrStorage, err)
	}
	return nil
}

// GetFeatures returns the stored FeatureSet for transactionID.
func (s *Store) GetFeatures(ctx domain.Context, transactionID int64) (domain.FeatureSet, error) {
	tracer := otel.Tracer("repo.features")
	ctx, span := tracer.Start(ctx, "features.Get")
	defer span.End()
	span.SetAttributes(attribute.Int64("transaction.id", transactionID))

	q := `SELECT schema_major, schema_minor, simple_features, graph_features FROM features WHERE transaction_id = $1`
	row := s.Pool.QueryRow(ctx, q, transactionID)
	var major, minor int
	var simpleRaw, graphRaw []byte
	if err := row.Scan(&major, &minor, &simpleRaw, &graphRaw); err != nil {
		if err == pgx.ErrNoRows {
			return domain.FeatureSet{}, fmt.Errorf("op=features.get transaction_id=%d: %w", transactionID, domain.ErrNotFound)
		}
		return domain.FeatureSet{}, fmt.Errorf("op=features.get transaction_id=%d: %w: %w", transactionID, domain.ErrStorage, err)
	}

	simple, err := features.DecodeFeatures(simpleRaw)
	if err != nil {
		return domain.FeatureSet{}, fmt.Errorf("op=features.get transaction_id=%d: %w: %w", transactionID, domain.ErrStorage, err)
	}
	graph, err := features.DecodeFeatures(graphRaw)
	if err != nil {
		return domain.FeatureSet{}, fmt.Errorf("op=features.get transaction_id=%d: %w: %w", transactionID, domain.ErrStorage, err)
	}

	return domain.FeatureSet{TransactionID: transactionID, Major: major, Minor: minor, Simple: simple, Graph: graph}, nil
}
