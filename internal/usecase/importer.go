// Package usecase contains application business logic services sitting
// between the HTTP surface and the storage/queue ports.
package usecase

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/quave-io/frida-go/internal/adapter/observability"
	"github.com/quave-io/frida-go/internal/domain"
)

// Importer accepts a validated payload, persists the transaction row, and
// enqueues a primary-queue work item (§4.2).
type Importer struct {
	Storage domain.ImportableStorage
}

// NewImporter constructs an Importer with its dependency.
func NewImporter(storage domain.ImportableStorage) Importer {
	return Importer{Storage: storage}
}

// Import validates payload, then persists the transaction and enqueues it
// on the primary queue as one atomic storage operation. Per §4.2's
// invariant, a successful return guarantees the transaction is loadable by
// id and the queue holds at least one eligible entry for it; on any
// failure the caller observes neither.
func (im Importer) Import(ctx domain.Context, payload domain.Payload) (int64, error) {
	tracer := otel.Tracer("usecase.importer")
	ctx, span := tracer.Start(ctx, "Importer.Import")
	defer span.End()

	lg := observability.LoggerFromContext(ctx)

	if err := payload.Validate(); err != nil {
		lg.Warn("import rejected payload", slog.String("payload_number", payload.PayloadNumber()), slog.Any("error", err))
		return 0, fmt.Errorf("op=importer.import: %w: %w", domain.ErrValidation, err)
	}

	major, minor := payload.SchemaVersion()
	id, err := im.Storage.SaveTransactionAndEnqueue(ctx, payload, major, minor)
	if err != nil {
		lg.Error("import failed", slog.String("payload_number", payload.PayloadNumber()), slog.Any("error", err))
		return 0, fmt.Errorf("op=importer.import: %w", err)
	}

	lg.Info("import succeeded", slog.Int64("transaction_id", id), slog.String("payload_number", payload.PayloadNumber()))
	return id, nil
}
