package usecase

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/quave-io/frida-go/internal/adapter/observability"
	"github.com/quave-io/frida-go/internal/domain"
)

var validFraudLevels = map[domain.FraudLevel]bool{
	domain.FraudLevelFraud:                true,
	domain.FraudLevelNoFraud:               true,
	domain.FraudLevelBlockedAutomatically:  true,
	domain.FraudLevelAccountTakeover:       true,
	domain.FraudLevelNotCreditWorthy:       true,
}

var validLabelSources = map[domain.LabelSource]bool{
	domain.LabelSourceManual: true,
	domain.LabelSourceAPI:    true,
}

// Labeler applies fraud labels to a batch of transactions (§7, §9
// supplemented feature 2).
type Labeler struct {
	Storage domain.CommonStorage
}

// NewLabeler constructs a Labeler with its dependency.
func NewLabeler(storage domain.CommonStorage) Labeler {
	return Labeler{Storage: storage}
}

// Label validates the label shape and the id batch, then applies the
// label to every id, returning a LabelingResult describing which ids
// succeeded. Partial success is not an error: the caller inspects the
// result's IsCompleteSuccess/IsPartialSuccess/IsCompleteFailure predicates.
func (lb Labeler) Label(ctx domain.Context, ids []int64, label domain.Label) (domain.LabelingResult, error) {
	tracer := otel.Tracer("usecase.labeler")
	ctx, span := tracer.Start(ctx, "Labeler.Label")
	defer span.End()

	lg := observability.LoggerFromContext(ctx)

	if len(ids) == 0 {
		return domain.LabelingResult{}, fmt.Errorf("op=labeler.label: %w: ids must not be empty", domain.ErrValidation)
	}
	if !validFraudLevels[label.FraudLevel] {
		return domain.LabelingResult{}, fmt.Errorf("op=labeler.label: %w: unknown fraud_level %q", domain.ErrValidation, label.FraudLevel)
	}
	if !validLabelSources[label.Source] {
		return domain.LabelingResult{}, fmt.Errorf("op=labeler.label: %w: unknown source %q", domain.ErrValidation, label.Source)
	}

	result, err := lb.Storage.LabelTransactions(ctx, ids, label)
	if err != nil {
		lg.Error("labeling failed", slog.Any("ids", ids), slog.Any("error", err))
		return domain.LabelingResult{}, fmt.Errorf("op=labeler.label: %w", err)
	}

	if result.IsPartialSuccess() {
		lg.Warn("labeling partially succeeded",
			slog.Int("success_count", result.SuccessCount),
			slog.Any("failed_transaction_ids", result.FailedTransactionIDs))
	} else if result.IsCompleteFailure() {
		lg.Error("labeling failed for all ids", slog.Any("failed_transaction_ids", result.FailedTransactionIDs))
	} else {
		lg.Info("labeling succeeded", slog.Int("success_count", result.SuccessCount))
	}

	return result, nil
}
