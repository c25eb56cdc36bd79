// Package processor drives a transaction through its full lifecycle: load
// payload, save matching fields, traverse the match graph, save features,
// score, mark processed (spec §4.6).
package processor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"

	"github.com/quave-io/frida-go/internal/adapter/observability"
	"github.com/quave-io/frida-go/internal/config"
	"github.com/quave-io/frida-go/internal/domain"
)

// Scorer is the subset of scoring.ExpressionScorer the processor depends
// on. Declared here so the processor package doesn't import scoring
// directly and can be exercised with a stub in tests.
type Scorer interface {
	ScoreAndSave(ctx domain.Context, transactionID int64, activationID int64, features []domain.Feature) (domain.ScoringEvent, error)
}

// Processor drives one transaction id through the §4.6 state machine.
// Instances are safe for concurrent use: workers share one Processor, its
// Scorer (immutable after init), and its storage/queue handles.
type Processor struct {
	Storage       domain.ProcessibleStorage
	Common        domain.CommonStorage
	Queue         domain.Queue
	Payloads      domain.PayloadFactory
	Scorer        Scorer
	TraverseDepth int
	TraverseLimit int
	MinConfidence int
}

// New constructs a Processor from its dependencies and the match-graph
// traversal defaults (§4.3).
func New(storage domain.ProcessibleStorage, common domain.CommonStorage, queue domain.Queue, payloads domain.PayloadFactory, scorer Scorer, cfg config.Config) *Processor {
	return &Processor{
		Storage:       storage,
		Common:        common,
		Queue:         queue,
		Payloads:      payloads,
		Scorer:        scorer,
		TraverseDepth: cfg.DefaultMaxDepth,
		TraverseLimit: cfg.DefaultTraversalCap,
		MinConfidence: cfg.DefaultMinConfidence,
	}
}

// Process drives entry through load_payload -> save_matching_fields ->
// traversal -> save_features -> score_and_save -> mark_processed, in that
// strict order (§4.6, §5). All steps, mark_processed included, run within
// this one call; mark_processed is the last of them, so a failure anywhere
// before it leaves the entry eligible for retry.
func (p *Processor) Process(ctx domain.Context, kind domain.QueueKind, entry domain.QueueEntry) error {
	tracer := otel.Tracer("processor")
	ctx, span := tracer.Start(ctx, "Processor.Process")
	defer span.End()

	start := time.Now()
	lg := observability.LoggerFromContext(ctx)
	outcome := "failed"
	defer func() { observability.ObserveProcessorOutcome(outcome, time.Since(start)) }()

	payload := p.Payloads()

	stageStart := time.Now()
	if err := p.Storage.LoadPayload(ctx, entry.TransactionID, payload); err != nil {
		return fmt.Errorf("op=processor.process.load transaction_id=%d: %w", entry.TransactionID, err)
	}
	if err := p.Storage.SetTransactionID(ctx, entry.TransactionID); err != nil {
		return fmt.Errorf("op=processor.process.set_id transaction_id=%d: %w", entry.TransactionID, err)
	}
	observability.ObserveProcessorStage("load", time.Since(stageStart))

	stageStart = time.Now()
	if fields := payload.ExtractMatchingFields(); len(fields) > 0 {
		if err := p.Common.SaveMatchingFields(ctx, entry.TransactionID, fields); err != nil {
			return fmt.Errorf("op=processor.process.matching transaction_id=%d: %w", entry.TransactionID, err)
		}
	}
	observability.ObserveProcessorStage("matching", time.Since(stageStart))

	stageStart = time.Now()
	direct, err := p.Common.GetDirectConnections(ctx, entry.TransactionID)
	if err != nil {
		return fmt.Errorf("op=processor.process.direct transaction_id=%d: %w", entry.TransactionID, err)
	}
	connected, err := p.Common.FindConnectedTransactions(ctx, entry.TransactionID, domain.TraversalOptions{
		MaxDepth:      p.TraverseDepth,
		Limit:         p.TraverseLimit,
		MinConfidence: p.MinConfidence,
	})
	if err != nil {
		return fmt.Errorf("op=processor.process.traverse transaction_id=%d: %w", entry.TransactionID, err)
	}
	observability.ObserveProcessorStage("traversal", time.Since(stageStart))

	stageStart = time.Now()
	simple := payload.ExtractSimpleFeatures()
	graph := payload.ExtractGraphFeatures(connected, direct)
	major, minor := payload.SchemaVersion()
	if err := p.Common.SaveFeatures(ctx, entry.TransactionID, major, minor, simple, graph, false); err != nil {
		return fmt.Errorf("op=processor.process.features transaction_id=%d: %w", entry.TransactionID, err)
	}
	observability.ObserveProcessorStage("features", time.Since(stageStart))

	stageStart = time.Now()
	all := append(append([]domain.Feature{}, simple...), graph...)
	if _, err := p.Scorer.ScoreAndSave(ctx, entry.TransactionID, entry.ID, all); err != nil {
		return fmt.Errorf("op=processor.process.score transaction_id=%d: %w", entry.TransactionID, err)
	}
	observability.ObserveProcessorStage("scoring", time.Since(stageStart))

	if err := p.Queue.MarkProcessed(ctx, kind, entry.ID); err != nil {
		return fmt.Errorf("op=processor.process.mark_processed transaction_id=%d entry_id=%d: %w", entry.TransactionID, entry.ID, err)
	}

	outcome = "completed"
	lg.Info("transaction processed", slog.Int64("transaction_id", entry.TransactionID), slog.Int64("entry_id", entry.ID))
	return nil
}

// ProcessWithRetry runs Process up to retryCfg.MaxRetries attempts in total
// (at least one), with exponential backoff between attempts, moving the
// entry to the recalculation queue if
// every attempt fails (§4.6: "after K failures, the entry is moved to the
// recalculation/failed queue with the original id preserved and no
// scoring event emitted for this attempt").
func (p *Processor) ProcessWithRetry(ctx domain.Context, kind domain.QueueKind, entry domain.QueueEntry, retryCfg config.RetryConfig) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryCfg.InitialDelay
	bo.MaxInterval = retryCfg.MaxDelay
	bo.Multiplier = retryCfg.Multiplier
	bo.RandomizationFactor = 0
	if retryCfg.Jitter {
		bo.RandomizationFactor = backoff.DefaultRandomizationFactor
	}

	lg := observability.LoggerFromContext(ctx)
	attempts := retryCfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = p.Process(ctx, kind, entry)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		observability.RecordRetry("process_failed")
		lg.Warn("processing attempt failed, retrying",
			slog.Int64("transaction_id", entry.TransactionID),
			slog.Int("attempt", attempt+1),
			slog.Any("error", lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}

	observability.RecordProcessorFailed()
	lg.Error("processing exhausted retry budget, moving to recalculation queue",
		slog.Int64("transaction_id", entry.TransactionID), slog.Any("error", lastErr))
	if err := p.Queue.Enqueue(ctx, domain.QueueRecalculation, entry.TransactionID); err != nil {
		return fmt.Errorf("op=processor.requeue transaction_id=%d: %w", entry.TransactionID, err)
	}
	if err := p.Queue.MarkProcessed(ctx, kind, entry.ID); err != nil {
		return fmt.Errorf("op=processor.requeue.mark_processed transaction_id=%d entry_id=%d: %w", entry.TransactionID, entry.ID, err)
	}
	return nil
}
