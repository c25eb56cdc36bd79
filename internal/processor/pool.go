package processor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/quave-io/frida-go/internal/adapter/observability"
	"github.com/quave-io/frida-go/internal/config"
	"github.com/quave-io/frida-go/internal/domain"
)

// Pool runs N workers draining one or more queue kinds (§4.6, §5). Workers
// share the Processor instance (and therefore its Scorer and storage
// handles). New fetches stop once ctx is cancelled; in-flight work is
// allowed to finish its current id.
type Pool struct {
	Processor *Processor
	Queue     domain.Queue
	Kinds     []domain.QueueKind
	Size      int
	BatchSize int
	IdleSleep time.Duration
	Retry     config.RetryConfig
}

// NewPool constructs a worker pool over kinds, reading sizing from cfg.
func NewPool(proc *Processor, queue domain.Queue, kinds []domain.QueueKind, cfg config.Config) *Pool {
	return &Pool{
		Processor: proc,
		Queue:     queue,
		Kinds:     kinds,
		Size:      cfg.WorkerPoolSize,
		BatchSize: cfg.WorkerBatchSize,
		IdleSleep: cfg.WorkerIdleSleep,
		Retry:     cfg.GetRetryConfig(),
	}
}

// Run starts Size workers per queue kind and blocks until ctx is cancelled
// and every worker has returned from its current iteration.
func (pool *Pool) Run(ctx domain.Context) {
	var wg sync.WaitGroup
	for _, kind := range pool.Kinds {
		for i := 0; i < pool.Size; i++ {
			wg.Add(1)
			go func(kind domain.QueueKind, workerID int) {
				defer wg.Done()
				pool.runWorker(ctx, kind, workerID)
			}(kind, i)
		}
	}
	wg.Wait()
}

func (pool *Pool) runWorker(ctx domain.Context, kind domain.QueueKind, workerID int) {
	lg := observability.LoggerFromContext(ctx).With(slog.String("queue", string(kind)), slog.Int("worker_id", workerID))
	lg.Info("worker started")
	defer lg.Info("worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entries, err := pool.Queue.FetchNext(ctx, kind, pool.BatchSize)
		if err != nil {
			lg.Error("fetch_next failed", slog.Any("error", err))
			if !sleepOrDone(ctx, pool.IdleSleep) {
				return
			}
			continue
		}

		if len(entries) == 0 {
			if !sleepOrDone(ctx, pool.IdleSleep) {
				return
			}
			continue
		}

		for _, entry := range entries {
			if err := pool.Processor.ProcessWithRetry(ctx, kind, entry, pool.Retry); err != nil {
				lg.Error("process failed permanently",
					slog.Int64("transaction_id", entry.TransactionID), slog.Any("error", err))
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}
}

// sleepOrDone sleeps for d, returning false if ctx is cancelled first.
func sleepOrDone(ctx domain.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
