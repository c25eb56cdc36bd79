// Package main provides the worker application entry point. The worker
// drains the primary queue and, unless DRAIN_RECALC_QUEUE is false, the
// recalculation queue, running each fetched
// transaction through the processor pipeline.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/quave-io/frida-go/internal/adapter/eventbus"
	"github.com/quave-io/frida-go/internal/adapter/observability"
	"github.com/quave-io/frida-go/internal/adapter/repo/postgres"
	"github.com/quave-io/frida-go/internal/config"
	"github.com/quave-io/frida-go/internal/domain"
	"github.com/quave-io/frida-go/internal/matchgraph"
	"github.com/quave-io/frida-go/internal/orderpayload"
	"github.com/quave-io/frida-go/internal/processor"
	"github.com/quave-io/frida-go/internal/queue"
	"github.com/quave-io/frida-go/internal/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	matchers, err := matchgraph.LoadMatcherConfig(cfg.MatcherConfigPath)
	if err != nil {
		slog.Warn("matcher config load failed, falling back to defaults for every matcher", slog.Any("error", err))
		matchers = nil
	}

	var nodeCache *matchgraph.NodeIDCache
	if cfg.MatchNodeCacheEnabled() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("redis url parse failed", slog.Any("error", err))
			os.Exit(1)
		}
		nodeCache = matchgraph.NewNodeIDCache(redis.NewClient(opts), cfg.MatchNodeCacheTTL)
	}

	payloads := orderpayload.New()
	store := postgres.NewStore(pool, payloads, nodeCache, matcherProvider(matchers))

	pgQueue := queue.NewPostgresQueue(pool, cfg.QueueLeaseTimeout)
	sweeper := queue.NewLeaseSweeper(pool, cfg.QueueLeaseTimeout, cfg.QueueSweepInterval)
	go sweeper.Run(ctx)

	var events domain.EventPublisher
	if cfg.EventFanoutEnabled() {
		publisher, err := eventbus.NewKafkaPublisher(cfg.KafkaBrokers, cfg.ScoringEventsTopic)
		if err != nil {
			slog.Error("kafka publisher init failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = publisher.Close() }()
		events = publisher
	}

	scorer, err := scoring.NewExpressionScorer(ctx, store, store, events, cfg.ScoringChannel)
	if err != nil {
		slog.Error("expression scorer init failed", slog.Any("error", err))
		os.Exit(1)
	}

	proc := processor.New(store, store, pgQueue, payloads, scorer, cfg)
	kinds := []domain.QueueKind{domain.QueuePrimary}
	if cfg.DrainRecalcQueue {
		kinds = append(kinds, domain.QueueRecalculation)
	}
	workerPool := processor.NewPool(proc, pgQueue, kinds, cfg)

	slog.Info("worker started successfully, waiting for shutdown signal",
		slog.Int("pool_size_per_queue", cfg.WorkerPoolSize))
	workerPool.Run(ctx)

	slog.Info("worker stopped")
}

// matcherProvider adapts a possibly-nil *StaticMatcherConfig to
// domain.MatcherConfigProvider, falling back to DefaultMatcherConfig for
// every matcher when config load failed at startup.
func matcherProvider(m *matchgraph.StaticMatcherConfig) domain.MatcherConfigProvider {
	if m == nil {
		return defaultMatchers{}
	}
	return m
}

type defaultMatchers struct{}

func (defaultMatchers) Resolve(string) domain.MatcherConfig { return domain.DefaultMatcherConfig }
