// Command server starts the frida-go HTTP API: transaction import, batch
// labelling, and the transactions read/query surface.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quave-io/frida-go/internal/adapter/httpserver"
	"github.com/quave-io/frida-go/internal/adapter/observability"
	"github.com/quave-io/frida-go/internal/adapter/repo/postgres"
	"github.com/quave-io/frida-go/internal/app"
	"github.com/quave-io/frida-go/internal/config"
	"github.com/quave-io/frida-go/internal/domain"
	"github.com/quave-io/frida-go/internal/matchgraph"
	"github.com/quave-io/frida-go/internal/orderpayload"
	"github.com/quave-io/frida-go/internal/queryplan"
	"github.com/quave-io/frida-go/internal/usecase"
)

// defaultMatchers resolves every matcher to domain.DefaultMatcherConfig. The
// HTTP server never performs matching itself; this provider is what it hands
// to the Store.
type defaultMatchers struct{}

func (defaultMatchers) Resolve(string) domain.MatcherConfig { return domain.DefaultMatcherConfig }

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	payloads := orderpayload.New()
	matchers, err := matchgraph.LoadMatcherConfig(cfg.MatcherConfigPath)
	var matcherProvider domain.MatcherConfigProvider = defaultMatchers{}
	if err != nil {
		slog.Warn("matcher config load failed, falling back to defaults for every matcher", slog.Any("error", err))
	} else {
		matcherProvider = matchers
	}
	store := postgres.NewStore(pool, payloads, nil, matcherProvider)

	importer := usecase.NewImporter(store)
	labeler := usecase.NewLabeler(store)
	registry := queryplan.NewTransactionsRegistry(payloads().ColumnDescriptors())

	dbCheck := app.BuildHealthCheck(pool)

	srv := httpserver.NewServer(payloads, importer, labeler, registry, store, dbCheck, cfg.MaxImportBodyMB<<20)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
