// Command migrator applies the embedded schema in migrations/ against
// DB_URL. It is a thin CLI: the actual migration logic lives in
// internal/migrate so cmd/server and cmd/worker could call it directly in a
// zero-config deployment if they wanted to.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/quave-io/frida-go/internal/adapter/repo/postgres"
	"github.com/quave-io/frida-go/internal/config"
	"github.com/quave-io/frida-go/internal/migrate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		slog.Error("migration failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("migrations applied")
}
