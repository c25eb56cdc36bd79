// Package migrate applies the embedded schema in migrations/ against the
// configured database. The teacher repo carries no schema of its own; this
// borrows the filename discipline of another pack repo's embedded-migration
// approach (NNN_name.up.sql / NNN_name.down.sql) but applies files directly
// through the project's own pgx pool instead of introducing a second SQL
// driver stack.
package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quave-io/frida-go/migrations"
)

var filenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

type file struct {
	sequence int
	name     string
	filename string
}

func upFiles() ([]file, error) {
	entries, err := fs.ReadDir(migrations.Files, ".")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}

	var out []file
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := filenameRegex.FindStringSubmatch(e.Name())
		if m == nil || m[3] != "up" {
			continue
		}
		seq, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("migration filename %s: %w", e.Name(), err)
		}
		out = append(out, file{sequence: seq, name: m[2], filename: e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sequence < out[j].sequence })
	return out, nil
}

// Apply runs every embedded up-migration not yet recorded in
// schema_migrations, in sequence order, each inside its own transaction.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INT PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	files, err := upFiles()
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	for _, f := range files {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, f.sequence).Scan(&exists); err != nil {
			return fmt.Errorf("migrate: check version %d: %w", f.sequence, err)
		}
		if exists {
			continue
		}

		sqlBytes, err := migrations.Files.ReadFile(f.filename)
		if err != nil {
			return fmt.Errorf("migrate: read %s: %w", f.filename, err)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("migrate: begin %s: %w", f.filename, err)
		}
		if _, err := tx.Exec(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migrate: apply %s: %w", f.filename, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, f.sequence, f.name); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migrate: record %s: %w", f.filename, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("migrate: commit %s: %w", f.filename, err)
		}
	}
	return nil
}
