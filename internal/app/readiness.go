package app

import (
	"context"
	"fmt"
)

// Pinger is the minimal interface a storage pool must satisfy for the
// health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BuildHealthCheck returns the db readiness probe used by GET /health.
func BuildHealthCheck(pool Pinger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("db not configured")
		}
		return pool.Ping(ctx)
	}
}
