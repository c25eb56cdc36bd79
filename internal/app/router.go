// Package app wires application components: the HTTP router and
// background sweepers shared by cmd/server and cmd/worker.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quave-io/frida-go/internal/adapter/httpserver"
	"github.com/quave-io/frida-go/internal/adapter/observability"
	"github.com/quave-io/frida-go/internal/config"
)

// ParseOrigins splits a comma-separated origin list, trimming spaces.
// Empty input means "allow all".
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with the full middleware stack
// and route table.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(cfg.HTTPWriteTimeout))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		MaxAge:           300,
	}))

	r.Get("/health", srv.HealthHandler())

	r.Group(func(wr chi.Router) {
		wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))
		wr.Post("/import", srv.ImportHandler())
		wr.Group(func(lwr chi.Router) {
			lwr.Use(httpserver.APIKeyGuard(cfg))
			lwr.Post("/transactions/label", srv.LabelHandler())
		})
		wr.Get("/transactions/{id}", srv.TransactionHandler())
		wr.Post("/transactions/query", srv.TransactionsQueryHandler())
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return httpserver.SecurityHeaders(r)
}
