package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/kg-edge-gateway/pkg/logging"
	"github.com/Sternrassler/kg-edge-gateway/pkg/metrics"
	"github.com/go-chi/chi/v5"
)

// newAdminRouter serves liveness, readiness and metrics on the admin listener.
func newAdminRouter(ready func(ctx context.Context) error) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", healthHandler)
	r.Get("/readyz", readyHandler(ready))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports whether the cache store is reachable.
func readyHandler(ready func(ctx context.Context) error) http.HandlerFunc {
	logger := logging.NewLogger(logging.ComponentAdmin)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "text/plain")
		if err := ready(ctx); err != nil {
			logger.Warn().Err(err).Msg("Readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "NOT READY: %v", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}
