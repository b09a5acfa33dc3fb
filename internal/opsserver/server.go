package opsserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// HealthFunc reports whether the watcher is healthy.
type HealthFunc func(ctx context.Context) error

// Server is the HTTP listener for /metrics and /healthz.
type Server struct {
	srv *http.Server
}

func newMux(g prometheus.Gatherer, healthFn HealthFunc) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "unhealthy: %v", err)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	return mux
}

// Start serves the ops endpoints on addr in a background goroutine. The
// returned Server must be shut down by the caller.
func Start(addr string, g prometheus.Gatherer, healthFn HealthFunc, log zerolog.Logger) *Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(g, healthFn),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("ops server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ops server stopped")
		}
	}()

	return &Server{srv: srv}
}

// Shutdown stops the listener, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
