package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/newton/internal/channels"
	"github.com/haasonsaas/newton/internal/config"
)

type healthFunc func(ctx context.Context) (map[string]channels.HealthStatus, bool)

// startMetricsServer serves registry on path and channel health on /healthz.
func startMetricsServer(addr, path string, registry *prometheus.Registry, health healthFunc, logger *slog.Logger) (*http.Server, error) {
	if path == "" {
		path = config.DefaultMetricsPath
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.HandleFunc("/healthz", healthzHandler(health))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", listener.Addr().String(), "path", path)
	return server, nil
}

func stopMetricsServer(server *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown error", "error", err)
	}
}

func healthzHandler(health healthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, healthy := health(r.Context())
		status := "ok"
		code := http.StatusOK
		if !healthy {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"status":   status,
			"channels": report,
		})
	}
}
