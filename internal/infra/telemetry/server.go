package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// HealthReport is served on /healthz.
type HealthReport struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
	Workers int    `json:"workers"`
}

// HealthFunc reports the current worker health.
type HealthFunc func() HealthReport

// ServerOptions configures the metrics listener. An empty Addr disables it.
type ServerOptions struct {
	Addr     string
	Gatherer prometheus.Gatherer
	Health   HealthFunc
}

// Serve binds Addr and exposes /metrics and /healthz until ctx ends.
// Bind failures are returned before anything is served.
func Serve(ctx context.Context, opts ServerOptions, logger *zap.Logger) error {
	if opts.Addr == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	listener, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on metrics address %q: %w", opts.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", healthHandler(opts.Health))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	served := make(chan error, 1)
	go func() {
		served <- server.Serve(listener)
	}()
	logger.Info("metrics endpoint listening", zap.String("addr", listener.Addr().String()))

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve metrics: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics endpoint shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("metrics endpoint stopped")
	return nil
}

// healthHandler answers 200 while at least one worker runs, 503 otherwise.
func healthHandler(source HealthFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		report := HealthReport{Status: "ok"}
		if source != nil {
			report = source()
		}
		code := http.StatusOK
		if report.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	})
}
