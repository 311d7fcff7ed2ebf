package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsShutdownTimeout = 5 * time.Second

// startMetricsServer serves /metrics on addr until the returned stop func is
// called.
func startMetricsServer(log *slog.Logger, addr string) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start prometheus metrics server listener: %w", err)
	}
	log.Info("prometheus metrics server listening", "address", listener.Addr().String())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to serve prometheus metrics", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("failed to shut down prometheus metrics server", "error", err)
		}
	}, nil
}
