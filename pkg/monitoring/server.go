package monitoring

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServeMetrics exposes /metrics on address in the background. The returned
// server is shut down by the caller.
func ServeMetrics(address string, logger *slog.Logger) *http.Server {
	server := &http.Server{
		Addr:    address,
		Handler: Handler(),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "address", address, "error", err.Error())
		}
	}()
	return server
}

// Handler routes /metrics to the default prometheus registry.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
