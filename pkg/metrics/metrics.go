// Package metrics exposes the Prometheus registry used by the harvester.
// Metrics are defined next to the code that updates them (client, cache,
// ratelimit, pagination, mapping, persist); this package documents them and
// serves them over HTTP.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by the harvester.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Path is where Serve exposes the metrics.
const Path = "/metrics"

// Handler returns the HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes Handler on addr until ctx is done.
// A harvest is short-lived, so scrapers should use a short interval or a
// pushgateway-style sidecar.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(Path, Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - inspire_requests_total{status} (Counter): Search requests by HTTP status, "cached" or error kind
//   - inspire_request_duration_seconds (Histogram): Search request duration
//   - inspire_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - inspire_retries_total{error_class} (Counter): Retry attempts by error class
//   - inspire_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - inspire_retry_exhausted_total{error_class} (Counter): Pages that exhausted max retries
//
// Pacing Metrics (pkg/ratelimit):
//   - inspire_pacer_wait_seconds_total (Counter): Time spent in the courtesy delay
//   - inspire_pacer_interrupts_total (Counter): Delays cut short by cancellation
//
// Fetch Metrics (pkg/pagination):
//   - inspire_pages_fetched_total (Counter): Non-empty pages fetched
//   - inspire_records_fetched_total (Counter): MARC records fetched
//
// Cache Metrics (pkg/cache):
//   - inspire_cache_hits_total, inspire_cache_misses_total (Counter)
//   - inspire_cache_written_bytes_total (Counter): Bytes written to Redis
//   - inspire_cache_errors_total{operation} (Counter)
//
// Output Metrics (pkg/mapping, pkg/persist):
//   - inspire_mapping_entries (Gauge): Entries in the last mapping
//   - inspire_mapping_incomplete_total (Counter): Records missing an identifier or a name
//   - inspire_write_bytes (Gauge): Size of the last written file
//
// Run Metrics (pkg/harvest):
//   - inspire_harvest_runs_total{result} (Counter): success, fetch_error, write_error
//   - inspire_harvest_last_success_timestamp_seconds (Gauge)
//
// Example Prometheus Queries:
//
//   # Retry rate
//   rate(inspire_retries_total[5m])
//
//   # Share of incomplete records
//   inspire_mapping_incomplete_total / inspire_records_fetched_total
