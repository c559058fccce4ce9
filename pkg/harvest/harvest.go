// Package harvest runs the fetch, map and write stages as one harvest.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/inspire-names/pkg/logging"
	"github.com/Sternrassler/inspire-names/pkg/mapping"
	"github.com/Sternrassler/inspire-names/pkg/pagination"
	"github.com/Sternrassler/inspire-names/pkg/persist"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrNoOutput is returned when no destination path is configured.
var ErrNoOutput = errors.New("output path is required")

// Result labels for inspire_harvest_runs_total.
const (
	resultSuccess    = "success"
	resultFetchError = "fetch_error"
	resultWriteError = "write_error"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspire_harvest_runs_total",
		Help: "Total harvest runs by result",
	}, []string{"result"})

	lastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inspire_harvest_last_success_timestamp_seconds",
		Help: "Unix time of the last successful harvest",
	})
)

// Config holds harvest configuration.
type Config struct {
	// PageSize is the number of records requested per page
	PageSize int

	// Output is the destination JSON file
	Output string

	// ExcludeIncomplete drops records missing an identifier or a name
	ExcludeIncomplete bool

	// Fetch configures pacing and page limits
	Fetch pagination.Config
}

// DefaultConfig returns the configuration for a full harvest into output.
func DefaultConfig(output string) Config {
	return Config{
		PageSize: pagination.DefaultPageSize,
		Output:   output,
		Fetch:    pagination.DefaultConfig(),
	}
}

// Result summarizes a finished harvest.
type Result struct {
	RunID    string
	Records  int
	Entries  int
	Complete int
	Output   string
	Duration time.Duration
}

// Harvester fetches every identity record, builds the mapping and writes it.
type Harvester struct {
	fetcher *pagination.Fetcher
	config  Config
}

// New creates a harvester reading pages from source.
func New(source pagination.PageFetcher, cfg Config) (*Harvester, error) {
	if cfg.Output == "" {
		return nil, ErrNoOutput
	}
	if cfg.PageSize < 1 {
		return nil, fmt.Errorf("%w (got %d)", pagination.ErrInvalidPageSize, cfg.PageSize)
	}

	return &Harvester{
		fetcher: pagination.NewFetcher(source, cfg.Fetch),
		config:  cfg,
	}, nil
}

// Run performs one harvest. A fetch failure aborts before anything is
// written, so an earlier output file is left untouched.
func (h *Harvester) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	ctx = logging.ContextWithRun(ctx, runID)
	logger := logging.FromContext(ctx, "harvest")
	start := time.Now()

	logger.Info().
		Int("page_size", h.config.PageSize).
		Str("path", h.config.Output).
		Msg("Harvest started")

	records, err := h.fetcher.FetchAll(ctx, h.config.PageSize)
	if err != nil {
		runsTotal.WithLabelValues(resultFetchError).Inc()
		logger.Error().Err(err).Msg("Harvest aborted during fetch")
		return nil, fmt.Errorf("fetch: %w", err)
	}

	opts := []mapping.Option{mapping.WithLogger(logging.FromContext(ctx, "mapper"))}
	if h.config.ExcludeIncomplete {
		opts = append(opts, mapping.WithExcludeIncomplete())
	}
	m := mapping.Build(records, opts...)

	if err := persist.WriteContext(ctx, m, h.config.Output); err != nil {
		runsTotal.WithLabelValues(resultWriteError).Inc()
		logger.Error().Err(err).Str("path", h.config.Output).Msg("Harvest aborted during write")
		return nil, fmt.Errorf("write: %w", err)
	}

	result := &Result{
		RunID:    runID,
		Records:  len(records),
		Entries:  len(m),
		Complete: m.Complete(),
		Output:   h.config.Output,
		Duration: time.Since(start),
	}

	runsTotal.WithLabelValues(resultSuccess).Inc()
	lastSuccess.SetToCurrentTime()

	logger.Info().
		Int("records", result.Records).
		Int("entries", result.Entries).
		Int("complete", result.Complete).
		Dur("duration", result.Duration).
		Msg("Harvest complete")

	return result, nil
}
