package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/inspire-names/pkg/logging"
	"github.com/Sternrassler/inspire-names/pkg/marc"
	"github.com/Sternrassler/inspire-names/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultPageSize is the number of records requested per page.
// INSPIRE caps regular users at 251.
const DefaultPageSize = 250

const componentName = "fetcher"

// ErrInvalidPageSize is returned for page sizes below 1.
var ErrInvalidPageSize = errors.New("page size must be >= 1")

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspire_pages_fetched_total",
		Help: "Total number of non-empty search pages fetched",
	})

	recordsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspire_records_fetched_total",
		Help: "Total number of MARC records fetched",
	})
)

// Config holds fetcher configuration.
type Config struct {
	// Delay between two page requests
	Delay time.Duration
	// MaxPages stops after this many non-empty pages; 0 means no limit
	MaxPages int
	// Namespaces used to locate record elements
	Namespaces marc.Namespaces
}

// DefaultConfig returns the configuration used against the public service.
func DefaultConfig() Config {
	return Config{
		Delay:      ratelimit.DefaultInterval,
		MaxPages:   0,
		Namespaces: marc.DefaultNamespaces,
	}
}

// PageFetcher returns the raw body of one search page.
type PageFetcher interface {
	// FetchPage fetches pageSize records starting at the 1-based offset
	FetchPage(ctx context.Context, pageSize, offset int) ([]byte, error)
}

// PageError reports the page at which a fetch aborted.
type PageError struct {
	Offset   int
	PageSize int
	Err      error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page at offset %d (size %d): %v", e.Offset, e.PageSize, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// Fetcher accumulates all records of a paginated search.
type Fetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewFetcher creates a new sequential fetcher.
func NewFetcher(fetcher PageFetcher, config Config) *Fetcher {
	if config.Namespaces == nil {
		config.Namespaces = marc.DefaultNamespaces
	}
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}

	return &Fetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll requests pages of pageSize records until a page has none and
// returns every record in service order. The first page that fails to
// fetch or parse aborts the whole run with a *PageError; nothing fetched
// so far is returned in that case.
func (f *Fetcher) FetchAll(ctx context.Context, pageSize int) ([]marc.Record, error) {
	if pageSize < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidPageSize, pageSize)
	}

	logger := logging.FromContext(ctx, componentName)
	pacer := ratelimit.NewPacer(f.config.Delay, logger)
	start := time.Now()
	offset := 1
	pages := 0
	all := []marc.Record{}

	logger.Info().
		Int("page_size", pageSize).
		Dur("delay", f.config.Delay).
		Msg("Starting sequential page fetch")

	for {
		if err := ctx.Err(); err != nil {
			return nil, &PageError{Offset: offset, PageSize: pageSize, Err: err}
		}

		data, err := f.fetcher.FetchPage(ctx, pageSize, offset)
		if err != nil {
			logger.Error().
				Err(err).
				Int("offset", offset).
				Msg("Page fetch failed")
			return nil, &PageError{Offset: offset, PageSize: pageSize, Err: err}
		}

		records, err := marc.ParseRecords(data, f.config.Namespaces)
		if err != nil {
			logger.Error().
				Err(err).
				Int("offset", offset).
				Int("bytes", len(data)).
				Msg("Page parse failed")
			return nil, &PageError{Offset: offset, PageSize: pageSize, Err: err}
		}

		if len(records) == 0 {
			break
		}

		all = append(all, records...)
		pages++
		pagesFetchedTotal.Inc()
		recordsFetchedTotal.Add(float64(len(records)))

		logger.Info().
			Int("offset", offset).
			Int("page_records", len(records)).
			Int("total_records", len(all)).
			Msg("Fetch progress")

		if f.config.MaxPages > 0 && pages >= f.config.MaxPages {
			logger.Warn().
				Int("max_pages", f.config.MaxPages).
				Msg("Page limit reached, stopping early")
			break
		}

		offset += pageSize

		if err := pacer.Wait(ctx); err != nil {
			return nil, &PageError{Offset: offset, PageSize: pageSize, Err: err}
		}
	}

	logger.Info().
		Int("pages", pages).
		Int("records", len(all)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return all, nil
}
