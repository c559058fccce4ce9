// Package ratelimit implements the fixed courtesy delay between successive
// INSPIRE search requests. The service bans clients that page too fast, so
// every page after the first is separated by a constant interval.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultInterval is the delay between two page requests.
const DefaultInterval = 3 * time.Second

// Prometheus metrics for request pacing.
var (
	pacerWaitSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspire_pacer_wait_seconds_total",
		Help: "Total time spent waiting between INSPIRE requests",
	})

	pacerInterruptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspire_pacer_interrupts_total",
		Help: "Number of pacing waits interrupted by context cancellation",
	})
)

// Pacer enforces a fixed interval between requests.
// It is not adaptive and keeps no shared state.
type Pacer struct {
	interval time.Duration
	logger   zerolog.Logger

	// after is swapped in tests.
	after func(time.Duration) <-chan time.Time
}

// NewPacer creates a pacer. A non-positive interval disables waiting.
func NewPacer(interval time.Duration, logger zerolog.Logger) *Pacer {
	return &Pacer{
		interval: interval,
		logger:   logger,
		after:    time.After,
	}
}

// Interval returns the configured delay.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Wait blocks for the configured interval or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.interval <= 0 {
		return nil
	}

	p.logger.Debug().Dur("interval", p.interval).Msg("Pausing before next request")

	start := time.Now()
	select {
	case <-ctx.Done():
		pacerInterruptsTotal.Inc()
		pacerWaitSeconds.Add(time.Since(start).Seconds())
		return fmt.Errorf("pacer wait: %w", ctx.Err())
	case <-p.after(p.interval):
		pacerWaitSeconds.Add(p.interval.Seconds())
		return nil
	}
}
