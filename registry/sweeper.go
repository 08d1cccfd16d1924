package registry

import (
	"context"
	"time"

	"masterserver/helpers"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Sweepable is anything that can drop its expired entries.
type Sweepable interface {
	Sweep() int
}

// Sweeper periodically evicts expired entries. Snapshots never depend on it: they filter expired entries
// themselves, so the sweeper only bounds memory.
type Sweeper struct {
	target   Sweepable
	interval time.Duration
	logger   log.Logger
}

// NewSweeper creates a sweeper that calls target.Sweep every interval. Panics on nil target or logger, or a
// non-positive interval.
func NewSweeper(target Sweepable, interval time.Duration, logger log.Logger) *Sweeper {
	if interval <= 0 {
		panic("registry.sweeper.go: interval must be positive")
	}
	return &Sweeper{
		target:   helpers.NilPanic(target, "registry.sweeper.go: target is required"),
		interval: interval,
		logger:   log.With(helpers.NilPanic(logger, "registry.sweeper.go: logger is required"), "component", "sweeper"),
	}
}

// Run sweeps until ctx is canceled. Blocking; start it in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	level.Info(s.logger).Log("msg", "sweeper started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			level.Info(s.logger).Log("msg", "sweeper stopped")
			return
		case <-ticker.C:
			if n := s.target.Sweep(); n > 0 {
				level.Info(s.logger).Log("msg", "expired servers swept", "count", n)
			}
		}
	}
}
