// Package engine runs the sector dashboard's polling loop: build snapshots,
// rank them against the benchmark, render, then wait for the next cycle.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"sectorwatch/internal/dashboard"
	"sectorwatch/internal/domain"
	"sectorwatch/internal/sector"
	"sectorwatch/internal/util"
)

// Snapshotter produces the raw per-cycle data.
type Snapshotter interface {
	Build(ctx context.Context) []domain.SectorSnapshot
	Benchmark(ctx context.Context) (domain.BenchmarkSnapshot, error)
}

// MarketClock reports whether the market is in session.
type MarketClock interface {
	IsMarketOpen(t time.Time) bool
}

var (
	_ Snapshotter = (*sector.SnapshotBuilder)(nil)
	_ MarketClock = (*util.TradingCalendar)(nil)
)

// Options configures an Engine.
type Options struct {
	// Interval is the pause between the end of one cycle and the start of
	// the next.
	Interval time.Duration
	Color    bool
	// Clock, when set, skips cycles while the market is closed.
	Clock MarketClock
}

// Engine drives the polling loop. It is not safe for concurrent use.
type Engine struct {
	src     Snapshotter
	history *sector.History
	out     io.Writer
	opts    Options
	log     *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an Engine that renders to out and keeps past cycles in
// history.
func NewEngine(src Snapshotter, history *sector.History, out io.Writer, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if history == nil {
		history = sector.NewHistory(1)
	}
	return &Engine{
		src:     src,
		history: history,
		out:     out,
		opts:    opts,
		log:     logger.With("component", "engine"),
		now:     time.Now,
		sleep:   util.SleepContext,
	}
}

// History returns the cycles recorded so far.
func (e *Engine) History() *sector.History {
	return e.history
}

// Run executes a cycle immediately and then one every Interval until ctx is
// cancelled. A failing or panicking cycle is logged and the loop goes on.
// Run returns nil once ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("starting sector dashboard", "interval", e.opts.Interval)

	for cycle := 1; ; cycle++ {
		if err := e.RunCycle(ctx); err != nil && ctx.Err() == nil {
			e.log.Error("cycle failed", "cycle", cycle, "error", err)
		}
		if ctx.Err() != nil {
			break
		}

		e.log.Info("next update scheduled", "in", e.opts.Interval)
		if err := e.sleep(ctx, e.opts.Interval); err != nil {
			break
		}
	}

	e.log.Info("sector dashboard stopped")
	return nil
}

// RunCycle performs one fetch-rank-render pass. A benchmark failure is
// logged and the sectors are rendered without relative strength. Panics are
// recovered and returned as errors.
func (e *Engine) RunCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("cycle panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()

	at := e.now()
	if e.opts.Clock != nil && !e.opts.Clock.IsMarketOpen(at) {
		e.log.Info("market closed, skipping cycle", "at", at)
		return nil
	}

	start := time.Now()
	sectors := e.src.Build(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	var bench *domain.BenchmarkSnapshot
	if b, err := e.src.Benchmark(ctx); err != nil {
		e.log.Warn("benchmark unavailable", "error", err)
	} else {
		bench = &b
	}

	ranked := sector.RelativeStrength(sectors, bench)
	frame := dashboard.Frame{
		At:        at,
		Benchmark: bench,
		Sectors:   ranked,
		Previous:  e.history.Previous,
	}
	if err := dashboard.Render(e.out, frame, dashboard.Options{Color: e.opts.Color}); err != nil {
		return fmt.Errorf("rendering dashboard: %w", err)
	}

	if len(ranked) > 0 {
		e.history.Record(sector.Cycle{At: at, Benchmark: bench, Sectors: ranked})
	}

	e.log.Info("cycle complete",
		"sectors", len(ranked),
		"benchmark", bench != nil,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
