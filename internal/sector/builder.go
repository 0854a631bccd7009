// Package sector turns gateway quotes into per-sector performance snapshots
// and ranks them against a benchmark index.
package sector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sectorwatch/internal/domain"
	"sectorwatch/internal/gateway"
	"sectorwatch/internal/util"
)

// changeTimeframe and changeBars select the bars used for the daily change:
// the previous session's close is the first of the last two daily bars.
const (
	changeTimeframe = "D1"
	changeBars      = 2
)

// SnapshotBuilder fetches one snapshot per configured sector.
type SnapshotBuilder struct {
	md        gateway.MarketData
	sectors   []domain.Sector
	benchmark string
	pause     time.Duration
	log       *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSnapshotBuilder creates a builder for sectors, in display order, and the
// benchmark symbol. pause is slept after each sector that produced a
// snapshot.
func NewSnapshotBuilder(md gateway.MarketData, sectors []domain.Sector, benchmark string, pause time.Duration, logger *slog.Logger) *SnapshotBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotBuilder{
		md:        md,
		sectors:   sectors,
		benchmark: benchmark,
		pause:     pause,
		log:       logger.With("component", "sector"),
		now:       time.Now,
		sleep:     util.SleepContext,
	}
}

// Sectors returns the configured sectors in display order.
func (b *SnapshotBuilder) Sectors() []domain.Sector {
	return b.sectors
}

// Build returns snapshots for the sectors whose symbol is known and whose
// quote has both bid and ask, in configured order. Sectors that fail are
// skipped and logged. A cancelled context stops the build early and returns
// what was collected so far.
func (b *SnapshotBuilder) Build(ctx context.Context) []domain.SectorSnapshot {
	out := make([]domain.SectorSnapshot, 0, len(b.sectors))
	for _, s := range b.sectors {
		if ctx.Err() != nil {
			break
		}

		price, change, volume, err := b.quote(ctx, s.Symbol)
		if err != nil {
			b.log.Warn("skipping sector", "sector", s.Name, "symbol", s.Symbol, "error", err)
			continue
		}

		out = append(out, domain.SectorSnapshot{
			Sector:     s.Name,
			Symbol:     s.Symbol,
			Price:      price,
			Change:     change,
			Volume:     volume,
			CapturedAt: b.now(),
		})

		if err := b.sleep(ctx, b.pause); err != nil {
			break
		}
	}

	b.log.Info("sector snapshots built", "requested", len(b.sectors), "built", len(out))
	return out
}

// Benchmark returns the benchmark's mid price and daily change, computed the
// same way as for sectors.
func (b *SnapshotBuilder) Benchmark(ctx context.Context) (domain.BenchmarkSnapshot, error) {
	price, change, _, err := b.quote(ctx, b.benchmark)
	if err != nil {
		return domain.BenchmarkSnapshot{}, fmt.Errorf("benchmark %s: %w", b.benchmark, err)
	}
	return domain.BenchmarkSnapshot{
		Symbol:     b.benchmark,
		Price:      price,
		Change:     change,
		CapturedAt: b.now(),
	}, nil
}

// quote resolves symbol, reads its mid price and computes the percent change
// from the previous daily close. A missing bar history yields a zero change
// rather than an error.
func (b *SnapshotBuilder) quote(ctx context.Context, symbol string) (price, change, volume float64, err error) {
	if _, err := b.md.GetSymbolInfo(ctx, symbol); err != nil {
		return 0, 0, 0, fmt.Errorf("symbol info: %w", err)
	}

	tick, err := b.md.GetTick(ctx, symbol)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("tick: %w", err)
	}
	if !tick.Quoted() {
		return 0, 0, 0, fmt.Errorf("tick for %s has no bid/ask", symbol)
	}
	price = tick.Mid()
	volume = tick.Volume

	bars, err := b.md.GetOHLC(ctx, symbol, changeTimeframe, changeBars)
	if err != nil {
		b.log.Debug("no bar history, change set to zero", "symbol", symbol, "error", err)
	}
	return price, DailyChange(price, bars), volume, nil
}

// DailyChange is the percent move of price from the close of the first of
// bars. It is zero when fewer than two bars are available or the reference
// close is zero.
func DailyChange(price float64, bars []domain.Bar) float64 {
	if len(bars) < 2 {
		return 0
	}
	prev := bars[0].Close
	if prev == 0 {
		return 0
	}
	return (price - prev) / prev * 100
}
