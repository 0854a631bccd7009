// Package domain defines the plain data records shared across the gateway
// client, the snapshot builder, and the dashboard.
package domain

import (
	"log/slog"
	"time"
)

// Credentials identify the trading-terminal account behind the gateway.
// They are supplied once at startup and never change.
type Credentials struct {
	Login    int64
	Password string
	Server   string
}

// LogValue keeps the password out of every log line.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("login", c.Login),
		slog.String("server", c.Server),
	)
}

// Sector maps a display label to the tradable symbol that tracks it.
type Sector struct {
	Name   string `yaml:"name"`
	Symbol string `yaml:"symbol"`
}

// Tick is a best bid/ask quote. HasBid and HasAsk report whether the gateway
// actually sent those fields.
type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Last   float64
	Volume float64
	HasBid bool
	HasAsk bool
	Time   time.Time
}

// Quoted reports whether both sides of the quote are present.
func (t Tick) Quoted() bool {
	return t.HasBid && t.HasAsk
}

// Mid returns the average of bid and ask.
func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// Bar is an OHLCV aggregate for one timeframe bucket. Time is the bucket
// start in unix seconds as reported by the gateway.
type Bar struct {
	Symbol    string
	Timeframe string
	Time      int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// SectorSnapshot is one sector's performance for a single polling cycle.
type SectorSnapshot struct {
	Sector     string
	Symbol     string
	Price      float64 // mid price
	Change     float64 // daily percent change
	Volume     float64
	CapturedAt time.Time

	// Set by the relative-strength calculation.
	RelativeStrength    float64
	HasRelativeStrength bool
}

// BenchmarkSnapshot is the benchmark index's performance for a single
// polling cycle.
type BenchmarkSnapshot struct {
	Symbol     string
	Price      float64
	Change     float64
	CapturedAt time.Time
}

// AccountInfo is a summary of the terminal account.
type AccountInfo struct {
	Login      int64
	Server     string
	Currency   string
	Leverage   int64
	Balance    float64
	Equity     float64
	Margin     float64
	FreeMargin float64
	Profit     float64
}

// PositionSide is the direction of an open position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// Position is an open position reported by the terminal.
type Position struct {
	Ticket       int64
	Symbol       string
	Side         PositionSide
	Volume       float64
	PriceOpen    float64
	PriceCurrent float64
	Profit       float64
}
