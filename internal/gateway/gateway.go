// Package gateway is a client for the brokerage REST gateway that proxies
// requests to a trading terminal. It spaces requests with a shared rate
// limiter, retries throttled requests a bounded number of times, and
// normalizes the gateway's loosely shaped JSON into typed records.
package gateway

import (
	"context"
	"time"

	"sectorwatch/internal/config"
	"sectorwatch/internal/domain"
)

// MarketData is the subset of the gateway used to build sector snapshots.
type MarketData interface {
	// GetSymbolInfo returns the terminal's description of symbol.
	GetSymbolInfo(ctx context.Context, symbol string) (map[string]any, error)

	// GetTick returns the current best bid/ask for symbol.
	GetTick(ctx context.Context, symbol string) (domain.Tick, error)

	// GetOHLC returns the most recent count bars for symbol, oldest first.
	GetOHLC(ctx context.Context, symbol, timeframe string, count int) ([]domain.Bar, error)
}

// Compile-time interface check.
var _ MarketData = (*Client)(nil)

// Endpoints maps each logical gateway operation to its URL path.
var Endpoints = map[string]string{
	"connect":        "/connect",
	"shutdown":       "/shutdown",
	"version":        "/version",
	"terminal_info":  "/terminal_info",
	"account_info":   "/account_info",
	"symbols":        "/symbols",
	"symbol_info":    "/symbol_info",
	"tick":           "/tick",
	"ticks":          "/ticks",
	"ohlc":           "/ohlc",
	"order_send":     "/order_send",
	"positions":      "/positions",
	"orders":         "/orders",
	"deals":          "/deals",
	"history_orders": "/history_orders",
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	APIHost string

	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration
	// ConnectTimeoutMS is forwarded to the terminal in the connect request.
	ConnectTimeoutMS int

	MinRequestInterval time.Duration
	MaxAttempts        int
	BaseDelay          time.Duration
	// DefaultRetryAfter applies when a 429 response has no usable
	// Retry-After header.
	DefaultRetryAfter time.Duration
}

// OptionsFromConfig maps the loaded configuration onto client options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:            cfg.Gateway.BaseURL,
		APIKey:             cfg.Gateway.APIKey,
		APIHost:            cfg.Gateway.APIHost,
		Timeout:            cfg.Gateway.Timeout,
		ConnectTimeoutMS:   cfg.Gateway.ConnectTimeoutMS,
		MinRequestInterval: cfg.RateLimit.MinRequestInterval,
		MaxAttempts:        cfg.RateLimit.MaxAttempts,
		BaseDelay:          cfg.RateLimit.BaseDelay,
		DefaultRetryAfter:  cfg.RateLimit.DefaultRetryAfter,
	}
}
