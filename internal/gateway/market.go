package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"sectorwatch/internal/domain"
)

// dateLayout is the gateway's date_from/date_to format.
const dateLayout = "2006-01-02 15:04:05"

// barDurations holds the span of one bar for each terminal timeframe code.
var barDurations = map[string]time.Duration{
	"M1":  time.Minute,
	"M5":  5 * time.Minute,
	"M15": 15 * time.Minute,
	"M30": 30 * time.Minute,
	"H1":  time.Hour,
	"H4":  4 * time.Hour,
	"D1":  24 * time.Hour,
	"W1":  7 * 24 * time.Hour,
	"MN1": 30 * 24 * time.Hour,
}

// ohlcWindow is how far back to request so that count bars are covered,
// with a 2x buffer for closed sessions. Unknown timeframes request count
// days.
func ohlcWindow(timeframe string, count int) time.Duration {
	if d, ok := barDurations[strings.ToUpper(timeframe)]; ok {
		return time.Duration(count) * 2 * d
	}
	return time.Duration(count) * 24 * time.Hour
}

// GetOHLC returns the last count bars for symbol in ascending time order.
// On failure it returns an empty, non-nil slice together with the error.
func (c *Client) GetOHLC(ctx context.Context, symbol, timeframe string, count int) ([]domain.Bar, error) {
	empty := []domain.Bar{}
	if count <= 0 {
		return empty, fmt.Errorf("ohlc count must be positive, got %d", count)
	}
	if err := c.ensureConnected(ctx); err != nil {
		c.log.Error("cannot fetch bars", "symbol", symbol, "error", err)
		return empty, err
	}

	end := c.now()
	start := end.Add(-ohlcWindow(timeframe, count))
	res, err := c.Request(ctx, "ohlc", http.MethodGet, map[string]any{
		"symbol":    symbol,
		"timeframe": timeframe,
		"date_from": start.Format(dateLayout),
		"date_to":   end.Format(dateLayout),
	})
	if err != nil {
		c.log.Warn("fetching bars failed", "symbol", symbol, "timeframe", timeframe, "error", err)
		return empty, err
	}

	var rows []map[string]any
	switch res.Kind {
	case KindList:
		rows = res.List
	case KindRecord:
		if candles, ok := res.Record["candles"]; ok {
			if rows, ok = asRecords(candles); !ok {
				err = fmt.Errorf("%w: candles is %T", ErrUnexpectedShape, candles)
			}
		} else if msg, ok := res.Record["message"]; ok {
			err = &APIError{Operation: "ohlc", Message: toString(msg), Details: res.Record}
		} else {
			err = fmt.Errorf("%w: ohlc record without candles", ErrUnexpectedShape)
		}
	case KindError:
		err = res.Err
	}
	if err != nil {
		c.log.Warn("unusable bar response", "symbol", symbol, "timeframe", timeframe, "error", err)
		return empty, err
	}

	bars := make([]domain.Bar, 0, len(rows))
	for _, row := range rows {
		bars = append(bars, parseBar(symbol, timeframe, row))
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time < bars[j].Time })
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}

	c.log.Debug("fetched bars", "symbol", symbol, "timeframe", timeframe, "bars", len(bars))
	return bars, nil
}

func parseBar(symbol, timeframe string, row map[string]any) domain.Bar {
	b := domain.Bar{Symbol: symbol, Timeframe: timeframe}
	b.Time, _ = toUnix(row["time"])
	b.Open, _ = toFloat(row["open"])
	b.High, _ = toFloat(row["high"])
	b.Low, _ = toFloat(row["low"])
	b.Close, _ = toFloat(row["close"])
	if v, ok := toFloat(row["tick_volume"]); ok {
		b.Volume = v
	}
	if v, ok := toFloat(row["volume"]); ok {
		b.Volume = v
	}
	return b
}

// GetTick returns the current quote for symbol. A tick missing bid or ask is
// returned without error; callers check Tick.Quoted.
func (c *Client) GetTick(ctx context.Context, symbol string) (domain.Tick, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return domain.Tick{}, err
	}

	res, err := c.Request(ctx, "tick", http.MethodGet, map[string]any{"symbol": symbol})
	if err != nil {
		return domain.Tick{}, err
	}
	rec, err := res.Object()
	if err != nil {
		return domain.Tick{}, err
	}
	return parseTick(symbol, rec), nil
}

func parseTick(symbol string, rec map[string]any) domain.Tick {
	t := domain.Tick{Symbol: symbol}
	t.Bid, t.HasBid = toFloat(rec["bid"])
	t.Ask, t.HasAsk = toFloat(rec["ask"])
	t.Last, _ = toFloat(rec["last"])
	t.Volume, _ = toFloat(rec["volume"])
	if sec, ok := toUnix(rec["time"]); ok && sec > 0 {
		t.Time = time.Unix(sec, 0).UTC()
	}
	return t
}

// GetSymbolInfo returns the terminal's symbol description. An empty answer
// is reported as ErrSymbolNotFound.
func (c *Client) GetSymbolInfo(ctx context.Context, symbol string) (map[string]any, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	res, err := c.Request(ctx, "symbol_info", http.MethodGet, map[string]any{"symbol": symbol})
	if err != nil {
		return nil, err
	}
	rec, err := res.Object()
	if err != nil {
		return nil, err
	}
	if len(rec) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return rec, nil
}

// GetAccountInfo returns the terminal account summary.
func (c *Client) GetAccountInfo(ctx context.Context) (domain.AccountInfo, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return domain.AccountInfo{}, err
	}

	res, err := c.Request(ctx, "account_info", http.MethodGet, nil)
	if err != nil {
		return domain.AccountInfo{}, err
	}
	rec, err := res.Object()
	if err != nil {
		return domain.AccountInfo{}, err
	}

	var a domain.AccountInfo
	a.Login, _ = toInt(rec["login"])
	a.Server = toString(rec["server"])
	a.Currency = toString(rec["currency"])
	a.Leverage, _ = toInt(rec["leverage"])
	a.Balance, _ = toFloat(rec["balance"])
	a.Equity, _ = toFloat(rec["equity"])
	a.Margin, _ = toFloat(rec["margin"])
	a.FreeMargin, _ = toFloat(rec["margin_free"])
	a.Profit, _ = toFloat(rec["profit"])
	return a, nil
}

// GetPositions returns the open positions. The gateway wraps them in a
// "positions" key; a bare list is accepted too.
func (c *Client) GetPositions(ctx context.Context) ([]domain.Position, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return []domain.Position{}, err
	}

	res, err := c.Request(ctx, "positions", http.MethodGet, nil)
	if err != nil {
		return []domain.Position{}, err
	}

	var rows []map[string]any
	switch res.Kind {
	case KindList:
		rows = res.List
	case KindRecord:
		if v, ok := res.Record["positions"]; ok && v != nil {
			var isList bool
			if rows, isList = asRecords(v); !isList {
				return []domain.Position{}, fmt.Errorf("%w: positions is %T", ErrUnexpectedShape, v)
			}
		}
	case KindError:
		return []domain.Position{}, res.Err
	}

	positions := make([]domain.Position, 0, len(rows))
	for _, row := range rows {
		positions = append(positions, parsePosition(row))
	}
	return positions, nil
}

func parsePosition(row map[string]any) domain.Position {
	p := domain.Position{Symbol: toString(row["symbol"])}
	p.Ticket, _ = toInt(row["ticket"])
	p.Volume, _ = toFloat(row["volume"])
	p.PriceOpen, _ = toFloat(row["price_open"])
	p.PriceCurrent, _ = toFloat(row["price_current"])
	p.Profit, _ = toFloat(row["profit"])

	// The terminal reports 0 for buy and 1 for sell; some gateways send names.
	p.Side = domain.PositionSideLong
	switch t := row["type"].(type) {
	case string:
		if s := strings.ToLower(t); s == "1" || strings.Contains(s, "sell") {
			p.Side = domain.PositionSideShort
		}
	default:
		if n, ok := toInt(t); ok && n == 1 {
			p.Side = domain.PositionSideShort
		}
	}
	return p
}
