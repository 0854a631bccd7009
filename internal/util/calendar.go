package util

import (
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar provides market-hours awareness for a single exchange,
// identified by its ISO 10383 MIC (e.g. "xnys").
type TradingCalendar struct {
	mic string
	cal *calendar.Calendar
	loc *time.Location
}

// NewTradingCalendar creates a TradingCalendar for the given MIC. Unknown
// MICs fall back to NYSE; if no calendar can be loaded at all, a plain
// Mon-Fri 09:30-16:00 New York session is assumed.
func NewTradingCalendar(mic string) *TradingCalendar {
	mic = strings.ToLower(mic)
	if mic == "" {
		mic = "xnys"
	}

	cal := calendar.GetCalendar(mic)
	if cal == nil && mic != "xnys" {
		mic = "xnys"
		cal = calendar.GetCalendar(mic)
	}

	tc := &TradingCalendar{mic: mic, cal: cal}
	if cal != nil {
		tc.loc = cal.Loc
	}
	if tc.loc == nil {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		tc.loc = loc
	}
	return tc
}

// MIC returns the exchange code backing this calendar.
func (tc *TradingCalendar) MIC() string {
	return tc.mic
}

// IsTradingDay reports whether t falls on a business day of the exchange.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	t = t.In(tc.loc)
	if tc.cal == nil {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return tc.cal.IsBusinessDay(t)
}

// IsMarketOpen returns whether the market is open at time t.
func (tc *TradingCalendar) IsMarketOpen(t time.Time) bool {
	t = t.In(tc.loc)
	if tc.cal != nil {
		return tc.cal.IsOpen(t)
	}
	if !tc.IsTradingDay(t) {
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}
