package dashboard

import (
	"fmt"
	"math"
	"strings"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatVolume formats a volume with B/M/K suffixes, or "-" for zero.
func FormatVolume(v float64) string {
	switch {
	case v <= 0:
		return "-"
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// FormatPrice formats a price with two decimals, or "-" for zero/NaN.
func FormatPrice(p float64) string {
	if p == 0 || math.IsNaN(p) {
		return "-"
	}
	return fmt.Sprintf("%.2f", p)
}

// FormatChange formats a percent change with an explicit sign, e.g. "+1.25%".
func FormatChange(pct float64) string {
	if math.IsNaN(pct) {
		return "-"
	}
	// Avoid "-0.00%".
	if math.Abs(pct) < 0.005 {
		pct = 0
	}
	return fmt.Sprintf("%+.2f%%", pct)
}

// FormatDelta formats a change in relative strength between cycles, or ""
// when there is no previous value.
func FormatDelta(d float64, ok bool) string {
	if !ok {
		return ""
	}
	if math.Abs(d) < 0.005 {
		return "="
	}
	return fmt.Sprintf("%+.2f", d)
}
