package dashboard

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"sectorwatch/internal/domain"
)

const (
	tableWidth = 100
	timeLayout = "2006-01-02 15:04:05"

	// Messages printed instead of the table.
	MsgNoData        = "No sector data available to display."
	MsgNoRelStrength = "Warning: Relative strength data not available."
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	symbolStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	gainStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	strongStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	neutralStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	weakStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

func signalStyle(s Signal) lipgloss.Style {
	switch s {
	case SignalStrong:
		return strongStyle
	case SignalNeutral:
		return neutralStyle
	default:
		return weakStyle
	}
}

func changeStyle(v float64) lipgloss.Style {
	switch {
	case v > 0:
		return gainStyle
	case v < 0:
		return lossStyle
	default:
		return dimStyle
	}
}

// Frame is everything shown for one cycle.
type Frame struct {
	At        time.Time
	Benchmark *domain.BenchmarkSnapshot
	Sectors   []domain.SectorSnapshot
	Previous  PreviousFunc
}

// Options controls rendering.
type Options struct {
	// Color enables ANSI styling.
	Color bool
}

// Render writes the ranked sector table for f to w. With no sectors, or
// without relative strength for every sector, it writes a single message
// line instead of the table.
func Render(w io.Writer, f Frame, opts Options) error {
	bw := bufio.NewWriter(w)

	paint := func(s lipgloss.Style, text string) string {
		if !opts.Color {
			return text
		}
		return s.Render(text)
	}

	switch {
	case len(f.Sectors) == 0:
		fmt.Fprintln(bw, MsgNoData)
		return bw.Flush()
	case !allRanked(f.Sectors):
		fmt.Fprintln(bw, MsgNoRelStrength)
		return bw.Flush()
	}

	rows := Rank(f.Sectors, f.Previous)

	fmt.Fprintln(bw)
	fmt.Fprintln(bw, strings.Repeat("=", tableWidth))
	fmt.Fprintln(bw, paint(titleStyle, "SECTOR ROTATION DASHBOARD - "+f.At.Format(timeLayout)))
	fmt.Fprintln(bw, strings.Repeat("-", tableWidth))
	if b := f.Benchmark; b != nil {
		fmt.Fprintf(bw, "%s: %s (%s daily change)\n",
			paint(symbolStyle, b.Symbol),
			FormatPrice(b.Price),
			paint(changeStyle(b.Change), FormatChange(b.Change)),
		)
	}
	fmt.Fprintln(bw, strings.Repeat("=", tableWidth))

	fmt.Fprintln(bw, paint(headerStyle, fmt.Sprintf("%-18s %-12s %12s %10s %14s %8s   %s",
		"Sector", "Symbol", "Price", "Daily %", "Rel Strength", "Δ RS", "Signal")))
	fmt.Fprintln(bw, strings.Repeat("-", tableWidth))

	for _, r := range rows {
		fmt.Fprintf(bw, "%-18s %s %12s %s %s %s   %s\n",
			truncate(r.Sector, 18),
			paint(symbolStyle, fmt.Sprintf("%-12s", truncate(r.Symbol, 12))),
			FormatPrice(r.Price),
			paint(changeStyle(r.Change), fmt.Sprintf("%10s", FormatChange(r.Change))),
			paint(changeStyle(r.RelativeStrength), fmt.Sprintf("%14s", FormatChange(r.RelativeStrength))),
			paint(changeStyle(r.Delta), fmt.Sprintf("%8s", FormatDelta(r.Delta, r.HasDelta))),
			paint(signalStyle(r.Signal), string(r.Signal)),
		)
	}

	fmt.Fprintln(bw, strings.Repeat("=", tableWidth))
	fmt.Fprintln(bw, paint(dimStyle, Legend))
	return bw.Flush()
}

func allRanked(sectors []domain.SectorSnapshot) bool {
	for _, s := range sectors {
		if !s.HasRelativeStrength {
			return false
		}
	}
	return true
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width])
}
