// Package dashboard ranks sector snapshots and renders them as the
// plain-text sector rotation table.
package dashboard

import (
	"sort"

	"sectorwatch/internal/domain"
)

// Row is one ranked line of the table.
type Row struct {
	domain.SectorSnapshot
	Signal Signal

	// Delta is the change in relative strength since the previous cycle.
	Delta    float64
	HasDelta bool
}

// PreviousFunc looks up a symbol's snapshot from an earlier cycle.
type PreviousFunc func(symbol string) (domain.SectorSnapshot, bool)

// Rank orders sectors by relative strength, strongest first. Ties keep their
// input order. prev may be nil.
func Rank(sectors []domain.SectorSnapshot, prev PreviousFunc) []Row {
	rows := make([]Row, len(sectors))
	for i, s := range sectors {
		rows[i] = Row{SectorSnapshot: s, Signal: SignalFor(s.RelativeStrength)}
		if prev == nil {
			continue
		}
		if p, ok := prev(s.Symbol); ok && p.HasRelativeStrength {
			rows[i].Delta = s.RelativeStrength - p.RelativeStrength
			rows[i].HasDelta = true
		}
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return rows[a].RelativeStrength > rows[b].RelativeStrength
	})
	return rows
}
