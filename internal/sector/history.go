package sector

import (
	"sync"
	"time"

	"sectorwatch/internal/domain"
)

// Cycle is the ranked output of one polling cycle.
type Cycle struct {
	At        time.Time
	Benchmark *domain.BenchmarkSnapshot
	Sectors   []domain.SectorSnapshot
}

// History keeps the most recent cycles in memory. It is never persisted.
type History struct {
	mu     sync.Mutex
	max    int
	cycles []Cycle
}

// NewHistory creates a History holding at most size cycles (minimum 1).
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{max: size}
}

// Record appends c, dropping the oldest cycle once full.
func (h *History) Record(c Cycle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cycles = append(h.cycles, c)
	if over := len(h.cycles) - h.max; over > 0 {
		h.cycles = append(h.cycles[:0:0], h.cycles[over:]...)
	}
}

// Len returns the number of cycles held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cycles)
}

// Last returns the most recent cycle.
func (h *History) Last() (Cycle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.cycles) == 0 {
		return Cycle{}, false
	}
	return h.cycles[len(h.cycles)-1], true
}

// Previous returns symbol's snapshot from the most recent cycle that has a
// relative strength for it.
func (h *History) Previous(symbol string) (domain.SectorSnapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := len(h.cycles) - 1; i >= 0; i-- {
		for _, s := range h.cycles[i].Sectors {
			if s.Symbol == symbol && s.HasRelativeStrength {
				return s, true
			}
		}
	}
	return domain.SectorSnapshot{}, false
}
