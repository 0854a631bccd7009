package sector

import "sectorwatch/internal/domain"

// RelativeStrength returns copies of sectors with RelativeStrength set to
// each sector's change minus the benchmark's change. With no sectors or no
// benchmark, sectors is returned as is.
func RelativeStrength(sectors []domain.SectorSnapshot, bench *domain.BenchmarkSnapshot) []domain.SectorSnapshot {
	if len(sectors) == 0 || bench == nil {
		return sectors
	}

	out := make([]domain.SectorSnapshot, len(sectors))
	for i, s := range sectors {
		s.RelativeStrength = s.Change - bench.Change
		s.HasRelativeStrength = true
		out[i] = s
	}
	return out
}
