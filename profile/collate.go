package profile

import (
	"math"

	"github.com/marknormanread/motility-analysis/track"
)

// The collate family pools values across every retained track into one flat
// sample suitable for population-level distributions. Instantaneous
// kinematics (speed, turn, forward migration index) additionally require the
// position to meet the arrest speed threshold: below it the cell is presumed
// to be blebbing and its instantaneous readings do not describe migration.

// CollateSpeeds returns every defined per-position speed across the
// profile's tracks, excluding positions flagged as blebbing.
func (p *Profile) CollateSpeeds() []float64 {
	return p.collatePositions(func(pos track.Position) (float64, bool) {
		return pos.Speed, pos.MeetsArrestThreshold
	})
}

// CollateTurns returns every defined per-position turn angle across the
// profile's tracks, excluding positions flagged as blebbing.
func (p *Profile) CollateTurns() []float64 {
	return p.collatePositions(func(pos track.Position) (float64, bool) {
		return pos.Turn, pos.MeetsArrestThreshold
	})
}

// CollateInstantFMI returns every defined per-position forward migration
// index across the profile's tracks, excluding positions flagged as
// blebbing.
func (p *Profile) CollateInstantFMI() []float64 {
	return p.collatePositions(func(pos track.Position) (float64, bool) {
		return pos.InstantFMI, pos.MeetsArrestThreshold
	})
}

// CollateRolls returns every defined per-position roll angle across the
// profile's tracks. Rolls are not gated on the arrest threshold: rotation
// about the direction of travel remains meaningful during blebbing.
func (p *Profile) CollateRolls() []float64 {
	return p.collatePositions(func(pos track.Position) (float64, bool) {
		return pos.Roll, true
	})
}

// collatePositions pools one value per position across all retained tracks,
// keeping entries whose value is defined and whose gate is true.
func (p *Profile) collatePositions(extract func(track.Position) (float64, bool)) []float64 {
	var out []float64
	for _, t := range p.Tracks {
		for _, pos := range t.Positions {
			v, ok := extract(pos)
			if ok && !math.IsNaN(v) {
				out = append(out, v)
			}
		}
	}
	return out
}

// CollateMeanders returns the meander index of every retained track with a
// defined, nonzero value. A genuinely zero meander is dropped along with
// undefined ones; this mirrors the analysis this package reproduces and is
// noted as a possible defect in DESIGN.md.
func (p *Profile) CollateMeanders() []float64 {
	return p.collateTracks(func(t *track.Track) float64 { return t.Meander })
}

// CollateLengths returns the path length of every retained track with a
// defined, nonzero value. Zero lengths are dropped; see CollateMeanders.
func (p *Profile) CollateLengths() []float64 {
	return p.collateTracks(func(t *track.Track) float64 { return t.Length })
}

// CollateDisplacements returns the net displacement of every retained track
// with a defined, nonzero value. Zero displacements are dropped; see
// CollateMeanders.
func (p *Profile) CollateDisplacements() []float64 {
	return p.collateTracks(func(t *track.Track) float64 { return t.Displacement })
}

// collateTracks pools one scalar per retained track, keeping defined nonzero
// values.
func (p *Profile) collateTracks(extract func(*track.Track) float64) []float64 {
	var out []float64
	for _, t := range p.Tracks {
		if v := extract(t); !math.IsNaN(v) && v != 0 {
			out = append(out, v)
		}
	}
	return out
}

// CollateDisplacementAutocorrelation merges the per-track displacement
// autocorrelations of every track in the given profiles, keyed by time lag.
// Each track contributes at most one scalar per lag, so the value list at a
// lag is a cross-population distribution with one sample per track. See
// Banigan et al. 2015, PLOS Computational Biology.
func CollateDisplacementAutocorrelation(profiles []*Profile) map[float64][]float64 {
	dac := make(map[float64][]float64)
	for _, p := range profiles {
		for _, t := range p.Tracks {
			for lag, v := range t.DisplacementAutocorrelation() {
				dac[lag] = append(dac[lag], v)
			}
		}
	}
	return dac
}

// collateDeltaTSeries merges a lag-keyed displacement series across every
// track in the given profiles. The retriever extracts one track's series and
// is invoked once per track. The four public displacement collations are
// thin specializations over this merge.
func collateDeltaTSeries(profiles []*Profile, retrieve func(*track.Track) map[float64][]float64) map[float64][]float64 {
	merged := make(map[float64][]float64)
	for _, p := range profiles {
		for _, t := range p.Tracks {
			for lag, values := range retrieve(t) {
				merged[lag] = append(merged[lag], values...)
			}
		}
	}
	return merged
}

// CollateDeltaTDisplacements merges every track's lag-keyed displacement
// magnitudes across the given profiles.
func CollateDeltaTDisplacements(profiles []*Profile) map[float64][]float64 {
	return collateDeltaTSeries(profiles, (*track.Track).DeltaTDisplacements)
}

// CollateDeltaTDisplacementsX merges every track's lag-keyed X-axis
// displacement components across the given profiles.
func CollateDeltaTDisplacementsX(profiles []*Profile) map[float64][]float64 {
	return collateDeltaTSeries(profiles, (*track.Track).DeltaTDisplacementsX)
}

// CollateDeltaTDisplacementsY merges every track's lag-keyed Y-axis
// displacement components across the given profiles.
func CollateDeltaTDisplacementsY(profiles []*Profile) map[float64][]float64 {
	return collateDeltaTSeries(profiles, (*track.Track).DeltaTDisplacementsY)
}

// CollateDeltaTDisplacementsZ merges every track's lag-keyed Z-axis
// displacement components across the given profiles.
func CollateDeltaTDisplacementsZ(profiles []*Profile) map[float64][]float64 {
	return collateDeltaTSeries(profiles, (*track.Track).DeltaTDisplacementsZ)
}
