package track

import (
	"math"

	"github.com/golang/geo/r3"
)

// The delta-t series bucket an observable by the time lag separating two
// observations within the track. They are derived once, on first access, and
// cached; the returned maps are shared and must not be modified by callers.
// Lags are quantized to exact multiples of the sampling interval (see
// Params.quantizeLag) so that series merged across tracks collide on
// identical keys instead of drifting floats.

// DeltaTDisplacementsSq returns squared displacements bucketed by quantized
// time lag, over every pair of defined observations in the track. This is the
// input to mean squared displacement analysis.
func (t *Track) DeltaTDisplacementsSq() map[float64][]float64 {
	t.seriesOnce.Do(t.deriveSeries)
	return t.displacementsSq
}

// DeltaTDisplacements returns displacement magnitudes bucketed by quantized
// time lag.
func (t *Track) DeltaTDisplacements() map[float64][]float64 {
	t.seriesOnce.Do(t.deriveSeries)
	return t.displacements
}

// DeltaTDisplacementsX returns signed X-axis displacement components bucketed
// by quantized time lag.
func (t *Track) DeltaTDisplacementsX() map[float64][]float64 {
	t.seriesOnce.Do(t.deriveSeries)
	return t.displacementsX
}

// DeltaTDisplacementsY returns signed Y-axis displacement components bucketed
// by quantized time lag.
func (t *Track) DeltaTDisplacementsY() map[float64][]float64 {
	t.seriesOnce.Do(t.deriveSeries)
	return t.displacementsY
}

// DeltaTDisplacementsZ returns signed Z-axis displacement components bucketed
// by quantized time lag.
func (t *Track) DeltaTDisplacementsZ() map[float64][]float64 {
	t.seriesOnce.Do(t.deriveSeries)
	return t.displacementsZ
}

// deriveSeries builds every delta-t keyed displacement series in one pass
// over all observation pairs. Pairs with an undefined endpoint or a quantized
// lag of zero are skipped.
func (t *Track) deriveSeries() {
	t.displacementsSq = make(map[float64][]float64)
	t.displacements = make(map[float64][]float64)
	t.displacementsX = make(map[float64][]float64)
	t.displacementsY = make(map[float64][]float64)
	t.displacementsZ = make(map[float64][]float64)

	for i := 0; i < len(t.Positions); i++ {
		pi := t.Positions[i]
		if !pi.Defined() {
			continue
		}
		for j := i + 1; j < len(t.Positions); j++ {
			pj := t.Positions[j]
			if !pj.Defined() {
				continue
			}
			lag := t.params.quantizeLag(pj.TimeS - pi.TimeS)
			if math.IsNaN(lag) || lag <= 0 {
				continue
			}
			d := pj.Vec().Sub(pi.Vec())
			t.displacementsSq[lag] = append(t.displacementsSq[lag], d.Norm2())
			t.displacements[lag] = append(t.displacements[lag], d.Norm())
			t.displacementsX[lag] = append(t.displacementsX[lag], d.X)
			t.displacementsY[lag] = append(t.displacementsY[lag], d.Y)
			t.displacementsZ[lag] = append(t.displacementsZ[lag], d.Z)
		}
	}
}

// DisplacementAutocorrelation returns, per quantized time lag, the mean dot
// product over all pairs of step displacement vectors that lag apart,
// normalised by the mean squared step length (the zero-lag self-correlation).
// One scalar per lag for the whole track; cross-track collation then yields a
// one-value-per-track distribution at each lag. Empty when the track has no
// defined steps or the normaliser is zero. See Banigan et al. 2015, PLOS
// Computational Biology.
func (t *Track) DisplacementAutocorrelation() map[float64]float64 {
	t.autocorrOnce.Do(t.deriveAutocorrelation)
	return t.autocorr
}

func (t *Track) deriveAutocorrelation() {
	t.autocorr = make(map[float64]float64)

	type step struct {
		v     r3.Vector
		timeS float64 // arrival time of the step's endpoint
	}
	steps := make([]step, 0, len(t.Positions))
	for i := 1; i < len(t.Positions); i++ {
		prev, cur := t.Positions[i-1], t.Positions[i]
		if !prev.Defined() || !cur.Defined() {
			continue
		}
		steps = append(steps, step{v: cur.Vec().Sub(prev.Vec()), timeS: cur.TimeS})
	}
	if len(steps) == 0 {
		return
	}

	var zeroLag float64
	for _, s := range steps {
		zeroLag += s.v.Dot(s.v)
	}
	zeroLag /= float64(len(steps))
	if zeroLag == 0 || math.IsNaN(zeroLag) {
		return
	}

	sums := make(map[float64]float64)
	counts := make(map[float64]int)
	for i := 0; i < len(steps); i++ {
		for j := i + 1; j < len(steps); j++ {
			lag := t.params.quantizeLag(steps[j].timeS - steps[i].timeS)
			if math.IsNaN(lag) || lag <= 0 {
				continue
			}
			sums[lag] += steps[i].v.Dot(steps[j].v)
			counts[lag]++
		}
	}
	for lag, sum := range sums {
		t.autocorr[lag] = (sum / float64(counts[lag])) / zeroLag
	}
}
