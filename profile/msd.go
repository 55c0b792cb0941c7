package profile

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/marknormanread/motility-analysis/track"
)

// MSDMethod selects how displacement samples are pooled when building a mean
// squared displacement curve.
type MSDMethod string

const (
	// MethodAllT, the default, pools squared displacements over every pair
	// of observations within each track, keyed by their time lag. Each
	// track of n observations contributes O(n^2) samples, making the curve
	// far more robust than the from-origin alternative.
	MethodAllT MSDMethod = "allT"

	// MethodFromOrigin pools each position's squared displacement from its
	// track's first observation, keyed by absolute timestamp rather than
	// lag. One sample per position; retained as an alternate mode for
	// comparison against analyses that define MSD this way.
	MethodFromOrigin MSDMethod = "fromOrigin"
)

// MSDPoint is one point on a mean squared displacement curve.
type MSDPoint struct {
	DeltaT float64 // time lag in seconds (absolute time for MethodFromOrigin)
	MSD    float64 // mean squared displacement at that lag
}

// MSDResult is a mean squared displacement curve together with the power-law
// fit over it. The fit regresses log(MSD) on log(DeltaT); Slope is then the
// anomalous diffusion exponent (1 for free diffusion, 2 for ballistic
// motion) and Intercept the log of the diffusion-coefficient-like term.
type MSDResult struct {
	// Curve holds the (lag, MSD) points the fit was computed over, ascending
	// by lag, already restricted to TimeCutoff.
	Curve []MSDPoint

	Slope     float64
	Intercept float64
	R         float64 // Pearson correlation of the log-log points
	P         float64 // two-sided p-value for a nonzero slope
	StdErr    float64 // standard error of the slope

	// TimeCutoff is the largest lag admitted into the fit.
	TimeCutoff float64

	// LinearPlot holds the fitted power law evaluated at each surviving
	// lag, exponentiated back into linear space so it overlays the curve
	// directly; LinearTimes is its x axis. Empty when no fit was possible.
	LinearPlot  []float64
	LinearTimes []float64
}

// sentinelMSDResult is returned when no usable curve exists: no points, or a
// lag or MSD of zero making the log transform impossible. The values are a
// fixed shape that downstream consumers recognise; do not derive them from
// the input.
func sentinelMSDResult() MSDResult {
	return MSDResult{
		Curve:       []MSDPoint{{DeltaT: 0, MSD: 0}},
		Slope:       0.0,
		Intercept:   0.30,
		R:           0.0,
		P:           0.0,
		StdErr:      0.0,
		TimeCutoff:  100.0,
		LinearPlot:  []float64{},
		LinearTimes: []float64{},
	}
}

// CalculateMSD builds a mean squared displacement curve over every retained
// track in the given profiles and fits a power law to it.
//
// maxDT bounds the lags admitted into the fit: pass a positive finite value
// to keep lags at or below it, +Inf to keep everything, or any value <= 0
// (or NaN) to apply the default cutoff of 25% of the largest observed lag.
// Lag populations thin as the lag approaches a track's whole duration, and
// the long tail would otherwise bias the fit.
//
// An empty MSDMethod selects MethodAllT.
func CalculateMSD(profiles []*Profile, maxDT float64, method MSDMethod) MSDResult {
	var buckets map[float64][]float64
	if method == MethodFromOrigin {
		buckets = displacementsFromOrigin(profiles)
	} else {
		buckets = collateDeltaTSeries(profiles, (*track.Track).DeltaTDisplacementsSq)
	}
	return FitMSD(reduceMSD(buckets), maxDT)
}

// FitMSD fits a power law to a precomputed MSD curve, so callers sweeping
// cutoffs can reuse one pooled curve instead of rebuilding it per fit. The
// curve must be ascending by lag. maxDT follows the CalculateMSD contract.
//
// The fit log-transforms both axes, runs an ordinary least squares
// regression, and exponentiates the fitted line back into linear space. It
// requires every surviving point to have positive lag and positive MSD;
// otherwise the fixed sentinel result is returned.
func FitMSD(curve []MSDPoint, maxDT float64) MSDResult {
	if len(curve) == 0 {
		return sentinelMSDResult()
	}

	if math.IsNaN(maxDT) || maxDT <= 0 {
		// Default cutoff: first quarter of the observed lag range.
		maxDT = 0.25 * curve[len(curve)-1].DeltaT
	}
	if !math.IsInf(maxDT, 1) {
		kept := make([]MSDPoint, 0, len(curve))
		for _, pt := range curve {
			if pt.DeltaT <= maxDT {
				kept = append(kept, pt)
			}
		}
		curve = kept
	}

	// The log transform needs every point strictly positive.
	usable := len(curve) > 0
	for _, pt := range curve {
		if pt.DeltaT <= 0 || pt.MSD <= 0 {
			usable = false
			break
		}
	}
	if !usable {
		return sentinelMSDResult()
	}

	logT := make([]float64, len(curve))
	logM := make([]float64, len(curve))
	for i, pt := range curve {
		logT[i] = math.Log(pt.DeltaT)
		logM[i] = math.Log(pt.MSD)
	}

	intercept, slope := stat.LinearRegression(logT, logM, nil, false)
	r := stat.Correlation(logT, logM, nil)
	if math.IsNaN(r) {
		r = 0
	}
	stderr, p := slopeSignificance(logT, logM, slope, intercept)

	result := MSDResult{
		Curve:       curve,
		Slope:       slope,
		Intercept:   intercept,
		R:           r,
		P:           p,
		StdErr:      stderr,
		TimeCutoff:  maxDT,
		LinearPlot:  make([]float64, len(curve)),
		LinearTimes: make([]float64, len(curve)),
	}
	for i, x := range logT {
		// Raise the fitted line back to linear space; plotting it against
		// log axes without this would double-transform it.
		result.LinearPlot[i] = math.Exp(x*slope + intercept)
		result.LinearTimes[i] = curve[i].DeltaT
	}
	return result
}

// slopeSignificance returns the standard error of the fitted slope and the
// two-sided p-value of its difference from zero under a Student's t
// distribution with n-2 degrees of freedom. Both are 0 when there are too
// few points for residual variance, or when the fit is exact.
func slopeSignificance(xs, ys []float64, slope, intercept float64) (stderr, p float64) {
	n := len(xs)
	df := float64(n - 2)
	if df <= 0 {
		return 0, 0
	}

	meanX := stat.Mean(xs, nil)
	var ssr, ssx float64
	for i := range xs {
		resid := ys[i] - (slope*xs[i] + intercept)
		ssr += resid * resid
		dx := xs[i] - meanX
		ssx += dx * dx
	}
	if ssx == 0 {
		return 0, 0
	}
	stderr = math.Sqrt(ssr / df / ssx)
	if stderr == 0 {
		// Exact fit: the slope is unambiguous.
		return 0, 0
	}

	t := slope / stderr
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return stderr, 2 * dist.Survival(math.Abs(t))
}

// MSDVsMaxDT sweeps the fitted MSD exponent across cutoff choices, showing
// how sensitive the slope is to the admitted lag range. The pooled curve is
// computed once over all lags; every observed lag at or below upperMaxDT
// then serves as a candidate cutoff, except the smallest, whose single-point
// regression is degenerate. Pass upperMaxDT of +Inf to consider every lag;
// a finite bound aligns sweeps across experiments with different maximum
// observable lags.
//
// Returns parallel slices of cutoffs and the slope fitted at each.
func MSDVsMaxDT(profiles []*Profile, upperMaxDT float64) (dts, slopes []float64) {
	full := CalculateMSD(profiles, math.Inf(1), MethodAllT)

	var candidates []float64
	for _, pt := range full.Curve {
		if pt.DeltaT <= upperMaxDT {
			candidates = append(candidates, pt.DeltaT)
		}
	}
	if len(candidates) <= 1 {
		return nil, nil
	}
	candidates = candidates[1:]

	slopes = make([]float64, 0, len(candidates))
	for _, cutoff := range candidates {
		slopes = append(slopes, FitMSD(full.Curve, cutoff).Slope)
	}
	return candidates, slopes
}

// displacementsFromOrigin pools each position's squared displacement from
// its track's first observation, keyed by absolute timestamp. Undefined
// displacements and non-positive or undefined timestamps are excluded.
func displacementsFromOrigin(profiles []*Profile) map[float64][]float64 {
	buckets := make(map[float64][]float64)
	for _, p := range profiles {
		for _, t := range p.Tracks {
			for _, pos := range t.Positions {
				if pos.TimeS > 0 && !math.IsNaN(pos.TotalDisplacementSq) {
					buckets[pos.TimeS] = append(buckets[pos.TimeS], pos.TotalDisplacementSq)
				}
			}
		}
	}
	return buckets
}

// reduceMSD averages each bucket of pooled squared displacements into one
// curve point per lag, ascending by lag.
func reduceMSD(buckets map[float64][]float64) []MSDPoint {
	lags := make([]float64, 0, len(buckets))
	for lag := range buckets {
		lags = append(lags, lag)
	}
	sort.Float64s(lags)

	curve := make([]MSDPoint, 0, len(lags))
	for _, lag := range lags {
		curve = append(curve, MSDPoint{DeltaT: lag, MSD: stat.Mean(buckets[lag], nil)})
	}
	return curve
}
