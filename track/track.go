// Package track models the time-ordered 3D observation sequence of one
// migrating cell and derives its motility statistics: per-position kinematics
// (speed, turn, roll, forward migration index), whole-track scalars
// (displacement, path length, meander, arrest coefficient) and the
// delta-t-keyed displacement series consumed by cross-track analyses.
package track

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"github.com/marknormanread/motility-analysis/geometry"
	"github.com/marknormanread/motility-analysis/internal/stats"
)

// Error sentinels for the analysis packages. The profile package aliases
// these so callers can match with errors.Is regardless of which layer failed.
var (
	// ErrInsufficientData marks operations that cannot proceed because the
	// supplied observations are empty or carry no defined values.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrConfiguration marks invalid construction or filter parameters.
	ErrConfiguration = errors.New("invalid configuration")
)

// Axis names a spatial axis for the forward migration index.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)

// Params holds the construction parameters for a Track.
type Params struct {
	// TimestepS is the nominal sampling interval in seconds. Delta-t keys in
	// the derived series are quantized to exact multiples of it, keeping map
	// keys stable across tracks recorded at the same interval.
	TimestepS float64

	// ArrestSpeedThreshold is the step speed, in spatial units per minute,
	// below which a cell is treated as arrested. It drives both the arrest
	// coefficient and the per-position blebbing flag.
	ArrestSpeedThreshold float64

	// FMIAxis selects the axis for the instantaneous forward migration
	// index. Empty selects AxisX.
	FMIAxis Axis
}

// DefaultParams returns construction parameters suited to two-photon
// lymphocyte imaging: 30 s sampling and the conventional 2 um/min arrest
// threshold.
func DefaultParams() Params {
	return Params{
		TimestepS:            30.0,
		ArrestSpeedThreshold: 2.0,
		FMIAxis:              AxisX,
	}
}

// Validate checks the parameters are usable for construction.
func (p Params) Validate() error {
	if math.IsNaN(p.TimestepS) || p.TimestepS <= 0 {
		return fmt.Errorf("%w: timestep must be positive, got %v", ErrConfiguration, p.TimestepS)
	}
	if math.IsNaN(p.ArrestSpeedThreshold) || p.ArrestSpeedThreshold < 0 {
		return fmt.Errorf("%w: arrest speed threshold must be non-negative, got %v", ErrConfiguration, p.ArrestSpeedThreshold)
	}
	switch p.FMIAxis {
	case "", AxisX, AxisY, AxisZ:
		return nil
	default:
		return fmt.Errorf("%w: unknown FMI axis %q", ErrConfiguration, p.FMIAxis)
	}
}

// axisComponent extracts the configured FMI axis component of a step vector.
func (p Params) axisComponent(v r3.Vector) float64 {
	switch p.FMIAxis {
	case AxisY:
		return v.Y
	case AxisZ:
		return v.Z
	default:
		return v.X
	}
}

// quantizeLag snaps a raw time difference onto the sampling grid. The result
// is an exact multiple of TimestepS, so equal lags from different tracks
// produce identical map keys.
func (p Params) quantizeLag(raw float64) float64 {
	return math.Round(raw/p.TimestepS) * p.TimestepS
}

// Track is one cell's observation sequence with derived motility statistics.
// All statistics are computed once at construction; a Track is read-only
// thereafter and safe for concurrent use.
type Track struct {
	// Identity
	ID string

	// Observations, ordered by non-decreasing time.
	Positions []Position

	// Broken marks a track whose sampling has gaps: at least one
	// inter-observation interval exceeded 1.5x the nominal timestep.
	Broken bool

	// Whole-track scalars. NaN where undefined.
	Displacement      float64 // straight-line distance from first to last position
	Length            float64 // summed step distances
	Meander           float64 // Displacement / Length; 1 is perfectly straight
	DurationMin       float64 // elapsed time from first to last observation, minutes
	ArrestCoefficient float64 // fraction of observed time below the arrest speed

	// Median and interquartile range over the defined per-position
	// kinematics. NaN when the track has no defined values for a statistic,
	// which is how short tracks are later identified and dropped.
	MedianSpeed float64
	IQRSpeed    float64
	MedianTurn  float64
	IQRTurn     float64
	MedianRoll  float64
	IQRRoll     float64

	params Params

	// Delta-t series are derived lazily on first use; see series.go.
	seriesOnce      sync.Once
	displacementsSq map[float64][]float64
	displacements   map[float64][]float64
	displacementsX  map[float64][]float64
	displacementsY  map[float64][]float64
	displacementsZ  map[float64][]float64

	autocorrOnce sync.Once
	autocorr     map[float64]float64
}

// Build constructs a Track from ordered observations, deriving the
// per-position kinematics and whole-track statistics. Positions must be
// ordered by non-decreasing time. An empty id is replaced with a generated
// UUID. The supplied positions are copied; the caller's slice is not
// retained.
func Build(id string, positions []Position, params Params) (*Track, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: a track requires at least one position", ErrInsufficientData)
	}
	for i := 1; i < len(positions); i++ {
		if positions[i].TimeS < positions[i-1].TimeS {
			return nil, fmt.Errorf("%w: positions must be ordered by non-decreasing time (position %d at %.3fs follows %.3fs)",
				ErrConfiguration, i, positions[i].TimeS, positions[i-1].TimeS)
		}
	}
	if id == "" {
		id = uuid.New().String()
	}

	t := &Track{
		ID:        id,
		Positions: make([]Position, len(positions)),
		params:    params,
	}
	copy(t.Positions, positions)

	t.deriveKinematics()
	t.deriveScalars()
	return t, nil
}

// Params returns the construction parameters the track was built with.
func (t *Track) Params() Params {
	return t.params
}

// deriveKinematics fills the per-position derived fields. step i spans
// positions i-1 -> i; a step touching an undefined coordinate carries NaN
// components and every kinematic built on it stays NaN.
func (t *Track) deriveKinematics() {
	n := len(t.Positions)
	steps := make([]r3.Vector, n) // steps[0] unused

	for i := range t.Positions {
		p := &t.Positions[i]
		p.Speed = math.NaN()
		p.Turn = math.NaN()
		p.Roll = math.NaN()
		p.InstantFMI = math.NaN()
		p.TotalDisplacementSq = math.NaN()
		p.MeetsArrestThreshold = false
	}

	first := t.Positions[0]
	for i := range t.Positions {
		p := t.Positions[i]
		if first.Defined() && p.Defined() {
			t.Positions[i].TotalDisplacementSq = p.Vec().Sub(first.Vec()).Norm2()
		}
	}

	for i := 1; i < n; i++ {
		prev, cur := t.Positions[i-1], t.Positions[i]
		steps[i] = cur.Vec().Sub(prev.Vec())
		if !prev.Defined() || !cur.Defined() {
			continue
		}
		dist := steps[i].Norm()
		dtMin := (cur.TimeS - prev.TimeS) / 60.0
		if dtMin > 0 {
			t.Positions[i].Speed = dist / dtMin
		}
		if dist > 0 {
			t.Positions[i].InstantFMI = t.params.axisComponent(steps[i]) / dist
		}
	}

	// Turn at position i is the direction change between the inbound and
	// outbound steps. Undefined at the ends and across degenerate steps.
	for i := 1; i < n-1; i++ {
		t.Positions[i].Turn = geometry.Angle(steps[i], steps[i+1])
	}

	// Roll at position i is the rotation about the inbound step between the
	// plane of the two preceding steps and the plane of the inbound/outbound
	// pair. Needs two steps behind and one ahead.
	for i := 2; i < n-1; i++ {
		t.Positions[i].Roll = rollAngle(steps[i-1], steps[i], steps[i+1])
	}

	for i := range t.Positions {
		s := t.Positions[i].Speed
		t.Positions[i].MeetsArrestThreshold = !math.IsNaN(s) && s >= t.params.ArrestSpeedThreshold
	}
}

// rollAngle returns the signed dihedral angle between the plane spanned by
// (a, b) and the plane spanned by (b, c), measured about b. NaN when either
// plane degenerates (collinear or undefined steps).
func rollAngle(a, b, c r3.Vector) float64 {
	n1 := a.Cross(b)
	n2 := b.Cross(c)
	angle := geometry.Angle(n1, n2)
	if math.IsNaN(angle) {
		return angle
	}
	if n1.Cross(n2).Dot(b) < 0 {
		return -angle
	}
	return angle
}

func (t *Track) deriveScalars() {
	n := len(t.Positions)
	first, last := t.Positions[0], t.Positions[n-1]

	t.DurationMin = (last.TimeS - first.TimeS) / 60.0

	t.Displacement = math.NaN()
	if first.Defined() && last.Defined() {
		t.Displacement = first.Vec().Distance(last.Vec())
	}

	// Length sums every step; an undefined step poisons the sum to NaN,
	// which collation later drops rather than treating as zero.
	length := 0.0
	for i := 1; i < n; i++ {
		length += t.Positions[i].Vec().Distance(t.Positions[i-1].Vec())
	}
	t.Length = length
	t.Meander = t.Displacement / t.Length

	for i := 1; i < n; i++ {
		gap := t.Positions[i].TimeS - t.Positions[i-1].TimeS
		if gap > 1.5*t.params.TimestepS {
			t.Broken = true
			break
		}
	}

	t.ArrestCoefficient = t.arrestCoefficient()

	speeds := make([]float64, 0, n)
	turns := make([]float64, 0, n)
	rolls := make([]float64, 0, n)
	for _, p := range t.Positions {
		if !math.IsNaN(p.Speed) {
			speeds = append(speeds, p.Speed)
		}
		if !math.IsNaN(p.Turn) {
			turns = append(turns, p.Turn)
		}
		if !math.IsNaN(p.Roll) {
			rolls = append(rolls, p.Roll)
		}
	}
	t.MedianSpeed = stats.Median(speeds)
	t.IQRSpeed = stats.IQR(speeds)
	t.MedianTurn = stats.Median(turns)
	t.IQRTurn = stats.IQR(turns)
	t.MedianRoll = stats.Median(rolls)
	t.IQRRoll = stats.IQR(rolls)
}

// arrestCoefficient returns the fraction of observed time spent below the
// arrest speed threshold, weighting each step by its duration. Steps without
// a defined speed contribute to neither numerator nor denominator; NaN when
// no step speed is defined.
func (t *Track) arrestCoefficient() float64 {
	var arrested, observed float64
	for i := 1; i < len(t.Positions); i++ {
		p := t.Positions[i]
		if math.IsNaN(p.Speed) {
			continue
		}
		dt := p.TimeS - t.Positions[i-1].TimeS
		observed += dt
		if p.Speed < t.params.ArrestSpeedThreshold {
			arrested += dt
		}
	}
	if observed <= 0 {
		return math.NaN()
	}
	return arrested / observed
}
