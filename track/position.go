package track

import (
	"math"

	"github.com/golang/geo/r3"
)

// Position is a single observation of a tracked cell. Coordinates are in the
// instrument's spatial units (typically micrometres) and TimeS is seconds
// since the start of the experiment. An undefined value is NaN, never zero:
// zero is a legitimate coordinate and zero speed a legitimate measurement.
type Position struct {
	X     float64
	Y     float64
	Z     float64
	TimeS float64

	// Derived kinematics, populated by Build. NaN where undefined: the first
	// position has no inbound step so no Speed, the last has no outbound step
	// so no Turn, and any step touching an undefined coordinate yields NaN
	// throughout.
	Speed               float64 // inbound step speed, spatial units per minute
	Turn                float64 // angle between inbound and outbound steps, radians
	Roll                float64 // rotation about the inbound step, radians; signed
	InstantFMI          float64 // inbound step's forward migration index along the configured axis
	TotalDisplacementSq float64 // squared displacement from the track's first position

	// MeetsArrestThreshold is false while the cell moved slower than the
	// arrest speed threshold, where instantaneous kinematics are presumed to
	// reflect membrane blebbing rather than migration. Always false when
	// Speed is undefined.
	MeetsArrestThreshold bool
}

// Vec returns the position's coordinates as a 3D vector. Undefined
// coordinates stay NaN.
func (p Position) Vec() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// Defined reports whether all three coordinates are defined.
func (p Position) Defined() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z)
}
