// Package geometry provides the small set of 3D primitives shared by the
// track and profile packages. Positions are treated as points in Cartesian
// space; an undefined coordinate is represented as NaN and propagates through
// every operation here.
package geometry

import (
	"math"

	"github.com/golang/geo/r3"
)

// Vec constructs an r3.Vector from its three components.
func Vec(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// Distance returns the Euclidean distance between two 3D points.
func Distance(x1, y1, z1, x2, y2, z2 float64) float64 {
	return Vec(x1, y1, z1).Distance(Vec(x2, y2, z2))
}

// Angle returns the angle in radians between two displacement vectors, in the
// range [0, pi]. Returns NaN when either vector is zero-length or carries an
// undefined component, since no direction is defined there.
func Angle(a, b r3.Vector) float64 {
	an, bn := a.Norm2(), b.Norm2()
	if an == 0 || bn == 0 || math.IsNaN(an) || math.IsNaN(bn) {
		return math.NaN()
	}
	return float64(a.Angle(b))
}
