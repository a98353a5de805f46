// pkg/core/vector.go
package core

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a world-space position or direction. The host is Y-up.
type Vec3 = mgl64.Vec3

// Up is the world up axis.
var Up = Vec3{0, 1, 0}

// Forward is the fallback facing used when no camera is known.
var Forward = Vec3{0, 0, 1}

// ErrInvalidVector is returned when a vector cannot be parsed or normalized.
var ErrInvalidVector = errors.New("invalid vector")

// Epsilon is the squared-magnitude floor below which a vector is treated as zero.
const Epsilon = 0.0001

// IsZero reports whether v is too short to normalize safely.
func IsZero(v Vec3) bool {
	return v.Dot(v) < Epsilon
}

// Normalized returns v normalized, or ErrInvalidVector when v is degenerate.
func Normalized(v Vec3) (Vec3, error) {
	if IsZero(v) {
		return Vec3{}, ErrInvalidVector
	}
	return v.Normalize(), nil
}

// Distance returns the euclidean distance between a and b.
func Distance(a, b Vec3) float64 {
	return b.Sub(a).Len()
}

// Lerp linearly interpolates between a and b. t is not clamped.
func Lerp(a, b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// AngleDeg returns the unsigned angle between a and b in degrees.
// atan2 of the cross and dot products keeps precision near 0 and 180.
func AngleDeg(a, b Vec3) float64 {
	if IsZero(a) || IsZero(b) {
		return 0
	}
	cross := a.Cross(b).Len()
	dot := a.Dot(b)
	return mgl64.RadToDeg(math.Atan2(cross, dot))
}

// IsFinite reports whether all components are finite numbers.
func IsFinite(v Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
