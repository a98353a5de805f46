// Package timescale owns the slowed simulation rate while a kill-cam plays.
package timescale

import (
	"math"

	"github.com/OCAP2/killcam/internal/host"
)

// reassertTolerance is the drift tolerated before the slow scale is forced again.
const reassertTolerance = 0.0001

// Lease holds the global time scale at a slow value until released.
// The zero value is an inactive lease.
type Lease struct {
	tc     host.TimeControl
	saved  float64
	slow   float64
	active bool
}

// Acquire saves the current time scale and forces slow. A non-positive or
// non-finite saved scale is recorded as 1 so release always restores a
// usable rate.
func Acquire(tc host.TimeControl, slow float64) *Lease {
	saved := tc.TimeScale()
	if saved <= 0 || math.IsNaN(saved) || math.IsInf(saved, 0) {
		saved = 1
	}
	tc.SetTimeScale(slow)
	return &Lease{tc: tc, saved: saved, slow: slow, active: true}
}

// Active reports whether the lease still holds the time scale.
func (l *Lease) Active() bool {
	return l != nil && l.active
}

// Saved returns the scale restored on release.
func (l *Lease) Saved() float64 {
	return l.saved
}

// Reassert forces the slow scale again if another system changed it.
// It reports whether a correction was needed.
func (l *Lease) Reassert() bool {
	if !l.Active() {
		return false
	}
	if math.Abs(l.tc.TimeScale()-l.slow) > reassertTolerance {
		l.tc.SetTimeScale(l.slow)
		return true
	}
	return false
}

// Release restores the saved scale. Calls after the first are no-ops.
func (l *Lease) Release() {
	if !l.Active() {
		return
	}
	l.active = false
	l.tc.SetTimeScale(l.saved)
}
