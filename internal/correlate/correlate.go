// Package correlate decides whether a vanished character was plausibly killed
// by the player's most recent shot.
package correlate

import (
	"fmt"

	"github.com/OCAP2/killcam/pkg/core"
)

// Rejection reasons reported in Decision.Reason.
const (
	ReasonWindow      = "outside shot window"
	ReasonTooClose    = "below sniping distance"
	ReasonDegenerate  = "target at muzzle"
	ReasonBehind      = "target behind shot"
	ReasonAngle       = "angle too large"
	ReasonLateral     = "lateral offset too large"
	ReasonNoDirection = "degenerate shot direction"
)

// angleEpsilon absorbs round-off so a target exactly on the cone edge passes.
const angleEpsilon = 1e-9

// Thresholds holds the fixed filter constants.
type Thresholds struct {
	Window      float64 // seconds after the shot
	MinDistance float64 // player to target
	MaxAngle    float64 // degrees off the shot ray
	MaxLateral  float64 // perpendicular distance to the shot ray
}

// DefaultThresholds returns the constants the kill-cam ships with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Window:      0.8,
		MinDistance: 25,
		MaxAngle:    15,
		MaxLateral:  4,
	}
}

// Decision is the outcome of one evaluation with the measured values.
// Measurements not reached before a rejection are zero.
type Decision struct {
	Accepted  bool
	Reason    string
	ShotDelay float64
	Distance  float64
	Angle     float64
	Lateral   float64
}

func (d Decision) String() string {
	if d.Accepted {
		return fmt.Sprintf("accepted (dist=%.1f angle=%.1f side=%.2f dt=%.2f)", d.Distance, d.Angle, d.Lateral, d.ShotDelay)
	}
	return fmt.Sprintf("rejected: %s (dist=%.1f angle=%.1f side=%.2f dt=%.2f)", d.Reason, d.Distance, d.Angle, d.Lateral, d.ShotDelay)
}

// Filter applies Thresholds to kill candidates.
type Filter struct {
	th Thresholds
}

// NewFilter returns a filter with the given thresholds.
func NewFilter(th Thresholds) *Filter {
	return &Filter{th: th}
}

// Thresholds returns the thresholds in use.
func (f *Filter) Thresholds() Thresholds {
	return f.th
}

// Evaluate runs the checks in order and stops at the first failure.
func (f *Filter) Evaluate(now float64, shot core.ShotEvent, playerPos, targetPos core.Vec3) Decision {
	d := Decision{ShotDelay: now - shot.Time}

	if d.ShotDelay < 0 || d.ShotDelay > f.th.Window {
		d.Reason = ReasonWindow
		return d
	}

	d.Distance = core.Distance(playerPos, targetPos)
	if d.Distance < f.th.MinDistance {
		d.Reason = ReasonTooClose
		return d
	}

	dir, err := core.Normalized(shot.Direction)
	if err != nil {
		d.Reason = ReasonNoDirection
		return d
	}

	toTarget := targetPos.Sub(shot.Origin)
	toTargetDir, err := core.Normalized(toTarget)
	if err != nil {
		d.Reason = ReasonDegenerate
		return d
	}

	if dir.Dot(toTargetDir) <= 0 {
		d.Reason = ReasonBehind
		return d
	}

	d.Angle = core.AngleDeg(dir, toTarget)
	if d.Angle > f.th.MaxAngle+angleEpsilon {
		d.Reason = ReasonAngle
		return d
	}

	along := dir.Mul(toTarget.Dot(dir))
	d.Lateral = toTarget.Sub(along).Len()
	if d.Lateral > f.th.MaxLateral {
		d.Reason = ReasonLateral
		return d
	}

	d.Accepted = true
	return d
}
