// Package shot keeps the most recent fire action of the local player.
package shot

import (
	"github.com/OCAP2/killcam/pkg/core"
)

// never is the timestamp reported before any shot was recorded. It keeps
// every timing window check failing without a separate "has fired" flag.
const never = -999.0

// Recorder stores exactly one ShotEvent, overwritten on every fire action.
type Recorder struct {
	last     core.ShotEvent
	recorded bool
}

// NewRecorder creates a recorder with no shot.
func NewRecorder() *Recorder {
	return &Recorder{
		last: core.ShotEvent{Time: never, Direction: core.Forward},
	}
}

// Record stores the shot unconditionally. The caller guarantees that
// forward is normalized and non-degenerate.
func (r *Recorder) Record(now float64, origin, forward core.Vec3, aimed bool) {
	r.last = core.ShotEvent{
		Time:      now,
		Origin:    origin,
		Direction: forward,
		Aimed:     aimed,
	}
	r.recorded = true
}

// Last returns the stored shot and whether one was ever recorded.
func (r *Recorder) Last() (core.ShotEvent, bool) {
	return r.last, r.recorded
}

// TimeSince returns now minus the last shot time.
func (r *Recorder) TimeSince(now float64) float64 {
	return now - r.last.Time
}

// Reset forgets the stored shot, e.g. on scene change.
func (r *Recorder) Reset() {
	*r = *NewRecorder()
}
