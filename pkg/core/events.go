// pkg/core/events.go
package core

import (
	"time"
)

// ShotEvent is the most recent fire action of the local player.
// Time is unscaled host time in seconds.
type ShotEvent struct {
	Time      float64
	Origin    Vec3
	Direction Vec3
	Aimed     bool
}

// Disappearance is emitted when a tracked character is no longer present.
type Disappearance struct {
	Ref          EntityRef
	LastPosition Vec3
	LastName     string
}

// Variant names the detection path that produced a kill.
type Variant string

const (
	// VariantPresence is the disappearance-correlation path.
	VariantPresence Variant = "presence"
	// VariantHit is the direct raycast-hit damage path.
	VariantHit Variant = "hit"
)

// KillRecord describes a kill that started a kill-cam.
type KillRecord struct {
	ID         uint
	SessionID  string
	Scene      string
	Time       time.Time
	HostTime   float64
	Variant    Variant
	TargetRef  EntityRef
	TargetName string
	Distance   float64
	Angle      float64
	Lateral    float64
	ShotDelay  float64
	Headshot   bool
	// Scoped is set when the shot was fired while aiming down the scope.
	Scoped     bool
	Damage     float64
	StartPos   Vec3
	EndPos     Vec3
	TargetPos  Vec3
}

// Rejection describes a kill candidate that did not start a kill-cam.
type Rejection struct {
	ID         uint
	SessionID  string
	Scene      string
	Time       time.Time
	HostTime   float64
	Variant    Variant
	TargetName string
	Reason     string
	Distance   float64
	Angle      float64
	Lateral    float64
	ShotDelay  float64
	TargetPos  Vec3
}

// Session is one visit to a scene. Journal rows reference it by ID.
type Session struct {
	ID        string
	Scene     string
	StartedAt time.Time
	EndedAt   time.Time
}
