// Package host defines the collaborators the kill-cam core needs from the
// game: world enumeration, physics, time control, input and the camera.
package host

import (
	"github.com/OCAP2/killcam/pkg/core"
)

// World enumerates live entities. Called once per scan interval.
type World interface {
	Characters() []core.Entity
}

// Locator resolves an entity's current position.
type Locator interface {
	Locate(ref core.EntityRef) (core.Vec3, bool)
}

// Physics answers occlusion queries against scene geometry.
type Physics interface {
	// RaycastOcclusion casts from origin along the normalized dir and returns
	// the first solid hit within maxDistance.
	RaycastOcclusion(origin, dir core.Vec3, maxDistance float64) (core.Vec3, bool)
}

// TimeControl is the process-wide simulation rate.
type TimeControl interface {
	TimeScale() float64
	SetTimeScale(scale float64)
}

// Input is sampled once per tick.
type Input interface {
	FirePressed() bool
	AimHeld() bool
}

// Camera is the main camera. Pose reports false while no camera exists.
type Camera interface {
	Pose() (position, forward core.Vec3, ok bool)
	Place(pose core.CameraPose)
}

// Identity names the player when the host knows it.
type Identity interface {
	PlayerID() core.EntityRef
}

// Host bundles every collaborator. FrameHost implements it.
type Host interface {
	World
	Locator
	Physics
	TimeControl
	Input
	Camera
	Identity
}

// NoPhysics never reports a hit. Used when the host registered no raycast.
type NoPhysics struct{}

// RaycastOcclusion implements Physics.
func (NoPhysics) RaycastOcclusion(core.Vec3, core.Vec3, float64) (core.Vec3, bool) {
	return core.Vec3{}, false
}
