package host

import (
	"sync"

	"github.com/OCAP2/killcam/pkg/core"
)

// Frame is one host tick as reported over the extension boundary.
type Frame struct {
	Now         float64
	TimeScale   float64
	FirePressed bool
	AimHeld     bool

	HasCamera     bool
	CameraPos     core.Vec3
	CameraForward core.Vec3

	Entities []core.Entity
	PlayerID core.EntityRef
}

// Directives is what the extension asks the host to apply after a tick.
type Directives struct {
	TimeScale *float64         `json:"timeScale,omitempty"`
	Camera    *CameraDirective `json:"camera,omitempty"`
	Playing   bool             `json:"playing"`
}

// CameraDirective places the main camera for this frame.
type CameraDirective struct {
	Position [3]float64 `json:"position"`
	LookAt   [3]float64 `json:"lookAt"`
}

// FrameHost serves the collaborator interfaces from the latest Frame and
// collects the resulting directives for the reply.
type FrameHost struct {
	mu sync.Mutex

	frame     Frame
	positions map[core.EntityRef]core.Vec3
	scale     float64
	scaleSet  bool
	camera    *core.CameraPose

	physics Physics
}

// NewFrameHost creates a host adapter. A nil physics disables occlusion.
func NewFrameHost(physics Physics) *FrameHost {
	if physics == nil {
		physics = NoPhysics{}
	}
	return &FrameHost{
		positions: make(map[core.EntityRef]core.Vec3),
		scale:     1,
		physics:   physics,
	}
}

// SetPhysics swaps the occlusion probe, e.g. once the host registers one.
func (h *FrameHost) SetPhysics(physics Physics) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if physics == nil {
		physics = NoPhysics{}
	}
	h.physics = physics
}

// Begin loads a new frame and clears pending directives.
func (h *FrameHost) Begin(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.frame = f
	h.scale = f.TimeScale
	h.scaleSet = false
	h.camera = nil

	clear(h.positions)
	for _, e := range f.Entities {
		if e.Valid {
			h.positions[e.Ref] = e.Position
		}
	}
}

// Directives returns what changed since Begin.
func (h *FrameHost) Directives(playing bool) Directives {
	h.mu.Lock()
	defer h.mu.Unlock()

	d := Directives{Playing: playing}
	if h.scaleSet {
		s := h.scale
		d.TimeScale = &s
	}
	if h.camera != nil {
		d.Camera = &CameraDirective{
			Position: h.camera.Position,
			LookAt:   h.camera.LookAt,
		}
	}
	return d
}

// Now returns the unscaled host time of the current frame.
func (h *FrameHost) Now() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame.Now
}

// PlayerID returns the explicit player handle, if the host sent one.
func (h *FrameHost) PlayerID() core.EntityRef {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame.PlayerID
}

// Characters implements World.
func (h *FrameHost) Characters() []core.Entity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame.Entities
}

// Locate implements Locator.
func (h *FrameHost) Locate(ref core.EntityRef) (core.Vec3, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.positions[ref]
	return p, ok
}

// RaycastOcclusion implements Physics.
func (h *FrameHost) RaycastOcclusion(origin, dir core.Vec3, maxDistance float64) (core.Vec3, bool) {
	h.mu.Lock()
	physics := h.physics
	h.mu.Unlock()
	return physics.RaycastOcclusion(origin, dir, maxDistance)
}

// TimeScale implements TimeControl.
func (h *FrameHost) TimeScale() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scale
}

// SetTimeScale implements TimeControl.
func (h *FrameHost) SetTimeScale(scale float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scale = scale
	h.scaleSet = true
}

// FirePressed implements Input.
func (h *FrameHost) FirePressed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame.FirePressed
}

// AimHeld implements Input.
func (h *FrameHost) AimHeld() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frame.AimHeld
}

// Pose implements Camera.
func (h *FrameHost) Pose() (core.Vec3, core.Vec3, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.camera != nil {
		fwd := h.camera.LookAt.Sub(h.camera.Position)
		if !core.IsZero(fwd) {
			return h.camera.Position, fwd.Normalize(), true
		}
	}
	return h.frame.CameraPos, h.frame.CameraForward, h.frame.HasCamera
}

// Place implements Camera.
func (h *FrameHost) Place(pose core.CameraPose) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.camera = &pose
}

var _ Host = (*FrameHost)(nil)
