// Package killcam plays the slowed camera flight from the shot origin to the
// target.
package killcam

import (
	"log/slog"

	"github.com/OCAP2/killcam/internal/host"
	"github.com/OCAP2/killcam/internal/timescale"
	"github.com/OCAP2/killcam/pkg/core"
)

const (
	// DefaultDuration is the unscaled length of a kill-cam in seconds.
	DefaultDuration = 1.2
	// DefaultSlowScale is the time scale held while playing.
	DefaultSlowScale = 0.1

	// HeadHeight lifts a character's origin to its head.
	HeadHeight = 1.6

	muzzleForward = 0.3
	muzzleDrop    = 0.05
	headStandoff  = 0.2

	// minProbeDistance skips the occlusion probe when camera and target coincide.
	minProbeDistance = 0.01
)

// Options tune a Controller.
type Options struct {
	Duration  float64
	SlowScale float64
	// TrailBack and TrailUp offset the camera behind and above the travel line.
	TrailBack float64
	TrailUp   float64
}

// DefaultOptions returns the shipped kill-cam timing with no trailing offset.
func DefaultOptions() Options {
	return Options{Duration: DefaultDuration, SlowScale: DefaultSlowScale}
}

type state struct {
	startTime float64
	startPos  core.Vec3
	endPos    core.Vec3
	look      core.EntityRef
	lease     *timescale.Lease
}

// Controller is the Idle/Playing state machine. A trigger while Playing is
// ignored.
type Controller struct {
	opts    Options
	time    host.TimeControl
	camera  host.Camera
	locator host.Locator
	physics host.Physics
	logger  *slog.Logger

	st *state
}

// NewController wires a controller to its host collaborators. physics may be
// nil, which disables occlusion correction.
func NewController(opts Options, tc host.TimeControl, cam host.Camera, loc host.Locator, physics host.Physics, logger *slog.Logger) *Controller {
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.SlowScale <= 0 {
		opts.SlowScale = DefaultSlowScale
	}
	if physics == nil {
		physics = host.NoPhysics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		opts:    opts,
		time:    tc,
		camera:  cam,
		locator: loc,
		physics: physics,
		logger:  logger,
	}
}

// Playing reports whether a kill-cam is active.
func (c *Controller) Playing() bool {
	return c.st != nil
}

// Options returns the controller options.
func (c *Controller) Options() Options {
	return c.opts
}

// Trigger starts a kill-cam flying from start to end. look is optional; when
// set the camera tracks that entity instead of the end point. It returns false
// when a kill-cam is already playing.
func (c *Controller) Trigger(now float64, start, end core.Vec3, look core.EntityRef) bool {
	if c.st != nil {
		c.logger.Debug("Kill-cam already playing, trigger ignored")
		return false
	}

	c.st = &state{
		startTime: now,
		startPos:  start,
		endPos:    end,
		look:      look,
		lease:     timescale.Acquire(c.time, c.opts.SlowScale),
	}

	c.logger.Info("Slow motion on",
		"saved", c.st.lease.Saved(),
		"current", c.time.TimeScale())
	return true
}

// Progress returns the clamped linear progress at now, 0 when idle.
func (c *Controller) Progress(now float64) float64 {
	if c.st == nil {
		return 0
	}
	return clamp01((now - c.st.startTime) / c.opts.Duration)
}

// Tick advances playback and places the camera. It returns whether the
// kill-cam is still playing afterwards.
func (c *Controller) Tick(now float64) bool {
	if c.st == nil {
		return false
	}

	c.st.lease.Reassert()

	t := c.Progress(now)
	if t >= 1 {
		c.finish("completed")
		return false
	}

	pos := c.positionAt(Smoothstep(t))

	lookAt := c.st.endPos
	if c.st.look.IsSet() {
		if p, ok := c.locator.Locate(c.st.look); ok {
			lookAt = p
		}
	}

	pos = c.occlude(lookAt, pos)

	c.camera.Place(core.CameraPose{Position: pos, LookAt: lookAt})
	return true
}

// Close ends playback immediately and restores the time scale. Safe to call
// repeatedly and while idle.
func (c *Controller) Close() {
	if c.st == nil {
		return
	}
	c.finish("interrupted")
}

func (c *Controller) finish(reason string) {
	c.st.lease.Release()
	c.st = nil
	c.logger.Info("Kill-cam end", "reason", reason, "timeScale", c.time.TimeScale())
}

func (c *Controller) positionAt(eased float64) core.Vec3 {
	pos := core.Lerp(c.st.startPos, c.st.endPos, eased)
	if c.opts.TrailBack == 0 && c.opts.TrailUp == 0 {
		return pos
	}
	if dir, err := core.Normalized(c.st.endPos.Sub(c.st.startPos)); err == nil {
		pos = pos.Sub(dir.Mul(c.opts.TrailBack))
	}
	return pos.Add(core.Up.Mul(c.opts.TrailUp))
}

// occlude probes from the look point toward the camera and pulls the camera
// onto the first hit.
func (c *Controller) occlude(from, camPos core.Vec3) core.Vec3 {
	toCam := camPos.Sub(from)
	dist := toCam.Len()
	if dist <= minProbeDistance {
		return camPos
	}
	if hit, ok := c.physics.RaycastOcclusion(from, toCam.Mul(1/dist), dist); ok {
		return hit
	}
	return camPos
}

// Smoothstep is the cubic ease 3t²-2t³ on a clamped t.
func Smoothstep(t float64) float64 {
	t = clamp01(t)
	return t * t * (3 - 2*t)
}

func clamp01(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}

// PathTo returns the flight path for a target standing at targetPos seen
// from the given camera: it starts just ahead of the camera and ends a short
// distance before the target's head.
func PathTo(camPos, camForward, targetPos core.Vec3) (start, end core.Vec3) {
	head := HeadOf(targetPos)
	start = camPos.Add(camForward.Mul(muzzleForward)).Sub(core.Up.Mul(muzzleDrop))

	dir := head.Sub(start)
	if core.IsZero(dir) {
		dir = camForward
	}
	if n, err := core.Normalized(dir); err == nil {
		end = head.Sub(n.Mul(headStandoff))
	} else {
		end = head
	}
	return start, end
}

// HeadOf returns the approximate head position of a character.
func HeadOf(pos core.Vec3) core.Vec3 {
	return pos.Add(core.Up.Mul(HeadHeight))
}
