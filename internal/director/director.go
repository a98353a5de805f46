// Package director owns the per-frame kill-cam loop: shot capture, presence
// scans, correlation, direct hits and kill-cam playback.
package director

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/OCAP2/killcam/internal/correlate"
	"github.com/OCAP2/killcam/internal/damage"
	"github.com/OCAP2/killcam/internal/host"
	"github.com/OCAP2/killcam/internal/killcam"
	"github.com/OCAP2/killcam/internal/presence"
	"github.com/OCAP2/killcam/internal/scene"
	"github.com/OCAP2/killcam/internal/shot"
	"github.com/OCAP2/killcam/pkg/core"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultHitMinDistance is the player-to-target distance a direct-hit kill
// needs before it plays a kill-cam.
const DefaultHitMinDistance = 30.0

// ReasonBusy is recorded for candidates arriving while a kill-cam plays.
const ReasonBusy = "kill-cam already playing"

// Journal receives sessions, kills and rejections.
type Journal interface {
	StartSession(s *core.Session) error
	EndSession() error
	RecordKill(k *core.KillRecord) error
	RecordRejection(r *core.Rejection) error
}

// Config holds the director's tunables.
type Config struct {
	CharacterType  string
	KillCam        killcam.Options
	Thresholds     correlate.Thresholds
	HitMinDistance float64
}

// DefaultConfig returns the shipped constants.
func DefaultConfig() Config {
	return Config{
		CharacterType:  presence.DefaultCharacterType,
		KillCam:        killcam.DefaultOptions(),
		Thresholds:     correlate.DefaultThresholds(),
		HitMinDistance: DefaultHitMinDistance,
	}
}

// Stats is a snapshot of the director counters.
type Stats struct {
	Frames         uint64 `json:"frames"`
	Shots          uint64 `json:"shots"`
	Scans          uint64 `json:"scans"`
	Disappearances uint64 `json:"disappearances"`
	Hits           uint64 `json:"hits"`
	KillCams       uint64 `json:"killcams"`
	Rejections     uint64 `json:"rejections"`
	Playing        bool   `json:"playing"`
	Scene          string `json:"scene"`
	Session        string `json:"session"`
}

// Director drives one host session. Tick and Hit must be called from the
// host's frame path; Stats is safe from any goroutine.
type Director struct {
	cfg      Config
	host     host.Host
	scene    *scene.Context
	journals []Journal
	logger   *slog.Logger

	shots   *shot.Recorder
	tracker *presence.Tracker
	filter  *correlate.Filter
	cam     *killcam.Controller
	damage  *damage.Adapter

	// refs already credited through a direct hit
	credited map[core.EntityRef]struct{}
	lastNow  float64
	ticked   bool

	frames, shotCount, scans, gone, hits, killcams, rejections atomic.Uint64
	playing                                                    atomic.Bool

	killcamCounter   metric.Int64Counter
	rejectionCounter metric.Int64Counter
}

// New wires a director. journals may be empty.
func New(cfg Config, h host.Host, sc *scene.Context, logger *slog.Logger, journals ...Journal) (*Director, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sc == nil {
		sc = scene.NewContext()
	}
	if cfg.Thresholds == (correlate.Thresholds{}) {
		cfg.Thresholds = correlate.DefaultThresholds()
	}
	if cfg.HitMinDistance <= 0 {
		cfg.HitMinDistance = DefaultHitMinDistance
	}

	d := &Director{
		cfg:      cfg,
		host:     h,
		scene:    sc,
		journals: journals,
		logger:   logger,
		shots:    shot.NewRecorder(),
		tracker:  presence.NewTracker(cfg.CharacterType, logger),
		filter:   correlate.NewFilter(cfg.Thresholds),
		cam:      killcam.NewController(cfg.KillCam, h, h, h, h, logger),
		damage:   damage.NewAdapter(logger),
		credited: make(map[core.EntityRef]struct{}),
	}

	var err error
	m := meter()
	d.killcamCounter, err = m.Int64Counter("killcam.started",
		metric.WithDescription("Kill-cams started"),
		metric.WithUnit("{killcam}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create killcam counter: %w", err)
	}
	d.rejectionCounter, err = m.Int64Counter("killcam.rejected",
		metric.WithDescription("Kill candidates rejected"),
		metric.WithUnit("{candidate}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rejection counter: %w", err)
	}

	return d, nil
}

// Playing reports whether a kill-cam is active.
func (d *Director) Playing() bool {
	return d.cam.Playing()
}

// Tick runs one frame. It returns whether a kill-cam is playing afterwards.
func (d *Director) Tick(now float64) bool {
	d.frames.Add(1)

	delta := 0.0
	if d.ticked && now > d.lastNow {
		delta = now - d.lastNow
	}
	d.lastNow, d.ticked = now, true

	if d.cam.Playing() {
		return d.advance(now)
	}

	camPos, camFwd, ok := d.host.Pose()
	if !ok {
		return false
	}

	if d.host.FirePressed() {
		fwd, err := core.Normalized(camFwd)
		if err != nil {
			fwd = core.Forward
		}
		d.shots.Record(now, camPos, fwd, d.host.AimHeld())
		d.shotCount.Add(1)
	}

	if d.tracker.Due(delta) {
		d.scans.Add(1)
		for _, g := range d.tracker.Scan(d.host, camPos, d.host.PlayerID()) {
			d.gone.Add(1)
			d.onDisappearance(now, g, camPos, camFwd)
		}
		d.pruneCredited()
	}

	if d.cam.Playing() {
		return d.advance(now)
	}
	return false
}

func (d *Director) advance(now float64) bool {
	playing := d.cam.Tick(now)
	d.playing.Store(playing)
	return playing
}

func (d *Director) onDisappearance(now float64, g core.Disappearance, camPos, camFwd core.Vec3) {
	if _, ok := d.credited[g.Ref]; ok {
		delete(d.credited, g.Ref)
		return
	}

	last, _ := d.shots.Last()
	playerPos := d.playerPosition(camPos)
	dec := d.filter.Evaluate(now, last, playerPos, g.LastPosition)

	if !dec.Accepted {
		d.logger.Debug("Kill-cam skipped",
			"target", g.LastName,
			"reason", dec.Reason,
			"dist", dec.Distance,
			"angle", dec.Angle,
			"side", dec.Lateral,
			"dt", dec.ShotDelay)
		d.reject(now, core.VariantPresence, g.LastName, g.LastPosition, dec.Reason, dec)
		return
	}

	if d.cam.Playing() {
		d.reject(now, core.VariantPresence, g.LastName, g.LastPosition, ReasonBusy, dec)
		return
	}

	start, end := killcam.PathTo(camPos, camFwd, g.LastPosition)
	if !d.cam.Trigger(now, start, end, "") {
		return
	}

	d.logger.Info("Kill-cam start",
		"target", g.LastName,
		"dist", dec.Distance,
		"angle", dec.Angle,
		"side", dec.Lateral)

	d.record(&core.KillRecord{
		HostTime:   now,
		Variant:    core.VariantPresence,
		TargetRef:  g.Ref,
		TargetName: g.LastName,
		Distance:   dec.Distance,
		Angle:      dec.Angle,
		Lateral:    dec.Lateral,
		ShotDelay:  dec.ShotDelay,
		Scoped:     last.Aimed,
		StartPos:   start,
		EndPos:     end,
		TargetPos:  g.LastPosition,
	})
}

// scopedShot reports whether the last shot, fired within the correlation
// window before now, was aimed.
func (d *Director) scopedShot(now float64) bool {
	last, ok := d.shots.Last()
	return ok && last.Aimed && d.shots.TimeSince(now) <= d.cfg.Thresholds.Window
}

// pruneCredited forgets credited refs the tracker no longer follows. Their
// disappearance was either handled this scan or will never be reported.
func (d *Director) pruneCredited() {
	if len(d.credited) == 0 {
		return
	}
	tracked := make(map[core.EntityRef]struct{}, len(d.credited))
	for _, te := range d.tracker.Tracked() {
		if _, ok := d.credited[te.Ref]; ok {
			tracked[te.Ref] = struct{}{}
		}
	}
	d.credited = tracked
}

// playerPosition is the tracked player's position, or the camera's when the
// player cannot be located.
func (d *Director) playerPosition(camPos core.Vec3) core.Vec3 {
	if ref := d.tracker.Player(); ref.IsSet() {
		if p, ok := d.host.Locate(ref); ok {
			return p
		}
	}
	return camPos
}

// HitRequest is a direct hit on a target. Target is handed to the damage
// adapter: a damage.Damageable, a damage.Hierarchy or a Go value to probe.
type HitRequest struct {
	Time       float64
	Ref        core.EntityRef
	Name       string
	Target     any
	Point      core.Vec3
	Collider   string
	Tag        string
	BaseDamage float64
}

// HitOutcome is the result of a direct hit.
type HitOutcome struct {
	damage.Result
	KillCam bool
}

// Hit applies a direct hit and starts a kill-cam for distant kills.
// Missing health members abort with damage.ErrNoHealth and no mutation.
func (d *Director) Hit(req HitRequest) (HitOutcome, error) {
	d.hits.Add(1)

	head := damage.IsHeadCollider(req.Collider, req.Tag)
	res, err := d.damage.ApplyShot(req.Target, req.Point, req.BaseDamage, head)
	if err != nil {
		return HitOutcome{}, err
	}
	out := HitOutcome{Result: res}
	if !res.Killed {
		return out, nil
	}

	name := req.Name
	if name == "" {
		name = string(req.Ref)
	}
	targetPos := req.Point
	if p, ok := d.host.Locate(req.Ref); ok {
		targetPos = p
	}
	if req.Ref.IsSet() {
		d.credited[req.Ref] = struct{}{}
	}

	camPos, camFwd, ok := d.host.Pose()
	if !ok {
		d.logger.Debug("Direct kill without camera", "target", name)
		return out, nil
	}

	dist := core.Distance(d.playerPosition(camPos), targetPos)
	dec := correlate.Decision{Distance: dist}
	if dist < d.cfg.HitMinDistance {
		d.reject(req.Time, core.VariantHit, name, targetPos, correlate.ReasonTooClose, dec)
		return out, nil
	}
	if d.cam.Playing() {
		d.reject(req.Time, core.VariantHit, name, targetPos, ReasonBusy, dec)
		return out, nil
	}

	start, end := killcam.PathTo(camPos, camFwd, targetPos)
	if !d.cam.Trigger(req.Time, start, end, req.Ref) {
		return out, nil
	}
	d.playing.Store(true)
	out.KillCam = true

	d.logger.Info("Kill-cam start",
		"target", name,
		"dist", dist,
		"damage", res.Damage,
		"headshot", head)

	d.record(&core.KillRecord{
		HostTime:   req.Time,
		Variant:    core.VariantHit,
		TargetRef:  req.Ref,
		TargetName: name,
		Distance:   dist,
		Headshot:   head,
		Scoped:     d.scopedShot(req.Time),
		Damage:     res.Damage,
		StartPos:   start,
		EndPos:     end,
		TargetPos:  targetPos,
	})
	return out, nil
}

// LoadScene stops any kill-cam, forgets tracked characters and the player,
// and starts a new journal session.
func (d *Director) LoadScene(name string) scene.Scene {
	d.cam.Close()
	d.playing.Store(false)
	d.tracker.Reset()
	d.shots.Reset()
	clear(d.credited)
	d.ticked = false

	d.endSession()
	s := d.scene.Load(name)
	session := &core.Session{ID: s.SessionID, Scene: s.Name, StartedAt: s.LoadedAt}
	for _, j := range d.journals {
		if err := j.StartSession(session); err != nil {
			d.logger.Error("Failed to start journal session", "error", err)
		}
	}

	d.logger.Info("Scene loaded", "scene", s.Name, "session", s.SessionID)
	return s
}

// Close restores the time scale if a kill-cam is playing and ends the
// journal session. Safe to call more than once.
func (d *Director) Close() {
	d.cam.Close()
	d.playing.Store(false)
	d.endSession()
}

func (d *Director) endSession() {
	for _, j := range d.journals {
		if err := j.EndSession(); err != nil {
			d.logger.Error("Failed to end journal session", "error", err)
		}
	}
}

// Stats returns the current counters.
func (d *Director) Stats() Stats {
	s := d.scene.Get()
	return Stats{
		Frames:         d.frames.Load(),
		Shots:          d.shotCount.Load(),
		Scans:          d.scans.Load(),
		Disappearances: d.gone.Load(),
		Hits:           d.hits.Load(),
		KillCams:       d.killcams.Load(),
		Rejections:     d.rejections.Load(),
		Playing:        d.playing.Load(),
		Scene:          s.Name,
		Session:        s.SessionID,
	}
}

func (d *Director) record(k *core.KillRecord) {
	s := d.scene.Get()
	k.SessionID = s.SessionID
	k.Scene = s.Name
	k.Time = time.Now()

	d.killcams.Add(1)
	d.killcamCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("variant", string(k.Variant))))

	for _, j := range d.journals {
		if err := j.RecordKill(k); err != nil {
			d.logger.Error("Failed to record kill", "error", err)
		}
	}
}

func (d *Director) reject(now float64, variant core.Variant, name string, pos core.Vec3, reason string, dec correlate.Decision) {
	s := d.scene.Get()
	r := &core.Rejection{
		SessionID:  s.SessionID,
		Scene:      s.Name,
		Time:       time.Now(),
		HostTime:   now,
		Variant:    variant,
		TargetName: name,
		Reason:     reason,
		Distance:   dec.Distance,
		Angle:      dec.Angle,
		Lateral:    dec.Lateral,
		ShotDelay:  dec.ShotDelay,
		TargetPos:  pos,
	}

	d.rejections.Add(1)
	d.rejectionCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("variant", string(variant)),
			attribute.String("reason", reason),
		))

	for _, j := range d.journals {
		if err := j.RecordRejection(r); err != nil {
			d.logger.Error("Failed to record rejection", "error", err)
		}
	}
}
