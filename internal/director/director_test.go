package director

import (
	"sync"
	"testing"

	"github.com/OCAP2/killcam/internal/correlate"
	"github.com/OCAP2/killcam/internal/damage"
	"github.com/OCAP2/killcam/internal/host"
	"github.com/OCAP2/killcam/internal/killcam"
	"github.com/OCAP2/killcam/internal/scene"
	"github.com/OCAP2/killcam/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memJournal struct {
	mu         sync.Mutex
	sessions   []core.Session
	ended      int
	kills      []core.KillRecord
	rejections []core.Rejection
}

func (j *memJournal) StartSession(s *core.Session) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sessions = append(j.sessions, *s)
	return nil
}

func (j *memJournal) EndSession() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ended++
	return nil
}

func (j *memJournal) RecordKill(k *core.KillRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.kills = append(j.kills, *k)
	return nil
}

func (j *memJournal) RecordRejection(r *core.Rejection) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rejections = append(j.rejections, *r)
	return nil
}

type fixture struct {
	host    *host.FrameHost
	journal *memJournal
	dir     *Director
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fh := host.NewFrameHost(nil)
	j := &memJournal{}
	d, err := New(DefaultConfig(), fh, scene.NewContext(), nil, j)
	require.NoError(t, err)
	return &fixture{host: fh, journal: j, dir: d}
}

func char(ref string, pos core.Vec3) core.Entity {
	return core.Entity{Ref: core.EntityRef(ref), TypeName: "CharacterMainControl", Name: ref, Position: pos, Valid: true}
}

// frame runs one tick with the camera at the origin facing +Z.
func (f *fixture) frame(now float64, fire bool, entities ...core.Entity) host.Directives {
	f.host.Begin(host.Frame{
		Now:           now,
		TimeScale:     f.host.TimeScale(),
		FirePressed:   fire,
		HasCamera:     true,
		CameraPos:     core.Vec3{0, 0, 0},
		CameraForward: core.Vec3{0, 0, 1},
		Entities:      entities,
	})
	playing := f.dir.Tick(now)
	return f.host.Directives(playing)
}

func TestScenario_StraightShotStartsKillCam(t *testing.T) {
	f := newFixture(t)
	me := char("me", core.Vec3{0, 0, 0})

	f.frame(0, true, me, char("enemy", core.Vec3{0, 0, 40}))
	out := f.frame(0.3, false, me)

	assert.True(t, out.Playing)
	require.NotNil(t, out.TimeScale)
	assert.Equal(t, killcam.DefaultSlowScale, *out.TimeScale)
	require.NotNil(t, out.Camera)

	require.Len(t, f.journal.kills, 1)
	k := f.journal.kills[0]
	assert.Equal(t, core.VariantPresence, k.Variant)
	assert.Equal(t, "enemy", k.TargetName)
	assert.InDelta(t, 40, k.Distance, 1e-9)
	assert.InDelta(t, 0, k.Angle, 1e-9)
	assert.InDelta(t, 0.3, k.ShotDelay, 1e-9)
	assert.InDelta(t, 0.3, k.StartPos.Z(), 1e-9)
	assert.InDelta(t, 0.2, core.Distance(k.EndPos, killcam.HeadOf(k.TargetPos)), 1e-9)
	assert.False(t, k.Scoped)
	assert.Empty(t, f.journal.rejections)
	assert.Equal(t, uint64(1), f.dir.Stats().KillCams)
}

// aimedShot runs a firing frame with the aim input held.
func (f *fixture) aimedShot(now float64, entities ...core.Entity) {
	f.host.Begin(host.Frame{
		Now:           now,
		TimeScale:     f.host.TimeScale(),
		FirePressed:   true,
		AimHeld:       true,
		HasCamera:     true,
		CameraPos:     core.Vec3{0, 0, 0},
		CameraForward: core.Vec3{0, 0, 1},
		Entities:      entities,
	})
	f.dir.Tick(now)
}

func TestScenario_ScopedShotIsJournaled(t *testing.T) {
	f := newFixture(t)
	me := char("me", core.Vec3{0, 0, 0})

	f.aimedShot(0, me, char("enemy", core.Vec3{0, 0, 40}))
	f.frame(0.3, false, me)

	require.Len(t, f.journal.kills, 1)
	assert.True(t, f.journal.kills[0].Scoped)
}

func TestHit_ScopedOnlyWithinWindow(t *testing.T) {
	f := newFixture(t)
	me := char("me", core.Vec3{0, 0, 0})
	enemy := char("enemy", core.Vec3{0, 0, 40})
	f.aimedShot(0, me, enemy)

	_, err := f.dir.Hit(headHit(0.1, "enemy"))
	require.NoError(t, err)
	require.Len(t, f.journal.kills, 1)
	assert.True(t, f.journal.kills[0].Scoped)

	g := newFixture(t)
	g.aimedShot(0, me, enemy)
	_, err = g.dir.Hit(headHit(5, "enemy"))
	require.NoError(t, err)
	require.Len(t, g.journal.kills, 1)
	assert.False(t, g.journal.kills[0].Scoped, "stale aimed shot")
}

func TestScenario_WideAngleRejected(t *testing.T) {
	f := newFixture(t)
	me := char("me", core.Vec3{0, 0, 0})

	f.frame(0, true, me, char("enemy", core.Vec3{20, 0, 40}))
	out := f.frame(0.3, false, me)

	assert.False(t, out.Playing)
	assert.Nil(t, out.TimeScale)
	assert.Empty(t, f.journal.kills)
	require.Len(t, f.journal.rejections, 1)
	assert.Equal(t, correlate.ReasonAngle, f.journal.rejections[0].Reason)
	assert.InDelta(t, 26.57, f.journal.rejections[0].Angle, 0.01)
}

func TestScenario_LateDisappearanceRejected(t *testing.T) {
	f := newFixture(t)
	me := char("me", core.Vec3{0, 0, 0})
	enemy := char("enemy", core.Vec3{0, 0, 40})

	f.frame(0, true, me, enemy)
	f.frame(0.5, false, me, enemy)
	out := f.frame(1.0, false, me)

	assert.False(t, out.Playing)
	require.Len(t, f.journal.rejections, 1)
	assert.Equal(t, correlate.ReasonWindow, f.journal.rejections[0].Reason)
	assert.InDelta(t, 1.0, f.journal.rejections[0].ShotDelay, 1e-9)
}

func TestKillCam_EndsAndRestoresTimeScale(t *testing.T) {
	f := newFixture(t)
	me := char("me", core.Vec3{0, 0, 0})
	f.frame(0, true, me, char("enemy", core.Vec3{0, 0, 40}))
	f.frame(0.3, false, me)

	mid := f.frame(0.9, false, me)
	assert.True(t, mid.Playing)

	end := f.frame(0.3+killcam.DefaultDuration+0.05, false, me)
	assert.False(t, end.Playing)
	require.NotNil(t, end.TimeScale)
	assert.Equal(t, 1.0, *end.TimeScale)
	assert.Nil(t, end.Camera)
}

func TestKillCam_SuspendsCaptureWhilePlaying(t *testing.T) {
	f := newFixture(t)
	me := char("me", core.Vec3{0, 0, 0})
	f.frame(0, true, me, char("a", core.Vec3{0, 0, 40}), char("b", core.Vec3{0, 0.5, 60}))
	f.frame(0.3, false, me, char("b", core.Vec3{0, 0.5, 60}))

	shots := f.dir.Stats().Shots
	scans := f.dir.Stats().Scans
	f.frame(0.6, true, me)

	assert.Equal(t, shots, f.dir.Stats().Shots)
	assert.Equal(t, scans, f.dir.Stats().Scans)
}

func TestNoCamera_SkipsEverything(t *testing.T) {
	f := newFixture(t)
	f.host.Begin(host.Frame{Now: 0, TimeScale: 1, FirePressed: true})

	assert.False(t, f.dir.Tick(0))
	assert.Zero(t, f.dir.Stats().Shots)
	assert.Zero(t, f.dir.Stats().Scans)
}

func TestClose_RestoresTimeScale(t *testing.T) {
	f := newFixture(t)
	me := char("me", core.Vec3{0, 0, 0})
	f.frame(0, true, me, char("enemy", core.Vec3{0, 0, 40}))
	f.frame(0.3, false, me)
	require.True(t, f.dir.Playing())

	f.dir.Close()
	f.dir.Close()

	assert.False(t, f.dir.Playing())
	assert.Equal(t, 1.0, f.host.TimeScale())
	assert.Equal(t, 2, f.journal.ended)
}

func headHit(now float64, ref string) HitRequest {
	return HitRequest{
		Time:     now,
		Ref:      core.EntityRef(ref),
		Name:     ref,
		Point:    core.Vec3{0, 1.6, 40},
		Collider: "Head",
		Target: damage.NewRemote([]damage.ComponentSnapshot{{
			Type:   "Health",
			Fields: map[string]float64{"CurrentHealth": 100, "MaxHealth": 100},
		}}),
		BaseDamage: 50,
	}
}

func TestHit_DistantHeadshotStartsKillCam(t *testing.T) {
	f := newFixture(t)
	me := char("me", core.Vec3{0, 0, 0})
	enemy := char("enemy", core.Vec3{0, 0, 40})
	f.frame(0, false, me, enemy)

	out, err := f.dir.Hit(headHit(0.1, "enemy"))

	require.NoError(t, err)
	assert.True(t, out.Killed)
	assert.Equal(t, 150.0, out.Damage)
	assert.Equal(t, 0.0, out.Health)
	assert.True(t, out.KillCam)
	require.Len(t, f.journal.kills, 1)
	assert.Equal(t, core.VariantHit, f.journal.kills[0].Variant)
	assert.True(t, f.journal.kills[0].Headshot)

	// the corpse vanishing later is not counted again
	f.frame(0.1+killcam.DefaultDuration+0.05, false, me, enemy)
	f.frame(2.0, false, me)
	assert.Empty(t, f.journal.rejections)
	assert.Len(t, f.journal.kills, 1)
}

func TestHit_KillWithoutCameraIsStillCredited(t *testing.T) {
	f := newFixture(t)
	me := char("me", core.Vec3{0, 0, 0})
	enemy := char("enemy", core.Vec3{0, 0, 40})
	f.frame(0, true, me, enemy)

	f.host.Begin(host.Frame{Now: 0.05, TimeScale: 1, Entities: []core.Entity{me, enemy}})
	f.dir.Tick(0.05)
	out, err := f.dir.Hit(headHit(0.1, "enemy"))
	require.NoError(t, err)
	require.True(t, out.Killed)
	assert.False(t, out.KillCam)

	// the aimed shot at t=0 would otherwise correlate with this vanish
	f.frame(0.3, false, me)
	assert.False(t, f.dir.Playing())
	assert.Empty(t, f.journal.kills)
	assert.Empty(t, f.journal.rejections)
	assert.Empty(t, f.dir.credited)
}

func TestHit_UntrackedCreditIsPruned(t *testing.T) {
	f := newFixture(t)
	me := char("me", core.Vec3{0, 0, 0})
	f.frame(0, false, me, char("enemy", core.Vec3{0, 0, 40}))

	out, err := f.dir.Hit(headHit(0.1, "ghost"))
	require.NoError(t, err)
	require.True(t, out.KillCam)
	assert.Contains(t, f.dir.credited, core.EntityRef("ghost"))

	f.frame(2.0, false, me, char("enemy", core.Vec3{0, 0, 40}))
	require.False(t, f.dir.Playing())
	f.frame(2.5, false, me, char("enemy", core.Vec3{0, 0, 40}))

	assert.NotContains(t, f.dir.credited, core.EntityRef("ghost"))
}

func TestHit_CloseKillHasNoKillCam(t *testing.T) {
	f := newFixture(t)
	me := char("me", core.Vec3{0, 0, 0})
	f.frame(0, false, me, char("enemy", core.Vec3{0, 0, 20}))

	out, err := f.dir.Hit(headHit(0.1, "enemy"))

	require.NoError(t, err)
	assert.True(t, out.Killed)
	assert.False(t, out.KillCam)
	require.Len(t, f.journal.rejections, 1)
	assert.Equal(t, correlate.ReasonTooClose, f.journal.rejections[0].Reason)
}

func TestHit_NoHealthAborts(t *testing.T) {
	f := newFixture(t)
	f.frame(0, false, char("me", core.Vec3{}))

	req := headHit(0.1, "crate")
	req.Target = damage.NewRemote([]damage.ComponentSnapshot{{Type: "Rigidbody", Fields: map[string]float64{"mass": 5}}})
	out, err := f.dir.Hit(req)

	assert.ErrorIs(t, err, damage.ErrNoHealth)
	assert.False(t, out.KillCam)
	assert.Empty(t, f.journal.kills)
}

func TestLoadScene_ResetsAndStartsSession(t *testing.T) {
	f := newFixture(t)
	me := char("me", core.Vec3{0, 0, 0})
	f.frame(0, true, me, char("enemy", core.Vec3{0, 0, 40}))
	f.frame(0.3, false, me)
	require.True(t, f.dir.Playing())

	s := f.dir.LoadScene("Level_Farm")

	assert.False(t, f.dir.Playing())
	assert.Equal(t, 1.0, f.host.TimeScale())
	require.Len(t, f.journal.sessions, 1)
	assert.Equal(t, s.SessionID, f.journal.sessions[0].ID)
	assert.Equal(t, "Level_Farm", f.dir.Stats().Scene)

	// the enemy from the old scene is forgotten: its absence emits nothing
	f.frame(5, false, char("me2", core.Vec3{}))
	assert.Empty(t, f.journal.rejections)
}
