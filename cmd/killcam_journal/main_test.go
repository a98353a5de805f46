package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/killcam/internal/database"
	"github.com/OCAP2/killcam/internal/model"
	"github.com/OCAP2/killcam/pkg/core"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kill(name string, dist float64, pos core.Vec3, headshot bool) core.KillRecord {
	return core.KillRecord{
		SessionID:  "s1",
		Time:       time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Variant:    core.VariantPresence,
		TargetName: name,
		Distance:   dist,
		Headshot:   headshot,
		StartPos:   core.Vec3{0, 0, 0.3},
		EndPos:     pos,
		TargetPos:  pos,
	}
}

func writeJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := database.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, database.Setup(db))

	require.NoError(t, db.Create(&model.Session{ID: "s1", Scene: "Base", StartedAt: time.Now().UTC()}).Error)
	for _, k := range []core.KillRecord{
		kill("Scav", 40, core.Vec3{0, 0, 40}, false),
		kill("Boss", 120, core.Vec3{100, 0, 60}, true),
	} {
		row := model.KillCamFromCore(k)
		require.NoError(t, db.Omit("Session").Create(&row).Error)
	}
	rej := model.RejectionFromCore(core.Rejection{SessionID: "s1", Variant: core.VariantHit, Reason: "too close"})
	require.NoError(t, db.Omit("Session").Create(&rej).Error)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	return path
}

func runJournal(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(viper.Reset)
	var stdout, stderr bytes.Buffer
	err := run(append([]string{"--dir", t.TempDir()}, args...), &stdout, &stderr)
	return stdout.String(), err
}

func TestSummarize(t *testing.T) {
	boss := kill("Boss", 120, core.Vec3{}, true)
	boss.Scoped = true
	s := summarize(
		[]core.KillRecord{
			kill("Scav", 40, core.Vec3{}, false),
			boss,
		},
		[]core.Rejection{{Reason: "too close"}, {Reason: "too close"}, {Reason: "no shot"}},
	)

	assert.Equal(t, 2, s.KillCams)
	assert.Equal(t, 1, s.Headshots)
	assert.Equal(t, 1, s.Scoped)
	assert.Equal(t, 80.0, s.MeanDistance)
	assert.Equal(t, 120.0, s.LongestDistance)
	assert.Equal(t, "Boss", s.LongestTarget)
	assert.Equal(t, map[string]int{"presence": 2}, s.ByVariant)
	assert.Equal(t, map[string]int{"too close": 2, "no shot": 1}, s.ByReason)
}

func TestSummarize_Empty(t *testing.T) {
	s := summarize(nil, nil)
	assert.Zero(t, s.KillCams)
	assert.Zero(t, s.MeanDistance)
}

func TestNearKills(t *testing.T) {
	kills := []core.KillRecord{
		kill("Scav", 40, core.Vec3{0, 0, 40}, false),
		kill("Boss", 120, core.Vec3{100, 0, 60}, true),
	}

	got := nearKills(kills, core.Vec3{0, 0, 45}, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "Scav", got[0].TargetName)

	assert.Empty(t, nearKills(kills, core.Vec3{500, 0, 0}, 10))
}

func TestRun_Kills(t *testing.T) {
	path := writeJournal(t)

	out, err := runJournal(t, "--db", path, "kills", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "TARGET")
	assert.Contains(t, out, "SCOPED")
	assert.Contains(t, out, "Scav")
	assert.Contains(t, out, "Boss")
}

func TestRun_KillsJSON(t *testing.T) {
	path := writeJournal(t)

	out, err := runJournal(t, "--db", path, "--json", "near", "0,0,45", "10")
	require.NoError(t, err)

	var kills []core.KillRecord
	require.NoError(t, json.Unmarshal([]byte(out), &kills))
	require.Len(t, kills, 1)
	assert.Equal(t, "Scav", kills[0].TargetName)
	assert.Equal(t, "Base", kills[0].Scene)
}

func TestRun_Sessions(t *testing.T) {
	path := writeJournal(t)

	out, err := runJournal(t, "--db", path, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "s1")
	assert.Contains(t, out, "Base")
}

func TestRun_Summary(t *testing.T) {
	path := writeJournal(t)

	out, err := runJournal(t, "--db", path, "--json", "summary")
	require.NoError(t, err)

	var s Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 2, s.KillCams)
	assert.Equal(t, 1, s.Rejections)
	assert.Equal(t, 1, s.ByReason["too close"])
}

func TestRun_Errors(t *testing.T) {
	path := writeJournal(t)

	_, err := runJournal(t)
	assert.EqualError(t, err, "no command given")

	_, err = runJournal(t, "--db", path, "explode")
	assert.EqualError(t, err, `unknown command "explode"`)

	_, err = runJournal(t, "--db", path, "near", "0,0,0")
	assert.Error(t, err)

	_, err = runJournal(t, "--db", path, "near", "0,0,0", "-5")
	assert.Error(t, err)

	_, err = runJournal(t, "--db", filepath.Join(t.TempDir(), "missing.db"), "kills")
	assert.Error(t, err)
}

func TestRun_MigrateNothing(t *testing.T) {
	_, err := runJournal(t, "migrate", t.TempDir())
	assert.NoError(t, err)
}
