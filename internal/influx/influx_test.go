package influx

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OCAP2/killcam/internal/config"
	"github.com/OCAP2/killcam/internal/director"
	"github.com/OCAP2/killcam/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)

func line(p *influxdb2_write.Point) string {
	return strings.TrimSpace(influxdb2_write.PointToLineProtocol(p, time.Nanosecond))
}

func readBackup(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)

	var out []string
	for _, l := range strings.Split(string(data), "\n") {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func TestKillPoint(t *testing.T) {
	p := KillPoint(core.KillRecord{
		SessionID:  "s1",
		Scene:      "Base",
		Time:       at,
		Variant:    core.VariantHit,
		TargetName: "Scav",
		Distance:   42.5,
		Headshot:   true,
		Scoped:     true,
		Damage:     150,
	})

	assert.Equal(t, MeasurementKill, p.Name())
	lp := line(p)
	assert.True(t, strings.HasPrefix(lp, "killcam,"))
	assert.Contains(t, lp, "headshot=true")
	assert.Contains(t, lp, "scoped=true")
	assert.Contains(t, lp, "variant=hit")
	assert.Contains(t, lp, "distance=42.5")
	assert.Contains(t, lp, `target="Scav"`)
	assert.True(t, strings.HasSuffix(lp, "1792440000000000000"))
}

func TestRejectionPoint(t *testing.T) {
	p := RejectionPoint(core.Rejection{
		SessionID: "s1",
		Scene:     "Base",
		Time:      at,
		Variant:   core.VariantPresence,
		Reason:    "too close",
		Distance:  12,
	})

	assert.Equal(t, MeasurementRejection, p.Name())
	lp := line(p)
	assert.Contains(t, lp, `reason=too\ close`)
	assert.Contains(t, lp, "distance=12")
}

func TestStatsPoint(t *testing.T) {
	p := StatsPoint(director.Stats{Frames: 10, KillCams: 2, Playing: true, Scene: "Base", Session: "s1"}, at)

	lp := line(p)
	assert.Contains(t, lp, "frames=10i")
	assert.Contains(t, lp, "killcams=2i")
	assert.Contains(t, lp, "playing=true")
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.EqualError(t, m.Connect(), "influx.enabled is false")
}

func TestWritePoint_NotConnected(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.Error(t, m.RecordKill(&core.KillRecord{Time: at}))
}

func TestConnect_UnreachableUsesBackup(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
		Org:      "killcam-metrics",
		Bucket:   "killcam",
	}, zerolog.Nop(), backup)

	require.NoError(t, m.Connect())
	assert.False(t, m.IsValid)

	s := &core.Session{ID: "s1", Scene: "Base", StartedAt: at}
	require.NoError(t, m.StartSession(s))
	require.NoError(t, m.RecordKill(&core.KillRecord{SessionID: "s1", Scene: "Base", Time: at, Distance: 40}))
	require.NoError(t, m.RecordRejection(&core.Rejection{SessionID: "s1", Scene: "Base", Time: at, Reason: "busy"}))
	require.NoError(t, m.EndSession())
	require.NoError(t, m.EndSession())
	require.NoError(t, m.Close())

	lines := readBackup(t, backup)
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "killcam_session,"))
	assert.Contains(t, lines[0], "event=start")
	assert.True(t, strings.HasPrefix(lines[1], "killcam,"))
	assert.True(t, strings.HasPrefix(lines[2], "killcam_rejection,"))
	assert.Contains(t, lines[3], "event=end")
}
