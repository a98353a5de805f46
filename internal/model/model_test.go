package model

import (
	"testing"
	"time"

	"github.com/OCAP2/killcam/internal/geo"
	"github.com/OCAP2/killcam/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Session", &Session{}, "sessions"},
		{"KillCam", &KillCam{}, "killcams"},
		{"Rejection", &Rejection{}, "rejections"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
	assert.Len(t, DatabaseModels, len(tests))
}

func TestSessionConversion(t *testing.T) {
	start := time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)

	open := SessionFromCore(core.Session{ID: "s1", Scene: "Base", StartedAt: start})
	assert.False(t, open.EndedAt.Valid)

	closed := core.Session{ID: "s1", Scene: "Base", StartedAt: start, EndedAt: start.Add(time.Hour)}
	row := SessionFromCore(closed)
	assert.True(t, row.EndedAt.Valid)
	assert.Equal(t, closed, row.ToCore())
}

func TestKillCamConversion(t *testing.T) {
	k := core.KillRecord{
		ID:         7,
		SessionID:  "s1",
		Time:       time.Date(2026, 10, 19, 20, 1, 0, 0, time.UTC),
		HostTime:   12.5,
		Variant:    core.VariantPresence,
		TargetRef:  "42",
		TargetName: "Scav",
		Distance:   40,
		Angle:      1.5,
		Lateral:    0.8,
		ShotDelay:  0.3,
		Scoped:     true,
		StartPos:   core.Vec3{0, -0.05, 0.3},
		EndPos:     core.Vec3{0, 1.6, 39.8},
		TargetPos:  core.Vec3{0, 0, 40},
	}

	row := KillCamFromCore(k)
	assert.Equal(t, "presence", row.Variant)
	assert.True(t, row.Scoped)

	start, end, err := geo.PathEnds(row.Path)
	require.NoError(t, err)
	assert.Equal(t, k.StartPos, start)
	assert.Equal(t, k.EndPos, end)

	row.Session = Session{Scene: "Base"}
	back := row.ToCore()
	k.Scene = "Base"
	assert.Equal(t, k, back)
}

func TestRejectionConversion(t *testing.T) {
	r := core.Rejection{
		SessionID:  "s1",
		Time:       time.Date(2026, 10, 19, 20, 2, 0, 0, time.UTC),
		HostTime:   3,
		Variant:    core.VariantPresence,
		TargetName: "Scav",
		Reason:     "angle too large",
		Distance:   60,
		Angle:      27,
		ShotDelay:  0.2,
		TargetPos:  core.Vec3{20, 0, 40},
	}

	row := RejectionFromCore(r)
	assert.JSONEq(t, `{"angle":27,"shotDelay":0.2}`, string(row.Measures))
	assert.Equal(t, r, row.ToCore())
}

func TestRejectionToCore_BadMeasures(t *testing.T) {
	row := Rejection{Reason: "too close", Distance: 10, Measures: []byte("not json")}

	r := row.ToCore()

	assert.Equal(t, 10.0, r.Distance)
	assert.Zero(t, r.Angle)
}
