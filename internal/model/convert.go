package model

import (
	"database/sql"
	"encoding/json"

	"github.com/OCAP2/killcam/internal/geo"
	"github.com/OCAP2/killcam/pkg/core"
	"gorm.io/datatypes"
)

// measures are the optional rejection values kept in Rejection.Measures.
type measures struct {
	Angle     float64 `json:"angle,omitempty"`
	Lateral   float64 `json:"lateral,omitempty"`
	ShotDelay float64 `json:"shotDelay,omitempty"`
}

// SessionFromCore converts a core.Session to a GORM model.Session.
func SessionFromCore(s core.Session) Session {
	out := Session{ID: s.ID, Scene: s.Scene, StartedAt: s.StartedAt}
	if !s.EndedAt.IsZero() {
		out.EndedAt = sql.NullTime{Time: s.EndedAt, Valid: true}
	}
	return out
}

// ToCore converts the session back.
func (s Session) ToCore() core.Session {
	out := core.Session{ID: s.ID, Scene: s.Scene, StartedAt: s.StartedAt}
	if s.EndedAt.Valid {
		out.EndedAt = s.EndedAt.Time
	}
	return out
}

// KillCamFromCore converts a core.KillRecord to a GORM model.KillCam.
func KillCamFromCore(k core.KillRecord) KillCam {
	return KillCam{
		ID:             k.ID,
		Time:           k.Time,
		SessionID:      k.SessionID,
		HostTime:       k.HostTime,
		Variant:        string(k.Variant),
		TargetRef:      string(k.TargetRef),
		TargetName:     k.TargetName,
		Distance:       k.Distance,
		Angle:          k.Angle,
		Lateral:        k.Lateral,
		ShotDelay:      k.ShotDelay,
		Headshot:       k.Headshot,
		Scoped:         k.Scoped,
		Damage:         k.Damage,
		StartPosition:  geo.PointFromVec3(k.StartPos),
		EndPosition:    geo.PointFromVec3(k.EndPos),
		TargetPosition: geo.PointFromVec3(k.TargetPos),
		Path:           geo.PathLine(k.StartPos, k.EndPos),
	}
}

// ToCore converts the row back. scene is not stored per row and is taken
// from the session when loaded.
func (k KillCam) ToCore() core.KillRecord {
	out := core.KillRecord{
		ID:         k.ID,
		SessionID:  k.SessionID,
		Scene:      k.Session.Scene,
		Time:       k.Time,
		HostTime:   k.HostTime,
		Variant:    core.Variant(k.Variant),
		TargetRef:  core.EntityRef(k.TargetRef),
		TargetName: k.TargetName,
		Distance:   k.Distance,
		Angle:      k.Angle,
		Lateral:    k.Lateral,
		ShotDelay:  k.ShotDelay,
		Headshot:   k.Headshot,
		Scoped:     k.Scoped,
		Damage:     k.Damage,
	}
	out.StartPos, _ = geo.Vec3FromPoint(k.StartPosition)
	out.EndPos, _ = geo.Vec3FromPoint(k.EndPosition)
	out.TargetPos, _ = geo.Vec3FromPoint(k.TargetPosition)
	return out
}

// RejectionFromCore converts a core.Rejection to a GORM model.Rejection.
func RejectionFromCore(r core.Rejection) Rejection {
	m, _ := json.Marshal(measures{Angle: r.Angle, Lateral: r.Lateral, ShotDelay: r.ShotDelay})
	return Rejection{
		ID:             r.ID,
		Time:           r.Time,
		SessionID:      r.SessionID,
		HostTime:       r.HostTime,
		Variant:        string(r.Variant),
		TargetName:     r.TargetName,
		Reason:         r.Reason,
		Distance:       r.Distance,
		Measures:       datatypes.JSON(m),
		TargetPosition: geo.PointFromVec3(r.TargetPos),
	}
}

// ToCore converts the row back.
func (r Rejection) ToCore() core.Rejection {
	out := core.Rejection{
		ID:         r.ID,
		SessionID:  r.SessionID,
		Scene:      r.Session.Scene,
		Time:       r.Time,
		HostTime:   r.HostTime,
		Variant:    core.Variant(r.Variant),
		TargetName: r.TargetName,
		Reason:     r.Reason,
		Distance:   r.Distance,
	}
	var m measures
	if len(r.Measures) > 0 && json.Unmarshal(r.Measures, &m) == nil {
		out.Angle, out.Lateral, out.ShotDelay = m.Angle, m.Lateral, m.ShotDelay
	}
	out.TargetPos, _ = geo.Vec3FromPoint(r.TargetPosition)
	return out
}
