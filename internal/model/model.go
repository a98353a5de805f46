package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&Session{},
	&KillCam{},
	&Rejection{},
}

// Session is one visit to a host scene. The ID is the scene context's
// session UUID.
type Session struct {
	ID        string       `json:"id" gorm:"primarykey;size:36"`
	Scene     string       `json:"scene" gorm:"size:128;index:idx_session_scene"`
	StartedAt time.Time    `json:"startedAt"`
	EndedAt   sql.NullTime `json:"endedAt"`
}

func (*Session) TableName() string {
	return "sessions"
}

// KillCam is a kill that started a kill-cam.
//
// Command: :FRAME: (presence variant) or :HIT: (direct-hit variant)
type KillCam struct {
	ID         uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time       time.Time `json:"time"`
	SessionID  string    `json:"sessionId" gorm:"size:36;index:idx_killcam_session_id"`
	Session    Session   `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	HostTime   float64   `json:"hostTime"`
	Variant    string    `json:"variant" gorm:"size:16;index:idx_killcam_variant"`
	TargetRef  string    `json:"targetRef" gorm:"size:64"`
	TargetName string    `json:"targetName" gorm:"size:128"`
	Distance   float64   `json:"distance" gorm:"index:idx_killcam_distance"`
	Angle      float64   `json:"angle"`
	Lateral    float64   `json:"lateral"`
	ShotDelay  float64   `json:"shotDelay"`
	Headshot   bool      `json:"headshot"`
	Scoped     bool      `json:"scoped"`
	Damage     float64   `json:"damage"`

	StartPosition  geom.Point      `json:"startPos"`  // Bullet start, just ahead of the camera
	EndPosition    geom.Point      `json:"endPos"`    // Stop point short of the head
	TargetPosition geom.Point      `json:"targetPos"` // Last known target position
	Path           geom.LineString `json:"path"`      // Camera flight
}

func (*KillCam) TableName() string {
	return "killcams"
}

// Rejection is a kill candidate that did not start a kill-cam. Measures holds
// only the values computed before the candidate was rejected.
type Rejection struct {
	ID             uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time           time.Time      `json:"time"`
	SessionID      string         `json:"sessionId" gorm:"size:36;index:idx_rejection_session_id"`
	Session        Session        `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	HostTime       float64        `json:"hostTime"`
	Variant        string         `json:"variant" gorm:"size:16"`
	TargetName     string         `json:"targetName" gorm:"size:128"`
	Reason         string         `json:"reason" gorm:"size:64;index:idx_rejection_reason"`
	Distance       float64        `json:"distance"`
	Measures       datatypes.JSON `json:"measures" gorm:"default:'{}'"`
	TargetPosition geom.Point     `json:"targetPos"`
}

func (*Rejection) TableName() string {
	return "rejections"
}
