// Package storage defines the kill journal backends.
package storage

import "github.com/OCAP2/killcam/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management. EndSession may be called more than once.
	StartSession(s *core.Session) error
	EndSession() error

	// Journal rows
	RecordKill(k *core.KillRecord) error
	RecordRejection(r *core.Rejection) error
}

// Reader is an optional interface for backends that can list what they
// recorded.
type Reader interface {
	Sessions() ([]core.Session, error)
	Kills(sessionID string) ([]core.KillRecord, error)
	Rejections(sessionID string) ([]core.Rejection, error)
}
