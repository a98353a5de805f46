// Package memory keeps the kill journal in process memory. It is the default
// backend and what the status handlers read back when no database is set up.
package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/OCAP2/killcam/internal/config"
	"github.com/OCAP2/killcam/pkg/core"
)

// Backend stores journal rows in memory, oldest first.
type Backend struct {
	cfg config.MemoryConfig

	sessions   []core.Session
	current    int // index into sessions, -1 when no session is open
	kills      []core.KillRecord
	rejections []core.Rejection

	idCounter uint
	mu        sync.RWMutex
}

// New creates a new memory backend. A non-positive MaxRows keeps everything.
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		current: -1,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close ends the open session.
func (b *Backend) Close() error {
	return b.EndSession()
}

// StartSession ends the open session, if any, and opens s.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.endLocked()
	b.sessions = append(b.sessions, *s)
	b.current = len(b.sessions) - 1
	return nil
}

// EndSession stamps the open session's end time.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.endLocked()
	return nil
}

func (b *Backend) endLocked() {
	if b.current < 0 {
		return
	}
	if b.sessions[b.current].EndedAt.IsZero() {
		b.sessions[b.current].EndedAt = time.Now()
	}
	b.current = -1
}

// RecordKill stores k and assigns its ID.
func (b *Backend) RecordKill(k *core.KillRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	k.ID = b.idCounter
	b.kills = trim(append(b.kills, *k), b.cfg.MaxRows)
	return nil
}

// RecordRejection stores r and assigns its ID.
func (b *Backend) RecordRejection(r *core.Rejection) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.idCounter++
	r.ID = b.idCounter
	b.rejections = trim(append(b.rejections, *r), b.cfg.MaxRows)
	return nil
}

// Sessions returns all sessions seen, oldest first.
func (b *Backend) Sessions() ([]core.Session, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.sessions), nil
}

// Kills returns the kills of a session. An empty id returns all kills.
func (b *Backend) Kills(sessionID string) ([]core.KillRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []core.KillRecord
	for _, k := range b.kills {
		if sessionID == "" || k.SessionID == sessionID {
			out = append(out, k)
		}
	}
	return out, nil
}

// Rejections returns the rejections of a session. An empty id returns all.
func (b *Backend) Rejections(sessionID string) ([]core.Rejection, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []core.Rejection
	for _, r := range b.rejections {
		if sessionID == "" || r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

// trim drops the oldest rows beyond limit.
func trim[T any](rows []T, limit int) []T {
	if limit <= 0 || len(rows) <= limit {
		return rows
	}
	return slices.Delete(rows, 0, len(rows)-limit)
}
