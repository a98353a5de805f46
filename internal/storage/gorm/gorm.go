// Package gormstorage implements the storage.Backend interface on GORM with
// internal queues and a background DB writer goroutine. It serves both the
// Postgres journal and, wrapped by sqlitestorage, the embedded one.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/killcam/internal/database"
	"github.com/OCAP2/killcam/internal/model"
	"github.com/OCAP2/killcam/internal/queue"
	"github.com/OCAP2/killcam/pkg/core"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultFlushInterval is how often queued rows are written.
const DefaultFlushInterval = 2 * time.Second

// DefaultQueueLimit bounds each queue while the database is unreachable.
const DefaultQueueLimit = 10000

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
	QueueLimit    int
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Sessions   *queue.Queue[model.Session]
	Kills      *queue.Queue[model.KillCam]
	Rejections *queue.Queue[model.Rejection]
}

func newQueues(limit int) *queues {
	return &queues{
		Sessions:   queue.NewBounded[model.Session](limit),
		Kills:      queue.NewBounded[model.KillCam](limit),
		Rejections: queue.NewBounded[model.Rejection](limit),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	queues *queues

	mu      sync.Mutex
	current string
	known   map[string]struct{}

	// serializes flushes between the writer goroutine and callers
	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	closed   bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.QueueLimit <= 0 {
		deps.QueueLimit = DefaultQueueLimit
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(deps.QueueLimit),
		known:  make(map[string]struct{}),
	}
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend: no database")
	}
	if err := database.Setup(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close ends the open session, stops the writer and flushes what is left.
func (b *Backend) Close() error {
	err := b.EndSession()

	b.mu.Lock()
	if b.closed || b.stopChan == nil {
		b.mu.Unlock()
		return err
	}
	b.closed = true
	b.mu.Unlock()

	close(b.stopChan)
	<-b.done
	return errors.Join(err, b.Flush())
}

// StartSession ends the open session and writes s right away, so rows that
// follow can reference it.
func (b *Backend) StartSession(s *core.Session) error {
	if err := b.EndSession(); err != nil {
		b.deps.Logger.Warn("Failed to end previous session", "error", err)
	}

	row := model.SessionFromCore(*s)
	if err := b.deps.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	b.mu.Lock()
	b.current = s.ID
	b.known[s.ID] = struct{}{}
	b.mu.Unlock()

	b.deps.Logger.Debug("Session started", "session", s.ID, "scene", s.Scene)
	return nil
}

// EndSession flushes queued rows and stamps the open session's end time.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	id := b.current
	b.current = ""
	b.mu.Unlock()

	if id == "" {
		return nil
	}

	flushErr := b.Flush()
	err := b.deps.DB.Model(&model.Session{}).
		Where("id = ? AND ended_at IS NULL", id).
		Update("ended_at", time.Now()).Error
	if err != nil {
		err = fmt.Errorf("failed to end session: %w", err)
	}
	return errors.Join(flushErr, err)
}

// RecordKill queues k for the next flush.
func (b *Backend) RecordKill(k *core.KillRecord) error {
	b.ensureSession(k.SessionID, k.Scene)
	if n := b.queues.Kills.Push(model.KillCamFromCore(*k)); n > 0 {
		b.deps.Logger.Warn("Kill queue full, dropped rows", "dropped", n)
	}
	return nil
}

// RecordRejection queues r for the next flush.
func (b *Backend) RecordRejection(r *core.Rejection) error {
	b.ensureSession(r.SessionID, r.Scene)
	if n := b.queues.Rejections.Push(model.RejectionFromCore(*r)); n > 0 {
		b.deps.Logger.Warn("Rejection queue full, dropped rows", "dropped", n)
	}
	return nil
}

// ensureSession queues a session row for ids that were never started, such
// as the placeholder session before the first scene load.
func (b *Backend) ensureSession(id, scene string) {
	if id == "" {
		return
	}
	b.mu.Lock()
	_, ok := b.known[id]
	if !ok {
		b.known[id] = struct{}{}
	}
	b.mu.Unlock()

	if !ok {
		b.queues.Sessions.Push(model.Session{ID: id, Scene: scene, StartedAt: time.Now()})
	}
}

func (b *Backend) writeLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("Failed to write journal rows", "error", err)
			}
		}
	}
}

// Flush writes every queued row. Rows of a failed write are put back.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	db := b.deps.DB
	var errs []error

	if rows := b.queues.Sessions.GetAndEmpty(); len(rows) > 0 {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			b.queues.Sessions.Requeue(rows...)
			// kills and rejections would fail their foreign key
			return fmt.Errorf("failed to insert sessions: %w", err)
		}
	}

	if rows := b.queues.Kills.GetAndEmpty(); len(rows) > 0 {
		start := time.Now()
		if err := db.Omit(clause.Associations).CreateInBatches(&rows, 500).Error; err != nil {
			b.queues.Kills.Requeue(rows...)
			errs = append(errs, fmt.Errorf("failed to insert kills: %w", err))
		} else {
			b.deps.Logger.Debug("Wrote kills", "count", len(rows), "duration", time.Since(start))
		}
	}

	if rows := b.queues.Rejections.GetAndEmpty(); len(rows) > 0 {
		if err := db.Omit(clause.Associations).CreateInBatches(&rows, 500).Error; err != nil {
			b.queues.Rejections.Requeue(rows...)
			errs = append(errs, fmt.Errorf("failed to insert rejections: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Sessions returns all sessions, oldest first.
func (b *Backend) Sessions() ([]core.Session, error) {
	var rows []model.Session
	if err := b.deps.DB.Order("started_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.Session, len(rows))
	for i, r := range rows {
		out[i] = r.ToCore()
	}
	return out, nil
}

// Kills returns the written kills of a session. An empty id returns all.
func (b *Backend) Kills(sessionID string) ([]core.KillRecord, error) {
	var rows []model.KillCam
	q := b.deps.DB.Preload("Session").Order("id")
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.KillRecord, len(rows))
	for i, r := range rows {
		out[i] = r.ToCore()
	}
	return out, nil
}

// Rejections returns the written rejections of a session. An empty id
// returns all.
func (b *Backend) Rejections(sessionID string) ([]core.Rejection, error) {
	var rows []model.Rejection
	q := b.deps.DB.Preload("Session").Order("id")
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]core.Rejection, len(rows))
	for i, r := range rows {
		out[i] = r.ToCore()
	}
	return out, nil
}
