// Package influx writes kill-cam measurements to InfluxDB, or to a gzipped
// line protocol backup file when the server cannot be reached.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/killcam/internal/config"
	"github.com/OCAP2/killcam/internal/director"
	"github.com/OCAP2/killcam/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

// Measurement names.
const (
	MeasurementKill      = "killcam"
	MeasurementRejection = "killcam_rejection"
	MeasurementSession   = "killcam_session"
	MeasurementDirector  = "killcam_director"
)

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	backupFile *os.File
	mu         sync.Mutex
	session    *core.Session
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		IsValid:    false,
		Logger:     log,
		BackupPath: backupPath,
		cfg:        cfg,
	}
}

// Connect establishes a connection to InfluxDB. An unreachable server
// switches the manager to the backup file.
func (m *Manager) Connect() error {
	if !m.cfg.Enabled {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	running, err := m.Client.Ping(ctx)

	if err != nil || !running {
		m.IsValid = false
		if err := m.openBackup(); err != nil {
			return err
		}
		m.Logger.Warn().Str("backupPath", m.BackupPath).
			Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	if err := m.setupOrganizationAndBucket(); err != nil {
		return err
	}
	m.createWriter()
	m.IsValid = true
	m.Logger.Info().Str("url", m.cfg.URL()).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket() error {
	ctx := context.Background()
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure the bucket exists with 90 day retention
	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	errorsCh := m.Writer.Errors()
	go func() {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsValid {
		m.Writer.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
		m.Client = nil
	}
	m.IsValid = false
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// StartSession writes a session start marker.
func (m *Manager) StartSession(s *core.Session) error {
	m.mu.Lock()
	cp := *s
	m.session = &cp
	m.mu.Unlock()

	return m.WritePoint(SessionPoint(cp, "start", cp.StartedAt))
}

// EndSession writes a session end marker once per session.
func (m *Manager) EndSession() error {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}
	return m.WritePoint(SessionPoint(*s, "end", time.Now()))
}

// RecordKill writes k.
func (m *Manager) RecordKill(k *core.KillRecord) error {
	return m.WritePoint(KillPoint(*k))
}

// RecordRejection writes r.
func (m *Manager) RecordRejection(r *core.Rejection) error {
	return m.WritePoint(RejectionPoint(*r))
}

// RecordStats writes a director counter snapshot.
func (m *Manager) RecordStats(s director.Stats) error {
	return m.WritePoint(StatsPoint(s, time.Now()))
}

var _ director.Journal = (*Manager)(nil)

// SessionPoint is a session start or end marker.
func SessionPoint(s core.Session, event string, at time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementSession,
		map[string]string{
			"scene":   s.Scene,
			"session": s.ID,
			"event":   event,
		},
		map[string]any{
			"count": 1,
		},
		at,
	)
}

// KillPoint converts a kill to a point.
func KillPoint(k core.KillRecord) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementKill,
		map[string]string{
			"scene":    k.Scene,
			"session":  k.SessionID,
			"variant":  string(k.Variant),
			"headshot": fmt.Sprint(k.Headshot),
			"scoped":   fmt.Sprint(k.Scoped),
		},
		map[string]any{
			"target":    k.TargetName,
			"distance":  k.Distance,
			"angle":     k.Angle,
			"lateral":   k.Lateral,
			"shotDelay": k.ShotDelay,
			"damage":    k.Damage,
		},
		k.Time,
	)
}

// RejectionPoint converts a rejection to a point.
func RejectionPoint(r core.Rejection) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementRejection,
		map[string]string{
			"scene":   r.Scene,
			"session": r.SessionID,
			"variant": string(r.Variant),
			"reason":  r.Reason,
		},
		map[string]any{
			"target":    r.TargetName,
			"distance":  r.Distance,
			"angle":     r.Angle,
			"lateral":   r.Lateral,
			"shotDelay": r.ShotDelay,
		},
		r.Time,
	)
}

// StatsPoint converts director counters to a point.
func StatsPoint(s director.Stats, at time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementDirector,
		map[string]string{
			"scene":   s.Scene,
			"session": s.Session,
		},
		map[string]any{
			"frames":         int64(s.Frames),
			"shots":          int64(s.Shots),
			"scans":          int64(s.Scans),
			"disappearances": int64(s.Disappearances),
			"hits":           int64(s.Hits),
			"killcams":       int64(s.KillCams),
			"rejections":     int64(s.Rejections),
			"playing":        s.Playing,
		},
		at,
	)
}
