// Package monitor periodically writes the director counters to a status file
// in the addon folder and, when configured, to a metrics sink.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/killcam/internal/director"
)

// StatusFileName is the file written into the addon folder.
const StatusFileName = "killcam_status.json"

// StatsSource provides the counters to report.
type StatsSource interface {
	Stats() director.Stats
}

// StatsSink receives every snapshot, e.g. the influx manager.
type StatsSink interface {
	RecordStats(s director.Stats) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source      StatsSource
	Sink        StatsSink
	Logger      *slog.Logger
	AddonFolder string
	Interval    time.Duration
}

// Status is the content of the status file.
type Status struct {
	Time      time.Time      `json:"time"`
	Uptime    string         `json:"uptime"`
	Director  director.Stats `json:"director"`
	Extension string         `json:"extension,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	started   time.Time
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
	version   string
}

// NewService creates a new monitor service
func NewService(deps Dependencies, version string) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:    deps,
		started: time.Now(),
		version: version,
	}
}

// Path returns the status file location.
func (s *Service) Path() string {
	return filepath.Join(s.deps.AddonFolder, StatusFileName)
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot builds the current status.
func (s *Service) Snapshot() Status {
	now := time.Now()
	return Status{
		Time:      now.UTC(),
		Uptime:    now.Sub(s.started).Round(time.Second).String(),
		Director:  s.deps.Source.Stats(),
		Extension: s.version,
	}
}

// WriteOnce writes one snapshot to the status file and the sink.
func (s *Service) WriteOnce() error {
	status := s.Snapshot()

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding status: %w", err)
	}
	if err := os.WriteFile(s.Path(), data, 0644); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}

	if s.deps.Sink != nil {
		if err := s.deps.Sink.RecordStats(status.Director); err != nil {
			return fmt.Errorf("error recording stats: %w", err)
		}
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "path", s.Path())

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteOnce(); err != nil {
					logger.Error("Error writing status", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
}
