// Package worker runs the gameplay commands of the host frame path.
package worker

import (
	"log/slog"
	"sync"

	"github.com/OCAP2/killcam/internal/director"
	"github.com/OCAP2/killcam/internal/host"
	"github.com/OCAP2/killcam/internal/parser"
	"github.com/OCAP2/killcam/pkg/core"
)

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Director *director.Director
	Frames   *host.FrameHost
	Parser   *parser.Parser
	Logger   *slog.Logger
}

// Manager feeds host frames and hits into the director.
type Manager struct {
	deps Dependencies

	// serializes the frame path against lifecycle commands
	mu *sync.Mutex
}

// NewManager creates a new worker manager. lock is shared with every other
// handler that touches the director; nil gets a private one.
func NewManager(deps Dependencies, lock *sync.Mutex) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.Logger)
	}
	if lock == nil {
		lock = &sync.Mutex{}
	}
	return &Manager{deps: deps, mu: lock}
}

// Lock returns the lock gameplay handlers run under.
func (m *Manager) Lock() *sync.Mutex {
	return m.mu
}

// nameOf looks up the display name of ref in the current frame.
func (m *Manager) nameOf(ref core.EntityRef) string {
	for _, e := range m.deps.Frames.Characters() {
		if e.Ref == ref {
			return e.Name
		}
	}
	return ""
}
