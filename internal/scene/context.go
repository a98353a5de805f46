// Package scene tracks the loaded host scene and the kill-cam session that
// belongs to it.
package scene

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NoScene is the scene name before the host reports one.
const NoScene = "No scene loaded"

// Scene is one loaded host scene. SessionID changes on every load so journal
// rows of two visits to the same scene stay apart.
type Scene struct {
	Name      string
	SessionID string
	LoadedAt  time.Time
}

// Context holds the current scene.
type Context struct {
	mu    sync.RWMutex
	scene Scene
}

// NewContext creates a Context with a placeholder scene and a fresh session.
func NewContext() *Context {
	return &Context{
		scene: Scene{
			Name:      NoScene,
			SessionID: uuid.NewString(),
			LoadedAt:  time.Now(),
		},
	}
}

// Get returns the current scene.
func (c *Context) Get() Scene {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scene
}

// Load replaces the current scene and starts a new session.
func (c *Context) Load(name string) Scene {
	if name == "" {
		name = NoScene
	}
	s := Scene{
		Name:      name,
		SessionID: uuid.NewString(),
		LoadedAt:  time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.scene = s
	return s
}

// Attrs returns the scene as log attributes.
func (c *Context) Attrs() []slog.Attr {
	s := c.Get()
	return []slog.Attr{
		slog.String("scene", s.Name),
		slog.String("session", s.SessionID),
	}
}
