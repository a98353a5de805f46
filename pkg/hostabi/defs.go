// Package hostabi exposes the extension to the game as C entry points.
//
// The host calls KillCamVersion once after loading the library, KillCamArgs
// once per frame and for lifecycle commands, and KillCamRegisterRaycast when
// it can answer occlusion queries.
package hostabi

import (
	"sync"

	"github.com/OCAP2/killcam/internal/dispatcher"
	"github.com/OCAP2/killcam/internal/host"
)

// configStruct is the central configuration used by this library
type configStruct struct {
	mu sync.RWMutex

	// version is returned by KillCamVersion
	version string

	// dispatcher handles event routing
	dispatcher *dispatcher.Dispatcher

	// onPhysics receives the probe built from a registered raycast callback
	onPhysics func(host.Physics)
}

// Config defines how calls to this extension will be handled
var Config = &configStruct{version: "No version set"}

// SetVersion sets the version string returned by KillCamVersion.
func SetVersion(version string) {
	Config.mu.Lock()
	defer Config.mu.Unlock()
	Config.version = version
}

// SetDispatcher sets the event dispatcher for handling commands
func SetDispatcher(d *dispatcher.Dispatcher) {
	Config.mu.Lock()
	defer Config.mu.Unlock()
	Config.dispatcher = d
}

// GetDispatcher returns the configured dispatcher, or nil if not set
func GetDispatcher() *dispatcher.Dispatcher {
	Config.mu.RLock()
	defer Config.mu.RUnlock()
	return Config.dispatcher
}

// OnPhysics sets the function that installs a registered raycast probe,
// usually FrameHost.SetPhysics.
func OnPhysics(fn func(host.Physics)) {
	Config.mu.Lock()
	defer Config.mu.Unlock()
	Config.onPhysics = fn
}

func (c *configStruct) getVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *configStruct) installPhysics(p host.Physics) bool {
	c.mu.RLock()
	fn := c.onPhysics
	c.mu.RUnlock()
	if fn == nil {
		return false
	}
	fn(p)
	return true
}
