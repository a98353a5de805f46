// Package handlers serves the lifecycle commands of the extension: version,
// scene load and unload, status and host-side logging.
package handlers

import (
	"fmt"
	"strings"
	"sync"

	"github.com/OCAP2/killcam/internal/director"
	"github.com/OCAP2/killcam/internal/dispatcher"
	"github.com/OCAP2/killcam/internal/host"
	"github.com/OCAP2/killcam/internal/logging"
	"github.com/OCAP2/killcam/internal/parser"
	"github.com/OCAP2/killcam/internal/util"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Director         *director.Director
	Frames           *host.FrameHost
	Parser           *parser.Parser
	LogManager       *logging.SlogManager
	ExtensionName    string
	ExtensionVersion string
	BuildDate        string
}

// SceneReply answers :SCENE:LOAD:.
type SceneReply struct {
	Scene     string   `json:"scene"`
	Session   string   `json:"session"`
	TimeScale *float64 `json:"timeScale,omitempty"`
}

// Service provides the lifecycle handler methods.
type Service struct {
	deps         Dependencies
	mu           *sync.Mutex
	writeLogFunc func(functionName, data, level string)

	verMu        sync.RWMutex
	addonVersion string
}

// NewService creates a new handler service. lock must be the one the
// gameplay handlers run under.
func NewService(deps Dependencies, lock *sync.Mutex) *Service {
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(nil)
	}
	if lock == nil {
		lock = &sync.Mutex{}
	}
	s := &Service{
		deps:         deps,
		mu:           lock,
		addonVersion: "unknown",
	}
	s.writeLogFunc = func(functionName, data, level string) {
		if deps.LogManager != nil {
			deps.LogManager.WriteLog(functionName, data, level)
		}
	}
	return s
}

func (s *Service) writeLog(functionName, data, level string) {
	s.writeLogFunc(functionName, data, level)
}

// RegisterHandlers registers the lifecycle commands.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(":VERSION:", func(e dispatcher.Event) (any, error) {
		return s.Version(), nil
	})
	d.Register(":ADDON:VERSION:", func(e dispatcher.Event) (any, error) {
		return "ok", s.SetAddonVersion(e.Args)
	})
	d.Register(":SCENE:LOAD:", func(e dispatcher.Event) (any, error) {
		return s.LoadScene(e.Args)
	}, dispatcher.Exclusive(s.mu), dispatcher.Guarded(), dispatcher.Logged())
	d.Register(":UNLOAD:", func(e dispatcher.Event) (any, error) {
		return s.Unload(), nil
	}, dispatcher.Exclusive(s.mu), dispatcher.Guarded(), dispatcher.Logged())
	d.Register(":STATUS:", func(e dispatcher.Event) (any, error) {
		return s.Status(), nil
	})
	d.Register(":LOG:", func(e dispatcher.Event) (any, error) {
		return nil, s.HostLog(e.Args)
	}, dispatcher.Buffered(1000))
}

// Version returns the extension version and build date.
func (s *Service) Version() []string {
	return []string{s.deps.ExtensionVersion, s.deps.BuildDate}
}

// AddonVersion returns the version last reported by the host addon.
func (s *Service) AddonVersion() string {
	s.verMu.RLock()
	defer s.verMu.RUnlock()
	return s.addonVersion
}

// SetAddonVersion records the host addon version.
func (s *Service) SetAddonVersion(data []string) error {
	if len(data) == 0 {
		return fmt.Errorf("addon version: %w", parser.ErrTooFewArguments)
	}
	v := util.FixEscapeQuotes(util.TrimQuotes(data[0]))

	s.verMu.Lock()
	s.addonVersion = v
	s.verMu.Unlock()

	s.writeLog(":ADDON:VERSION:", fmt.Sprintf("Addon version %s", v), "INFO")
	return nil
}

// LoadScene resets the director for a new scene and starts a journal session.
func (s *Service) LoadScene(data []string) (SceneReply, error) {
	functionName := ":SCENE:LOAD:"

	name, err := s.deps.Parser.ParseSceneLoad(data)
	if err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error parsing scene: %v`, err), "ERROR")
		return SceneReply{}, err
	}

	sc := s.deps.Director.LoadScene(name)
	out := SceneReply{
		Scene:     sc.Name,
		Session:   sc.SessionID,
		TimeScale: s.deps.Frames.Directives(false).TimeScale,
	}
	s.writeLog(functionName, fmt.Sprintf(`Scene "%s" loaded, session %s`, sc.Name, sc.SessionID), "INFO")
	return out, nil
}

// Unload stops any kill-cam, restores the time scale and ends the session.
// The reply carries the restored time scale when one was changed.
func (s *Service) Unload() host.Directives {
	s.deps.Director.Close()
	s.writeLog(":UNLOAD:", "Scene unloaded", "INFO")
	return s.deps.Frames.Directives(false)
}

// Status returns the director counters.
func (s *Service) Status() director.Stats {
	return s.deps.Director.Stats()
}

// HostLog forwards a log line from the host: [functionName, message, level?].
func (s *Service) HostLog(data []string) error {
	if len(data) < 2 {
		return fmt.Errorf("log: %w", parser.ErrTooFewArguments)
	}
	util.CleanArgs(data)
	level := "INFO"
	if len(data) > 2 && strings.TrimSpace(data[2]) != "" {
		level = strings.ToUpper(strings.TrimSpace(data[2]))
	}
	s.writeLog(data[0], data[1], level)
	return nil
}
