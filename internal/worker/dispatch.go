package worker

import (
	"errors"
	"fmt"

	"github.com/OCAP2/killcam/internal/damage"
	"github.com/OCAP2/killcam/internal/director"
	"github.com/OCAP2/killcam/internal/dispatcher"
)

// HitReply is the answer to a :HIT: command. Writes and Calls are the
// component mutations the host must apply.
type HitReply struct {
	Killed  bool           `json:"killed"`
	Damage  float64        `json:"damage"`
	Health  float64        `json:"health"`
	Writes  []damage.Write `json:"writes"`
	Calls   []damage.Call  `json:"calls"`
	KillCam bool           `json:"killcam"`
	Skipped string         `json:"skipped,omitempty"`
}

// RegisterHandlers registers the gameplay commands. Both answer the host in
// the same call, so neither is buffered.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(":FRAME:", m.handleFrame, dispatcher.Exclusive(m.mu), dispatcher.Guarded())
	d.Register(":HIT:", m.handleHit, dispatcher.Exclusive(m.mu), dispatcher.Guarded(), dispatcher.Logged())
}

func (m *Manager) handleFrame(e dispatcher.Event) (any, error) {
	f, err := m.deps.Parser.ParseFrame(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse frame: %w", err)
	}

	m.deps.Frames.Begin(f)
	playing := m.deps.Director.Tick(f.Now)
	return m.deps.Frames.Directives(playing), nil
}

func (m *Manager) handleHit(e dispatcher.Event) (any, error) {
	h, err := m.deps.Parser.ParseHit(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hit: %w", err)
	}

	remote := damage.NewRemote(h.Components)
	out, err := m.deps.Director.Hit(director.HitRequest{
		Time:       h.Time,
		Ref:        h.Target,
		Name:       m.nameOf(h.Target),
		Target:     remote,
		Point:      h.Point,
		Collider:   h.Collider,
		Tag:        h.Tag,
		BaseDamage: h.BaseDamage,
	})
	if errors.Is(err, damage.ErrNoHealth) {
		return HitReply{Writes: []damage.Write{}, Calls: []damage.Call{}, Skipped: err.Error()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply hit: %w", err)
	}

	reply := HitReply{
		Killed:  out.Killed,
		Damage:  out.Damage,
		Health:  out.Health,
		Writes:  remote.Writes(),
		Calls:   remote.Calls(),
		KillCam: out.KillCam,
	}
	if reply.Writes == nil {
		reply.Writes = []damage.Write{}
	}
	if reply.Calls == nil {
		reply.Calls = []damage.Call{}
	}
	return reply, nil
}
