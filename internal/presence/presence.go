// Package presence polls the world for characters and reports the ones that
// vanish between two scans. The host offers no destroy callback, so a
// character missing from the enumeration is the only death signal.
package presence

import (
	"log/slog"
	"math"
	"strings"

	"github.com/OCAP2/killcam/internal/host"
	"github.com/OCAP2/killcam/pkg/core"
)

// ScanInterval is the wall-clock period between two scans, in seconds.
const ScanInterval = 0.25

// DefaultCharacterType is the type-name marker identifying characters.
const DefaultCharacterType = "CharacterMainControl"

// Tracked is one non-player character seen by the tracker.
type Tracked struct {
	Ref             core.EntityRef
	LastPosition    core.Vec3
	LastName        string
	PresentLastScan bool
	PresentThisScan bool
}

// Tracker holds the tracked characters and the player handle.
type Tracker struct {
	characterType string
	logger        *slog.Logger

	tracked  []*Tracked
	player   core.EntityRef
	// player came from the host rather than the nearest-to-camera guess
	explicit bool
	timer    float64
}

// NewTracker creates a tracker matching characters whose type name contains
// characterType. An empty characterType uses DefaultCharacterType.
func NewTracker(characterType string, logger *slog.Logger) *Tracker {
	if characterType == "" {
		characterType = DefaultCharacterType
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		characterType: characterType,
		logger:        logger,
	}
}

// Player returns the player handle, empty until one was chosen.
func (t *Tracker) Player() core.EntityRef {
	return t.player
}

// Tracked returns a copy of the tracked entries in insertion order.
func (t *Tracker) Tracked() []Tracked {
	out := make([]Tracked, 0, len(t.tracked))
	for _, te := range t.tracked {
		out = append(out, *te)
	}
	return out
}

// Reset forgets every tracked entry and the player handle.
func (t *Tracker) Reset() {
	t.tracked = nil
	t.player = ""
	t.explicit = false
	t.timer = 0
}

// Due advances the scan timer by the unscaled delta and reports whether a
// scan should run this tick.
func (t *Tracker) Due(unscaledDelta float64) bool {
	t.timer -= unscaledDelta
	if t.timer <= 0 {
		t.timer = ScanInterval
		return true
	}
	return false
}

// Scan enumerates the world once and returns the disappearances detected.
// cameraPos is used to guess the player when explicitPlayer is empty. An
// explicit player replaces a guessed one and is never replaced itself.
func (t *Tracker) Scan(world host.World, cameraPos core.Vec3, explicitPlayer core.EntityRef) []core.Disappearance {
	chars := t.characters(world)

	for _, te := range t.tracked {
		te.PresentThisScan = false
	}

	if explicitPlayer.IsSet() && !t.explicit {
		t.adoptPlayer(explicitPlayer)
	} else if !t.player.IsSet() {
		t.guessPlayer(chars, cameraPos)
	}

	for _, c := range chars {
		if c.Ref == t.player {
			continue
		}

		te := t.find(c.Ref)
		if te == nil {
			te = &Tracked{Ref: c.Ref, PresentLastScan: true}
			t.tracked = append(t.tracked, te)
			t.logger.Debug("Tracking character", "ref", c.Ref, "name", c.Name)
		}
		te.PresentThisScan = true
		te.LastPosition = c.Position
		te.LastName = c.Name
	}

	if !t.player.IsSet() {
		return nil
	}

	var gone []core.Disappearance
	kept := t.tracked[:0]
	for _, te := range t.tracked {
		if !te.PresentThisScan {
			if te.PresentLastScan {
				gone = append(gone, core.Disappearance{
					Ref:          te.Ref,
					LastPosition: te.LastPosition,
					LastName:     te.LastName,
				})
			}
			continue
		}
		te.PresentLastScan = true
		kept = append(kept, te)
	}
	clear(t.tracked[len(kept):])
	t.tracked = kept

	return gone
}

// characters filters the enumeration to valid, distinct characters.
func (t *Tracker) characters(world host.World) []core.Entity {
	all := world.Characters()
	out := make([]core.Entity, 0, len(all))
	seen := make(map[core.EntityRef]struct{}, len(all))

	for _, e := range all {
		if !e.Valid || !e.Ref.IsSet() {
			continue
		}
		if !strings.Contains(e.TypeName, t.characterType) {
			continue
		}
		if _, dup := seen[e.Ref]; dup {
			continue
		}
		seen[e.Ref] = struct{}{}
		out = append(out, e)
	}
	return out
}

func (t *Tracker) adoptPlayer(ref core.EntityRef) {
	if t.player.IsSet() && t.player != ref {
		t.logger.Info("Player handle replaced by host", "guessed", t.player, "ref", ref)
	} else {
		t.logger.Info("Player handle set by host", "ref", ref)
	}
	t.player = ref
	t.explicit = true
	t.drop(ref)
}

func (t *Tracker) guessPlayer(chars []core.Entity, cameraPos core.Vec3) {
	best := math.MaxFloat64
	for _, c := range chars {
		d := core.Distance(c.Position, cameraPos)
		if d < best {
			best = d
			t.player = c.Ref
		}
	}
	if t.player.IsSet() {
		t.drop(t.player)
		t.logger.Info("Player candidate detected", "ref", t.player, "distance", best)
	}
}

func (t *Tracker) find(ref core.EntityRef) *Tracked {
	for _, te := range t.tracked {
		if te.Ref == ref {
			return te
		}
	}
	return nil
}

func (t *Tracker) drop(ref core.EntityRef) {
	for i, te := range t.tracked {
		if te.Ref == ref {
			t.tracked = append(t.tracked[:i], t.tracked[i+1:]...)
			return
		}
	}
}
