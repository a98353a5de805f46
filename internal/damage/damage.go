// Package damage applies shot damage to a target's health, either through
// the Damageable capability or by probing the target's components for
// health-like members.
package damage

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/OCAP2/killcam/pkg/core"
)

const (
	// BodyMultiplier scales base damage for body hits.
	BodyMultiplier = 0.99
	// HeadMultiplier scales base damage for head hits.
	HeadMultiplier = 3.0
)

var (
	// ErrNoHealth is returned when the target exposes nothing health-like.
	ErrNoHealth = errors.New("no health member found")
	// ErrNoNotifier is returned by NotifyKill when the target has no kill or
	// damage method. Callers log it and carry on.
	ErrNoNotifier = errors.New("no kill notification method")
	// ErrBadDamage is returned for NaN or infinite base damage.
	ErrBadDamage = errors.New("base damage is not finite")
)

// Damageable is a target whose health can be read and written.
type Damageable interface {
	Health() float64
	MaxHealth() float64
	SetHealth(v float64) error
	// NotifyKill tells the target it died from damage.
	NotifyKill(damage float64) error
}

// Result is the outcome of ApplyShot.
type Result struct {
	Killed   bool
	Damage   float64
	Before   float64
	Health   float64
	Max      float64
	Headshot bool
}

// IsHeadCollider reports whether a collider name or tag marks a head hit.
func IsHeadCollider(name, tag string) bool {
	return strings.Contains(strings.ToLower(name), "head") ||
		strings.Contains(strings.ToLower(tag), "head")
}

// FinalDamage applies the body or head multiplier.
func FinalDamage(base float64, head bool) float64 {
	if head {
		return base * HeadMultiplier
	}
	return base * BodyMultiplier
}

// Adapter resolves targets to Damageable and applies shots.
type Adapter struct {
	logger *slog.Logger
	cache  accessorCache
}

// NewAdapter creates an adapter logging through logger.
func NewAdapter(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger}
}

// Resolve returns the Damageable for target. Explicit implementations win;
// otherwise the target's components are probed by name.
func (a *Adapter) Resolve(target any) (Damageable, error) {
	if d, ok := target.(Damageable); ok {
		return d, nil
	}
	return a.probe(Candidates(target))
}

// ApplyShot subtracts the final damage from the target's health and notifies
// the target when it reaches zero. Nothing is written when no health member
// is found.
func (a *Adapter) ApplyShot(target any, hitPoint core.Vec3, baseDamage float64, head bool) (Result, error) {
	if math.IsNaN(baseDamage) || math.IsInf(baseDamage, 0) {
		return Result{}, fmt.Errorf("%w: %v", ErrBadDamage, baseDamage)
	}

	d, err := a.Resolve(target)
	if err != nil {
		a.logger.Warn("Health adapter skipped", "error", err)
		return Result{}, err
	}

	res := Result{
		Damage:   FinalDamage(baseDamage, head),
		Before:   d.Health(),
		Max:      d.MaxHealth(),
		Headshot: head,
	}
	res.Health = math.Max(0, res.Before-res.Damage)

	if err := d.SetHealth(res.Health); err != nil {
		return Result{}, fmt.Errorf("failed to write health: %w", err)
	}

	a.logger.Debug("Shot applied",
		"hitPoint", hitPoint,
		"damage", res.Damage,
		"before", res.Before,
		"after", res.Health,
		"headshot", head)

	if res.Health > 0 {
		return res, nil
	}
	res.Killed = true

	if err := d.NotifyKill(res.Damage); err != nil {
		a.logger.Info("Kill notification skipped", "error", err)
	}
	return res, nil
}
