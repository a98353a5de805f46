package damage

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Kind is the numeric kind of a method parameter.
type Kind int

const (
	KindOther Kind = iota
	KindFloat
	KindInt
)

// Method describes a callable member of an Object.
type Method struct {
	Name   string
	Params []Kind
}

// Object is a component whose members are reachable by name.
type Object interface {
	TypeName() string
	// Numbers lists readable numeric members in a stable order.
	Numbers() []string
	Number(name string) (float64, bool)
	// SetNumber writes a numeric member, rounding for integral members.
	SetNumber(name string, v float64) error
	Methods() []Method
	Call(name string, args ...float64) error
}

// Hierarchy lists the components to probe, nearest first: the struck object,
// its siblings, then its ancestors.
type Hierarchy interface {
	Candidates() []Object
}

// ErrReadOnly is returned when a probed member cannot be written.
var ErrReadOnly = errors.New("member is read-only")

var (
	currentKeys = []string{"current", "cur", "health"}
	maxKeys     = []string{"max", "health"}
	killKeys    = []string{"kill", "die", "death"}
	damageKeys  = []string{"damage", "hit"}
)

// Candidates returns the probe order for any supported target.
func Candidates(target any) []Object {
	switch t := target.(type) {
	case nil:
		return nil
	case Hierarchy:
		return t.Candidates()
	case Object:
		return []Object{t}
	default:
		return reflectCandidates(target)
	}
}

// accessorCache remembers the chosen members of the last probed type.
type accessorCache struct {
	typeName string
	current  string
	max      string
}

func (a *Adapter) probe(candidates []Object) (Damageable, error) {
	for _, obj := range candidates {
		if !strings.Contains(strings.ToLower(obj.TypeName()), "health") {
			continue
		}

		current, maxName, ok := a.accessors(obj)
		if !ok {
			continue
		}
		return &probed{obj: obj, current: current, max: maxName, logger: a.logger}, nil
	}
	return nil, ErrNoHealth
}

func (a *Adapter) accessors(obj Object) (current, maxName string, ok bool) {
	if a.cache.typeName == obj.TypeName() {
		if _, found := obj.Number(a.cache.current); found {
			return a.cache.current, a.cache.max, true
		}
	}

	names := obj.Numbers()
	current = pick(names, currentKeys, func(n string) bool {
		return !strings.Contains(strings.ToLower(n), "max")
	})
	if current == "" {
		return "", "", false
	}
	maxName = pick(names, maxKeys, func(n string) bool { return n != current })

	a.cache = accessorCache{typeName: obj.TypeName(), current: current, max: maxName}
	a.logger.Debug("Health accessors cached",
		"type", obj.TypeName(),
		"current", current,
		"max", maxName)
	return current, maxName, true
}

// pick returns the first name containing the earliest key in keys.
func pick(names, keys []string, allow func(string) bool) string {
	for _, key := range keys {
		for _, n := range names {
			if strings.Contains(strings.ToLower(n), key) && allow(n) {
				return n
			}
		}
	}
	return ""
}

// probed adapts a name-probed Object to Damageable.
type probed struct {
	obj     Object
	current string
	max     string
	logger  *slog.Logger
}

func (p *probed) Health() float64 {
	v, _ := p.obj.Number(p.current)
	return v
}

func (p *probed) MaxHealth() float64 {
	if p.max == "" {
		return 0
	}
	v, _ := p.obj.Number(p.max)
	return v
}

func (p *probed) SetHealth(v float64) error {
	if err := p.obj.SetNumber(p.current, v); err != nil {
		return fmt.Errorf("%s.%s: %w", p.obj.TypeName(), p.current, err)
	}
	return nil
}

func (p *probed) NotifyKill(damage float64) error {
	methods := p.obj.Methods()

	for _, key := range killKeys {
		for _, m := range methods {
			if len(m.Params) == 0 && strings.Contains(strings.ToLower(m.Name), key) {
				p.logger.Debug("Invoking kill method", "type", p.obj.TypeName(), "method", m.Name)
				return p.obj.Call(m.Name)
			}
		}
	}

	for _, key := range damageKeys {
		for _, m := range methods {
			if len(m.Params) != 1 || m.Params[0] == KindOther {
				continue
			}
			if !strings.Contains(strings.ToLower(m.Name), key) {
				continue
			}
			arg := damage
			if m.Params[0] == KindInt {
				arg = math.Round(damage)
			}
			p.logger.Debug("Invoking damage method", "type", p.obj.TypeName(), "method", m.Name, "arg", arg)
			return p.obj.Call(m.Name, arg)
		}
	}

	return fmt.Errorf("%s: %w", p.obj.TypeName(), ErrNoNotifier)
}
