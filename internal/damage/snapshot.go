package damage

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
)

// ComponentSnapshot is a host component as sent with a hit. Depth 0 is the
// struck object and its siblings; ancestors count upwards.
type ComponentSnapshot struct {
	Type      string             `json:"type"`
	Fields    map[string]float64 `json:"fields"`
	IntFields []string           `json:"intFields,omitempty"`
	Methods   []MethodSnapshot   `json:"methods,omitempty"`
	Depth     int                `json:"depth"`
}

// MethodSnapshot is a host method signature. Params are "int", "float" or
// anything else for non-numeric parameters.
type MethodSnapshot struct {
	Name   string   `json:"name"`
	Params []string `json:"params"`
}

// Write is a field assignment the host must apply.
type Write struct {
	Component string  `json:"component"`
	Field     string  `json:"field"`
	Value     float64 `json:"value"`
}

// Call is a method invocation the host must perform.
type Call struct {
	Component string `json:"component"`
	Method    string `json:"method"`
	Args      []any  `json:"args"`
}

// ParseSnapshots decodes the component list of a hit command.
func ParseSnapshots(data []byte) ([]ComponentSnapshot, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var snaps []ComponentSnapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, fmt.Errorf("failed to parse components: %w", err)
	}
	return snaps, nil
}

// Remote is a Hierarchy over host component snapshots. Writes and calls are
// recorded for the reply instead of being executed.
type Remote struct {
	comps  []*remoteComponent
	writes []Write
	calls  []Call
}

// NewRemote orders snapshots nearest first.
func NewRemote(snaps []ComponentSnapshot) *Remote {
	r := &Remote{}
	for _, s := range snaps {
		fields := make(map[string]float64, len(s.Fields))
		for k, v := range s.Fields {
			fields[k] = v
		}
		r.comps = append(r.comps, &remoteComponent{remote: r, snap: s, fields: fields})
	}
	sort.SliceStable(r.comps, func(i, j int) bool {
		return r.comps[i].snap.Depth < r.comps[j].snap.Depth
	})
	return r
}

// Candidates implements Hierarchy.
func (r *Remote) Candidates() []Object {
	out := make([]Object, len(r.comps))
	for i, c := range r.comps {
		out[i] = c
	}
	return out
}

// Writes returns the recorded field writes.
func (r *Remote) Writes() []Write {
	return r.writes
}

// Calls returns the recorded method calls.
func (r *Remote) Calls() []Call {
	return r.calls
}

type remoteComponent struct {
	remote *Remote
	snap   ComponentSnapshot
	fields map[string]float64
}

func (c *remoteComponent) TypeName() string {
	return c.snap.Type
}

// Numbers returns field names sorted, since JSON objects carry no order.
func (c *remoteComponent) Numbers() []string {
	names := make([]string, 0, len(c.fields))
	for k := range c.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (c *remoteComponent) Number(name string) (float64, bool) {
	v, ok := c.fields[name]
	return v, ok
}

func (c *remoteComponent) SetNumber(name string, v float64) error {
	if _, ok := c.fields[name]; !ok {
		return ErrReadOnly
	}
	if slices.Contains(c.snap.IntFields, name) {
		v = math.Round(v)
	}
	c.fields[name] = v
	c.remote.writes = append(c.remote.writes, Write{Component: c.snap.Type, Field: name, Value: v})
	return nil
}

func (c *remoteComponent) Methods() []Method {
	out := make([]Method, 0, len(c.snap.Methods))
	for _, m := range c.snap.Methods {
		params := make([]Kind, len(m.Params))
		for i, p := range m.Params {
			params[i] = paramKind(p)
		}
		out = append(out, Method{Name: m.Name, Params: params})
	}
	return out
}

func (c *remoteComponent) Call(name string, args ...float64) error {
	idx := slices.IndexFunc(c.snap.Methods, func(m MethodSnapshot) bool { return m.Name == name })
	if idx < 0 {
		return fmt.Errorf("method %s not found", name)
	}
	m := c.snap.Methods[idx]
	if len(m.Params) != len(args) {
		return fmt.Errorf("method %s takes %d arguments, got %d", name, len(m.Params), len(args))
	}

	out := make([]any, len(args))
	for i, a := range args {
		switch paramKind(m.Params[i]) {
		case KindInt:
			out[i] = int64(math.Round(a))
		case KindFloat:
			out[i] = a
		default:
			return fmt.Errorf("method %s: parameter %d is not numeric", name, i)
		}
	}
	c.remote.calls = append(c.remote.calls, Call{Component: c.snap.Type, Method: name, Args: out})
	return nil
}

func paramKind(p string) Kind {
	switch p {
	case "int", "int32", "int64", "long", "short":
		return KindInt
	case "float", "double", "single", "float32", "float64":
		return KindFloat
	}
	return KindOther
}
