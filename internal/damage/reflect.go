package damage

import (
	"fmt"
	"math"
	"reflect"
)

// maxAncestors bounds the parent walk for Go value targets.
const maxAncestors = 8

// Container is a Go value carrying sibling components.
type Container interface {
	Components() []any
}

// Child is a Go value attached to an owner.
type Child interface {
	Parent() any
}

// reflectObject exposes a pointer to struct through Object. Readable numbers
// are exported numeric fields and zero-argument numeric getters; getters are
// written through a matching SetX method.
type reflectObject struct {
	ptr  reflect.Value
	elem reflect.Value
}

// Reflect wraps a pointer to struct. It reports false for anything else.
func Reflect(v any) (Object, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, false
	}
	return &reflectObject{ptr: rv, elem: rv.Elem()}, true
}

func reflectCandidates(target any) []Object {
	var out []Object
	seen := make(map[uintptr]struct{})

	add := func(v any) {
		obj, ok := Reflect(v)
		if !ok {
			return
		}
		key := obj.(*reflectObject).ptr.Pointer()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, obj)
	}

	node := target
	for depth := 0; depth <= maxAncestors && isLive(node); depth++ {
		add(node)
		if c, ok := node.(Container); ok {
			for _, sibling := range c.Components() {
				if isLive(sibling) {
					add(sibling)
				}
			}
		}
		child, ok := node.(Child)
		if !ok {
			break
		}
		node = child.Parent()
	}
	return out
}

func isLive(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return !rv.IsNil()
	}
	return true
}

func (o *reflectObject) TypeName() string {
	return o.elem.Type().Name()
}

func (o *reflectObject) Numbers() []string {
	t := o.elem.Type()
	var names []string
	fields := make(map[string]struct{})

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || kindOf(f.Type.Kind()) == KindOther {
			continue
		}
		names = append(names, f.Name)
		fields[f.Name] = struct{}{}
	}

	pt := o.ptr.Type()
	for i := 0; i < pt.NumMethod(); i++ {
		m := pt.Method(i)
		if _, dup := fields[m.Name]; dup {
			continue
		}
		if isGetter(o.ptr.Method(i).Type()) {
			names = append(names, m.Name)
		}
	}
	return names
}

func (o *reflectObject) Number(name string) (v float64, ok bool) {
	if f := o.field(name); f.IsValid() {
		return toFloat(f), true
	}

	m := o.ptr.MethodByName(name)
	if !m.IsValid() || !isGetter(m.Type()) {
		return 0, false
	}
	defer func() {
		if r := recover(); r != nil {
			v, ok = 0, false
		}
	}()
	return toFloat(m.Call(nil)[0]), true
}

func (o *reflectObject) SetNumber(name string, v float64) error {
	if f := o.field(name); f.IsValid() {
		if !f.CanSet() {
			return ErrReadOnly
		}
		setFloat(f, v)
		return nil
	}
	if m := o.ptr.MethodByName("Set" + name); m.IsValid() {
		return o.Call("Set"+name, v)
	}
	return ErrReadOnly
}

func (o *reflectObject) Methods() []Method {
	pt := o.ptr.Type()
	out := make([]Method, 0, pt.NumMethod())
	for i := 0; i < pt.NumMethod(); i++ {
		mt := o.ptr.Method(i).Type()
		params := make([]Kind, mt.NumIn())
		for j := range params {
			params[j] = kindOf(mt.In(j).Kind())
		}
		out = append(out, Method{Name: pt.Method(i).Name, Params: params})
	}
	return out
}

func (o *reflectObject) Call(name string, args ...float64) (err error) {
	m := o.ptr.MethodByName(name)
	if !m.IsValid() {
		return fmt.Errorf("method %s not found", name)
	}
	mt := m.Type()
	if mt.NumIn() != len(args) {
		return fmt.Errorf("method %s takes %d arguments, got %d", name, mt.NumIn(), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		pv := reflect.New(mt.In(i)).Elem()
		if kindOf(pv.Kind()) == KindOther {
			return fmt.Errorf("method %s: parameter %d is not numeric", name, i)
		}
		setFloat(pv, a)
		in[i] = pv
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("method %s panicked: %v", name, r)
		}
	}()
	m.Call(in)
	return nil
}

func (o *reflectObject) field(name string) reflect.Value {
	sf, ok := o.elem.Type().FieldByName(name)
	if !ok || !sf.IsExported() || len(sf.Index) != 1 || kindOf(sf.Type.Kind()) == KindOther {
		return reflect.Value{}
	}
	return o.elem.Field(sf.Index[0])
}

func isGetter(mt reflect.Type) bool {
	return mt.NumIn() == 0 && mt.NumOut() == 1 && kindOf(mt.Out(0).Kind()) != KindOther
}

func kindOf(k reflect.Kind) Kind {
	switch k {
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt
	}
	return KindOther
}

func toFloat(v reflect.Value) float64 {
	switch {
	case v.CanFloat():
		return v.Float()
	case v.CanInt():
		return float64(v.Int())
	case v.CanUint():
		return float64(v.Uint())
	}
	return 0
}

func setFloat(v reflect.Value, f float64) {
	switch {
	case v.CanFloat():
		v.SetFloat(f)
	case v.CanInt():
		v.SetInt(int64(math.Round(f)))
	case v.CanUint():
		v.SetUint(uint64(math.Max(0, math.Round(f))))
	}
}
