// pkg/core/entity.go
package core

// EntityRef is the host's opaque handle for a scene entity.
type EntityRef string

// IsSet reports whether the handle refers to anything at all.
func (r EntityRef) IsSet() bool {
	return r != ""
}

// Entity is one enumerated world object as reported by the host.
// Valid is false once the host has destroyed the object behind Ref.
type Entity struct {
	Ref      EntityRef
	TypeName string
	Name     string
	Position Vec3
	Valid    bool
}

// CameraPose is a camera placement: where it sits and what it looks at.
type CameraPose struct {
	Position Vec3
	LookAt   Vec3
}
