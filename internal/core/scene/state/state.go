package state

import (
	"fmt"
	"strings"
)

// ID identifies a replicated object for the lifetime of a session
type ID uint32

// Vector3 is a position or scale in scene space.
type Vector3 struct {
	X float32
	Y float32
	Z float32
}

func NewVector3(x, y, z float32) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// Zero returns the origin.
func Zero() Vector3 { return Vector3{} }

// One returns the unit scale.
func One() Vector3 { return Vector3{X: 1, Y: 1, Z: 1} }

func (v Vector3) String() string {
	return fmt.Sprintf("{%.3f, %.3f, %.3f}", v.X, v.Y, v.Z)
}

// Quaternion is a rotation. Values produced by this package are unit length.
type Quaternion struct {
	X float32
	Y float32
	Z float32
	W float32
}

// Identity returns the no-rotation quaternion.
func Identity() Quaternion { return Quaternion{W: 1} }

func (q Quaternion) String() string {
	return fmt.Sprintf("{%.3f, %.3f, %.3f, %.3f}", q.X, q.Y, q.Z, q.W)
}

// ObjectType classifies a scene object. It is fixed when the state is created.
type ObjectType uint32

const (
	ObjectTypeStatic ObjectType = iota
	ObjectTypeDynamic
	ObjectTypeAnchor
	ObjectTypeAnnotation
	ObjectTypeAvatar
)

var objectTypeNames = map[ObjectType]string{
	ObjectTypeStatic:     "static",
	ObjectTypeDynamic:    "dynamic",
	ObjectTypeAnchor:     "anchor",
	ObjectTypeAnnotation: "annotation",
	ObjectTypeAvatar:     "avatar",
}

func (t ObjectType) String() string {
	if name, ok := objectTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ObjectType(%d)", uint32(t))
}

// ParseObjectType resolves a case-insensitive type name.
func ParseObjectType(name string) (ObjectType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range objectTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown object type %q", name)
}

// State is the network-visible truth of one scene object. All fields are
// values, so assigning a State copies it.
type State struct {
	ID       ID
	Position Vector3
	Rotation Quaternion
	Scale    Vector3
	Type     ObjectType
	Flag     uint32
}

// New returns the default state for id: origin, identity rotation, unit scale
// and zero flag.
func New(id ID, objectType ObjectType) State {
	return State{
		ID:       id,
		Position: Zero(),
		Rotation: Identity(),
		Scale:    One(),
		Type:     objectType,
	}
}

// Clone returns an independent copy of s.
func (s State) Clone() State {
	return s
}

func (s State) String() string {
	return fmt.Sprintf("State{id=%d type=%s pos=%s rot=%s scale=%s flag=%#x}",
		s.ID, s.Type, s.Position, s.Rotation, s.Scale, s.Flag)
}
