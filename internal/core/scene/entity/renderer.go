package entity

import "github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/core/scene/state"

// Handle is an opaque reference to a renderer-owned visual object. A nil
// Handle means "no visual"; as a parent it means the scene root.
type Handle any

// Prefab describes the visual an entity instantiates.
type Prefab struct {
	Name  string
	Asset string
}

// Renderer owns visual objects on behalf of entities. Entities call it from
// inside their lock, so implementations must not call back into the entity.
type Renderer interface {
	CreateVisual(prefab Prefab, position state.Vector3, rotation state.Quaternion) (Handle, error)
	SetLocalScale(h Handle, scale state.Vector3)
	AttachTo(h Handle, parent Handle)
	SetTransform(h Handle, position state.Vector3, rotation state.Quaternion, scale state.Vector3)
	DestroyVisual(h Handle)
}
