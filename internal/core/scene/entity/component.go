package entity

import "reflect"

// Component is a unit of per-entity behavior. The entity only sequences these
// calls; it never looks inside a component.
type Component interface {
	Instantiate()
	Destroy()
	Update()
}

// validComponent reports whether c can be attached. Components are compared
// by identity, so the dynamic type has to be comparable and non-nil.
func validComponent(c Component) bool {
	if c == nil {
		return false
	}
	v := reflect.ValueOf(c)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice:
		if v.IsNil() {
			return false
		}
	}
	return v.Type().Comparable()
}

// FindComponent returns the first attached component of type T.
func FindComponent[T Component](e *Entity) (T, bool) {
	for _, c := range e.components {
		if typed, ok := c.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}
