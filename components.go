package kumitate

// Standard components targeted by the Builder's fluent setters. They are
// ordinary components; nothing prevents setting them through SetComponent
// directly.

// Name is a human-readable label component.
type Name struct {
	Value string
}

// Translation is a position component.
type Translation struct {
	X, Y, Z float32
}

// Rotation is an orientation component stored as a quaternion.
type Rotation struct {
	X, Y, Z, W float32
}

// Scale is a uniform scale component.
type Scale struct {
	Value float32
}

// Parent links an entity to its hierarchical parent.
type Parent struct {
	Value Entity
}

// SetParentOf links child to parent. The parent must be alive.
//
// Returns:
//   - true if the link was written, false if either entity is dead.
func SetParentOf(w *World, child, parent Entity) bool {
	if !w.IsValid(parent) {
		return false
	}
	return SetComponent(w, child, Parent{Value: parent})
}

// ParentOf returns the entity's parent, if it has one.
func ParentOf(w *World, e Entity) (Entity, bool) {
	p := GetComponent[Parent](w, e)
	if p == nil {
		return Entity{}, false
	}
	return p.Value, true
}
