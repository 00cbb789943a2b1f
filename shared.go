package kumitate

// sharedSlot is the per-entity component that references an interned shared
// value of type T. It rides the normal archetype machinery, so presence
// checks and archetype moves behave exactly like any other component.
type sharedSlot[T any] struct {
	index int32
}

// SetShared associates the shared value of type `T` with the entity. Equal
// values are interned once in the world and referenced by index, so any
// number of entities can share one stored instance. Cloning an entity
// (prefab instantiation) clones the reference, not the value.
//
// Parameters:
//   - w: The World where the entity resides.
//   - e: The Entity to modify.
//   - val: The shared value. Must be comparable so it can be interned.
//
// Returns:
//   - true if the association was written, false if the entity is dead.
func SetShared[T comparable](w *World, e Entity, val T) bool {
	idx := w.shared.intern(val)
	return SetComponent(w, e, sharedSlot[T]{index: idx})
}

// GetShared retrieves the shared value of type `T` associated with the
// entity.
//
// Returns:
//   - The shared value and true, or the zero value and false if the entity
//     is dead or has no shared component of type `T`.
func GetShared[T comparable](w *World, e Entity) (T, bool) {
	slot := GetComponent[sharedSlot[T]](w, e)
	if slot == nil {
		var zero T
		return zero, false
	}
	return w.shared.values[slot.index].(T), true
}

// HasShared reports whether the entity has a shared component of type `T`.
func HasShared[T comparable](w *World, e Entity) bool {
	return GetComponent[sharedSlot[T]](w, e) != nil
}

// RemoveShared dissociates the shared value of type `T` from the entity.
// The interned value itself stays in the world's table for reuse.
func RemoveShared[T comparable](w *World, e Entity) {
	RemoveComponent[sharedSlot[T]](w, e)
}
