package kumitate

// Buffer is an ordered, per-entity list of elements of one type, stored as a
// regular component. Use AppendBuffer and GetBuffer rather than touching
// Elems directly.
type Buffer[T any] struct {
	Elems []T
}

// AppendBuffer appends elements to the entity's buffer of element type `T`,
// creating the buffer component if absent. Elements keep their append order.
//
// The append uses a full slice expression so it always reallocates instead
// of writing into spare capacity; a prefab clone and its source therefore
// never end up sharing a backing array.
//
// Parameters:
//   - w: The World where the entity resides.
//   - e: The Entity to modify.
//   - elems: The elements to append, in order.
//
// Returns:
//   - true if the elements were appended, false if the entity is dead.
func AppendBuffer[T any](w *World, e Entity, elems ...T) bool {
	b := AddComponent[Buffer[T]](w, e)
	if b == nil {
		return false
	}
	n := len(b.Elems)
	b.Elems = append(b.Elems[:n:n], elems...)
	return true
}

// GetBuffer returns the entity's buffer elements of type `T`, or nil if the
// entity is dead or has no such buffer. The returned slice is owned by the
// component; copy it for long-term use.
func GetBuffer[T any](w *World, e Entity) []T {
	b := GetComponent[Buffer[T]](w, e)
	if b == nil {
		return nil
	}
	return b.Elems
}
