package kumitate

import (
	"reflect"
	"unsafe"
)

// GetComponent retrieves a pointer to the component of type `T` for the given
// entity. It provides a direct, type-safe way to access component data.
//
// If the entity is invalid, not yet materialized, or does not have the
// component, this function returns nil.
//
// Parameters:
//   - w: The World containing the entity.
//   - e: The Entity from which to retrieve the component.
//
// Returns:
//   - A pointer to the component data (*T), or nil if not found.
func GetComponent[T any](w *World, e Entity) *T {
	if !w.IsValid(e) {
		return nil
	}
	meta := w.entities.metas[e.ID]
	if meta.archetypeIndex < 0 {
		return nil
	}
	id := w.getCompTypeID(reflect.TypeFor[T]())
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if !a.mask.containsBit(id) {
		return nil
	}
	chunk := a.chunks[meta.chunkIndex]
	ptr := unsafe.Pointer(uintptr(chunk.compPointers[id]) + uintptr(meta.index)*a.compSizes[id])
	return (*T)(ptr)
}

// HasComponent reports whether the entity currently has a component of type
// `T`.
func HasComponent[T any](w *World, e Entity) bool {
	return GetComponent[T](w, e) != nil
}

// AddComponent ensures the entity has a component of type `T` and returns a
// pointer to it. If the component is absent it is added zero-valued, moving
// the entity to a different archetype; if present, the existing data is left
// untouched.
//
// If the entity is invalid or not yet materialized, this function returns
// nil.
//
// Parameters:
//   - w: The World where the entity resides.
//   - e: The Entity to modify.
//
// Returns:
//   - A pointer to the component data (*T), or nil if the entity is dead.
func AddComponent[T any](w *World, e Entity) *T {
	if !w.IsValid(e) {
		return nil
	}
	meta := &w.entities.metas[e.ID]
	if meta.archetypeIndex < 0 {
		return nil
	}
	id := w.getCompTypeID(reflect.TypeFor[T]())
	return (*T)(w.ensureSlot(e, meta, id))
}

// SetComponent adds a component of type `T` with the given value to an
// entity, or updates it if the component already exists.
//
// If the entity does not already have the component, adding it will cause
// the entity to move to a different archetype. This is a relatively
// expensive operation compared to updating an existing component.
//
// Parameters:
//   - w: The World where the entity resides.
//   - e: The Entity to modify.
//   - val: The component data of type `T` to set.
//
// Returns:
//   - true if the component was written, false if the entity is dead.
func SetComponent[T any](w *World, e Entity, val T) bool {
	p := AddComponent[T](w, e)
	if p == nil {
		return false
	}
	*p = val
	return true
}

// RemoveComponent removes the component of type `T` from the specified
// entity.
//
// This operation will cause the entity to move to a new archetype that does
// not include the removed component. If the entity is invalid or does not
// have the component, this function does nothing.
//
// Parameters:
//   - w: The World where the entity resides.
//   - e: The Entity to modify.
func RemoveComponent[T any](w *World, e Entity) {
	if !w.IsValid(e) {
		return
	}
	meta := &w.entities.metas[e.ID]
	if meta.archetypeIndex < 0 {
		return
	}
	id := w.getCompTypeID(reflect.TypeFor[T]())
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if !a.mask.containsBit(id) {
		return
	}
	targetA := w.archetypeWithout(a, id)
	w.moveEntity(e, meta, a, targetA, id)
}

// ensureSlot returns a pointer to component id's storage for the entity,
// moving the entity into the archetype that includes id if necessary. The
// entity must be alive and materialized.
func (w *World) ensureSlot(e Entity, meta *entityMeta, id uint8) unsafe.Pointer {
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if a.mask.containsBit(id) {
		chunk := a.chunks[meta.chunkIndex]
		return unsafe.Pointer(uintptr(chunk.compPointers[id]) + uintptr(meta.index)*a.compSizes[id])
	}
	targetA := w.archetypeWith(a, id)
	w.moveEntity(e, meta, a, targetA, id)
	newChunk := targetA.chunks[meta.chunkIndex]
	ptr := unsafe.Pointer(uintptr(newChunk.compPointers[id]) + uintptr(meta.index)*targetA.compSizes[id])
	// fresh slot: zero it so repeated add/remove cycles never leak old data
	memZero(ptr, targetA.compSizes[id])
	return ptr
}

// moveEntity transfers the entity's row from archetype a to targetA, copying
// every component both archetypes share. skip is the component being removed
// when shrinking; when growing it is simply not present in the source.
func (w *World) moveEntity(e Entity, meta *entityMeta, a, targetA *archetype, skip uint8) {
	if len(targetA.chunks) == 0 || targetA.chunks[len(targetA.chunks)-1].size == ChunkSize {
		targetA.chunks = append(targetA.chunks, w.newChunk(targetA))
	}
	newChunk := targetA.chunks[len(targetA.chunks)-1]
	newIdx := newChunk.size
	newChunk.entityIDs[newIdx] = e
	newChunk.size++
	targetA.size++
	oldChunk := a.chunks[meta.chunkIndex]
	for _, cid := range a.compOrder {
		if cid == skip && !targetA.mask.containsBit(cid) {
			continue
		}
		src := unsafe.Pointer(uintptr(oldChunk.compPointers[cid]) + uintptr(meta.index)*a.compSizes[cid])
		dst := unsafe.Pointer(uintptr(newChunk.compPointers[cid]) + uintptr(newIdx)*targetA.compSizes[cid])
		memCopy(dst, src, a.compSizes[cid])
	}
	w.removeFromArchetype(a, meta)
	meta.archetypeIndex = targetA.index
	meta.chunkIndex = len(targetA.chunks) - 1
	meta.index = newIdx
}
