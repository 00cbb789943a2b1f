package kumitate

import (
	"reflect"
	"unsafe"
)

// Filter provides a fast, cache-friendly iterator over all entities that
// have a specific component. It iterates directly over the component arrays
// of matching archetype chunks. Filters are how tests and tools verify what
// a build pipeline produced; game systems can use them the same way.
type Filter[T any] struct {
	world       *World
	matching    []*archetype
	curBase     unsafe.Pointer
	curChunks   []*chunk
	compSize    uintptr
	archVersion uint32
	curMatch    int
	curChunk    int
	curIdx      int
	curEnt      Entity
	compID      uint8
}

// NewFilter creates a new `Filter` that iterates over all entities
// possessing at least the component of type `T`. The filter discovers and
// caches the archetypes that match, refreshing automatically when new
// archetypes appear.
//
// Parameters:
//   - w: The World to query.
//
// Returns:
//   - A pointer to the newly created `Filter[T]`.
func NewFilter[T any](w *World) *Filter[T] {
	id := w.getCompTypeID(reflect.TypeFor[T]())
	f := &Filter[T]{
		world:    w,
		compID:   id,
		compSize: w.components.compIDToSize[id],
	}
	f.Reset()
	return f
}

// Reset rewinds the filter's iterator to the beginning, picking up any
// archetypes created since the last iteration.
func (f *Filter[T]) Reset() {
	if f.archVersion != f.world.archetypes.archetypeVersion || f.matching == nil {
		f.updateMatching()
	}
	f.curMatch = -1
	f.curChunk = 0
	f.curIdx = -1
	f.curChunks = nil
}

// updateMatching rebuilds the cached archetype list.
func (f *Filter[T]) updateMatching() {
	f.matching = f.matching[:0]
	var m bitmask256
	m.set(f.compID)
	for _, a := range f.world.archetypes.archetypes {
		if a.mask.contains(m) {
			f.matching = append(f.matching, a)
		}
	}
	f.archVersion = f.world.archetypes.archetypeVersion
}

// Next advances the filter to the next matching entity. It returns true if
// an entity was found, and false if the iteration is complete. This method
// must be called before accessing the entity or its component.
//
// Example:
//
//	f := kumitate.NewFilter[Translation](world)
//	for f.Next() {
//	    // ... process entity
//	}
//
// Returns:
//   - true if another matching entity was found, false otherwise.
func (f *Filter[T]) Next() bool {
	for {
		f.curIdx++
		if f.curChunks != nil && f.curChunk < len(f.curChunks) {
			c := f.curChunks[f.curChunk]
			if f.curIdx < c.size {
				f.curEnt = c.entityIDs[f.curIdx]
				return true
			}
			f.curChunk++
			f.curIdx = -1
			if f.curChunk < len(f.curChunks) {
				f.curBase = f.curChunks[f.curChunk].compPointers[f.compID]
			}
			continue
		}
		f.curMatch++
		if f.curMatch >= len(f.matching) {
			return false
		}
		a := f.matching[f.curMatch]
		f.curChunks = a.chunks
		f.curChunk = 0
		f.curIdx = -1
		if len(a.chunks) > 0 {
			f.curBase = a.chunks[0].compPointers[f.compID]
		}
	}
}

// Entity returns the current `Entity` in the iteration. This should only be
// called after `Next()` has returned true.
func (f *Filter[T]) Entity() Entity {
	return f.curEnt
}

// Get returns a pointer to the component of type `T` for the current entity
// in the iteration. This should only be called after `Next()` has returned
// true.
func (f *Filter[T]) Get() *T {
	ptr := unsafe.Pointer(uintptr(f.curBase) + uintptr(f.curIdx)*f.compSize)
	return (*T)(ptr)
}

// Count returns the number of entities currently matching the filter. It
// does not disturb the iteration state.
func (f *Filter[T]) Count() int {
	if f.archVersion != f.world.archetypes.archetypeVersion || f.matching == nil {
		f.updateMatching()
	}
	n := 0
	for _, a := range f.matching {
		n += a.size
	}
	return n
}
