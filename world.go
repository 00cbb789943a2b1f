// Package kumitate provides a deferred entity construction pipeline for an
// archetype-based Entity-Component-System world. Callers declare, step by
// step, how a logical entity should be created and populated, then realize
// that declaration on demand against an immediate world handle, a deferred
// command log, or a thread-indexed parallel command log.
package kumitate

import (
	"errors"
	"reflect"
	"sync"
	"unsafe"
)

// MaxComponentTypes defines the maximum number of unique component types that
// can be registered in a World. This value is fixed at 256.
const MaxComponentTypes = 256

// ChunkSize is the number of entity rows stored per archetype chunk.
const ChunkSize = 1024

var (
	// ErrDeadEntity is returned when an operation targets an entity whose
	// handle is stale or that has been removed from the world.
	ErrDeadEntity = errors.New("kumitate: entity is not alive")
	// ErrInvalidPrefab is returned when an instantiation source entity is
	// not alive or has not been materialized yet.
	ErrInvalidPrefab = errors.New("kumitate: prefab entity is not alive")
)

// Entity represents a unique identifier for an object in the World. It
// combines a 32-bit ID with a 32-bit version to ensure that recycled IDs are
// not confused with new entities.
type Entity struct {
	// ID is the unique, recyclable identifier for the entity.
	ID uint32
	// Version is a generation counter to protect against stale entity
	// references. It is incremented each time an entity ID is reused.
	Version uint32
}

// entityMeta holds the internal location and state of an entity. A reserved
// entity has a live version but archetypeIndex -1 until it is placed.
type entityMeta struct {
	archetypeIndex int    // index in World.archetypes, -1 if reserved or dead
	chunkIndex     int    // index in archetype.chunks
	index          int    // position inside the chunk's component arrays
	version        uint32 // current version, 0 if the entity is dead
}

// compSpec bundles a component type's ID and reflect.Type.
type compSpec struct {
	typ  reflect.Type
	size uintptr
	id   uint8
}

// chunk holds fixed-size storage for ChunkSize entities.
type chunk struct {
	entityIDs    [ChunkSize]Entity
	compPointers [MaxComponentTypes]unsafe.Pointer
	size         int // number of entities in this chunk, 0 to ChunkSize
}

// archetype holds storage for one unique component-set mask.
type archetype struct {
	chunks    []*chunk
	compOrder []uint8 // list of component IDs in this arch
	compSizes [MaxComponentTypes]uintptr
	mask      bitmask256 // which component bits this arch uses
	index     int        // position in world.archetypes
	size      int        // total entity count across chunks
}

// componentRegistry ...
type componentRegistry struct {
	compIDToType   [MaxComponentTypes]reflect.Type
	compTypeMap    map[reflect.Type]uint8
	compIDToSize   [MaxComponentTypes]uintptr
	nextCompTypeID uint16 // counter for assigning new component type IDs
}

// entityRegistry ...
type entityRegistry struct {
	freeIDs         []uint32     // stack of recycled entity IDs
	metas           []entityMeta // metadata for each entity, indexed by entity ID
	capacity        int          // current maximum number of entities
	initialCapacity int          // initial capacity, used for expansion
	nextEntityVer   uint32       // version for the next created entity
	mu              sync.Mutex   // serializes reservation and validity reads from parallel log lanes
}

// archetypeRegistry ...
type archetypeRegistry struct {
	maskToArcIndex   map[bitmask256]int // lookup mask -> archetype index
	archetypes       []*archetype       // list of all archetypes in the world
	archetypeVersion uint32             // incremented when a new archetype is created
}

// sharedRegistry interns shared component values so that many entities can
// reference one stored instance by index.
type sharedRegistry struct {
	indexByValue map[any]int32
	values       []any
}

// intern returns the index of val in the table, adding it if absent.
func (r *sharedRegistry) intern(val any) int32 {
	if r.indexByValue == nil {
		r.indexByValue = make(map[any]int32, 8)
	}
	if idx, ok := r.indexByValue[val]; ok {
		return idx
	}
	idx := int32(len(r.values))
	r.values = append(r.values, val)
	r.indexByValue[val] = idx
	return idx
}

// World ...
type World struct {
	vars            *Vars
	shared          sharedRegistry
	archetypes      archetypeRegistry
	entities        entityRegistry
	components      componentRegistry
	mutationVersion uint32 // incremented on entity mutations
}

// NewWorld creates and initializes a new World with a specified initial
// capacity for entities. It pre-allocates memory for the entity metadata and
// free ID list to optimize performance.
//
// Parameters:
//   - initialCapacity: The number of entities to pre-allocate memory for.
//     Choosing a suitable capacity can prevent re-allocations during runtime.
//
// Returns:
//   - A pointer to the newly created World.
func NewWorld(initialCapacity int) *World {
	w := &World{
		vars: &Vars{},
		components: componentRegistry{
			compTypeMap: make(map[reflect.Type]uint8, 16),
		},
		entities: entityRegistry{
			capacity:        initialCapacity,
			initialCapacity: initialCapacity,
			freeIDs:         make([]uint32, initialCapacity),
			metas:           make([]entityMeta, initialCapacity),
			nextEntityVer:   1,
		},
		archetypes: archetypeRegistry{
			maskToArcIndex: make(map[bitmask256]int),
			archetypes:     make([]*archetype, 0, 16),
		},
	}
	for i := range w.entities.freeIDs {
		w.entities.freeIDs[i] = uint32(initialCapacity - 1 - i)
	}
	for i := range w.entities.metas {
		w.entities.metas[i].archetypeIndex = -1
		w.entities.metas[i].chunkIndex = -1
		w.entities.metas[i].index = -1
		w.entities.metas[i].version = 0
	}
	// Pre-create the empty archetype
	var emptyMask bitmask256
	w.getOrCreateArchetype(emptyMask, []compSpec{})
	return w
}

// ClearEntities removes all entities from the world, recycling their IDs and
// resetting archetypes. This is an efficient way to reset the world state
// without deallocating memory.
func (w *World) ClearEntities() {
	for i := range w.entities.metas {
		w.entities.metas[i].archetypeIndex = -1
		w.entities.metas[i].chunkIndex = -1
		w.entities.metas[i].index = -1
		w.entities.metas[i].version = 0
	}
	w.entities.freeIDs = w.entities.freeIDs[:0]
	for i := uint32(0); i < uint32(w.entities.capacity); i++ {
		w.entities.freeIDs = append(w.entities.freeIDs, i)
	}
	for _, a := range w.archetypes.archetypes {
		a.chunks = a.chunks[:0]
		a.size = 0
	}
	w.mutationVersion++
}

// IsValid checks if the entity is currently alive in the world. An entity is
// valid if its ID is within bounds and its version matches the world's
// current version for that ID. This prevents "stale" entity references from
// accessing incorrect data after an entity has been deleted and its ID
// recycled.
//
// A handle reserved by a deferred command log is already valid before the
// log plays back, but carries no components until then.
//
// Parameters:
//   - e: The Entity to validate.
//
// Returns:
//   - true if the entity is valid, false otherwise.
func (w *World) IsValid(e Entity) bool {
	if int(e.ID) >= len(w.entities.metas) {
		return false
	}
	meta := w.entities.metas[e.ID]
	return meta.version != 0 && meta.version == e.Version
}

// Vars returns the world's variable store. It provides a type-keyed store
// for global data that needs to be accessible from anywhere in the
// application, such as configuration objects or asset handles. Per-builder
// variable maps are separate; see Builder.
func (w *World) Vars() *Vars {
	return w.vars
}

// getCompTypeID registers or fetches a component type ID for t.
func (w *World) getCompTypeID(t reflect.Type) uint8 {
	if id, ok := w.components.compTypeMap[t]; ok {
		return id
	}
	if w.components.nextCompTypeID >= MaxComponentTypes {
		panic("kumitate: too many component types")
	}
	id := uint8(w.components.nextCompTypeID)
	w.components.compTypeMap[t] = id
	w.components.compIDToType[id] = t
	w.components.compIDToSize[id] = t.Size()
	w.components.nextCompTypeID++
	return id
}

// getOrCreateArchetype returns an archetype for the given mask;
// if missing, allocates one with storage described by specs.
func (w *World) getOrCreateArchetype(mask bitmask256, specs []compSpec) *archetype {
	if idx, ok := w.archetypes.maskToArcIndex[mask]; ok {
		return w.archetypes.archetypes[idx]
	}
	a := &archetype{
		index:     len(w.archetypes.archetypes),
		mask:      mask,
		size:      0,
		chunks:    make([]*chunk, 0, 4),
		compOrder: make([]uint8, len(specs)),
	}
	for i, sp := range specs {
		a.compOrder[i] = sp.id
		a.compSizes[sp.id] = sp.size
	}
	w.archetypes.archetypes = append(w.archetypes.archetypes, a)
	w.archetypes.maskToArcIndex[mask] = a.index
	w.archetypes.archetypeVersion++
	return a
}

// archetypeWith returns the archetype whose mask equals a's mask plus id,
// creating it if needed.
func (w *World) archetypeWith(a *archetype, id uint8) *archetype {
	newMask := a.mask
	newMask.set(id)
	if idx, ok := w.archetypes.maskToArcIndex[newMask]; ok {
		return w.archetypes.archetypes[idx]
	}
	var tempSpecs [MaxComponentTypes]compSpec
	count := 0
	for _, cid := range a.compOrder {
		tempSpecs[count] = compSpec{id: cid, typ: w.components.compIDToType[cid], size: w.components.compIDToSize[cid]}
		count++
	}
	tempSpecs[count] = compSpec{id: id, typ: w.components.compIDToType[id], size: w.components.compIDToSize[id]}
	count++
	return w.getOrCreateArchetype(newMask, tempSpecs[:count])
}

// archetypeWithout returns the archetype whose mask equals a's mask minus id,
// creating it if needed.
func (w *World) archetypeWithout(a *archetype, id uint8) *archetype {
	newMask := a.mask
	newMask.unset(id)
	if idx, ok := w.archetypes.maskToArcIndex[newMask]; ok {
		return w.archetypes.archetypes[idx]
	}
	var tempSpecs [MaxComponentTypes]compSpec
	count := 0
	for _, cid := range a.compOrder {
		if cid == id {
			continue
		}
		tempSpecs[count] = compSpec{id: cid, typ: w.components.compIDToType[cid], size: w.components.compIDToSize[cid]}
		count++
	}
	return w.getOrCreateArchetype(newMask, tempSpecs[:count])
}

// newChunk creates a new chunk for the archetype.
func (w *World) newChunk(a *archetype) *chunk {
	c := &chunk{}
	for _, cid := range a.compOrder {
		typ := w.components.compIDToType[cid]
		slice := reflect.MakeSlice(reflect.SliceOf(typ), ChunkSize, ChunkSize)
		c.compPointers[cid] = slice.UnsafePointer()
	}
	return c
}

// expand automatically increases capacity when full.
func (w *World) expand(additional int) {
	oldCap := w.entities.capacity
	newCap := oldCap * 2
	if newCap == 0 {
		newCap = 1
	}
	if newCap < oldCap+additional {
		newCap = oldCap + additional
	}
	delta := newCap - oldCap
	newMetas := make([]entityMeta, delta)
	for i := range newMetas {
		newMetas[i].archetypeIndex = -1
		newMetas[i].chunkIndex = -1
		newMetas[i].index = -1
		newMetas[i].version = 0
	}
	w.entities.metas = append(w.entities.metas, newMetas...)
	newFree := make([]uint32, delta)
	for i := range delta {
		newFree[i] = uint32(newCap - 1 - i)
	}
	w.entities.freeIDs = append(w.entities.freeIDs, newFree...)
	w.entities.capacity = newCap
}

// popFreeID pops a recyclable entity ID, growing the world if needed.
func (w *World) popFreeID() uint32 {
	if len(w.entities.freeIDs) == 0 {
		w.expand(1)
	}
	last := len(w.entities.freeIDs) - 1
	id := w.entities.freeIDs[last]
	w.entities.freeIDs = w.entities.freeIDs[:last]
	return id
}

// placeInArchetype appends the entity to the archetype's last chunk and
// updates its meta. The entity's version must already be assigned.
func (w *World) placeInArchetype(e Entity, a *archetype) {
	if len(a.chunks) == 0 || a.chunks[len(a.chunks)-1].size == ChunkSize {
		a.chunks = append(a.chunks, w.newChunk(a))
	}
	lastC := a.chunks[len(a.chunks)-1]
	idx := lastC.size
	meta := &w.entities.metas[e.ID]
	meta.archetypeIndex = a.index
	meta.chunkIndex = len(a.chunks) - 1
	meta.index = idx
	lastC.entityIDs[idx] = e
	lastC.size++
	a.size++
	w.mutationVersion++
}

// createEntity bumps a new entity into the given archetype.
func (w *World) createEntity(a *archetype) Entity {
	id := w.popFreeID()
	meta := &w.entities.metas[id]
	meta.version = w.entities.nextEntityVer
	w.entities.nextEntityVer++
	ent := Entity{ID: id, Version: meta.version}
	w.placeInArchetype(ent, a)
	return ent
}

// emptyArchetype returns the archetype with no components.
func (w *World) emptyArchetype() *archetype {
	emptyMask := bitmask256{}
	idx, ok := w.archetypes.maskToArcIndex[emptyMask]
	if !ok {
		panic("kumitate: empty archetype not found")
	}
	return w.archetypes.archetypes[idx]
}

// CreateEntity creates a new entity with no components.
func (w *World) CreateEntity() Entity {
	return w.createEntity(w.emptyArchetype())
}

// CreateEntities creates a batch of entities with no components and returns
// their handles.
func (w *World) CreateEntities(count int) []Entity {
	if count == 0 {
		return nil
	}
	ents := make([]Entity, count)
	a := w.emptyArchetype()
	for i := range ents {
		ents[i] = w.createEntity(a)
	}
	return ents
}

// reserveEntity allocates a live entity handle without materializing it in
// any archetype. Reserved handles are how deferred command logs hand out
// real entity IDs before playback. Safe for concurrent use from parallel
// log lanes.
func (w *World) reserveEntity() Entity {
	w.entities.mu.Lock()
	defer w.entities.mu.Unlock()
	id := w.popFreeID()
	meta := &w.entities.metas[id]
	meta.version = w.entities.nextEntityVer
	meta.archetypeIndex = -1
	meta.chunkIndex = -1
	meta.index = -1
	w.entities.nextEntityVer++
	return Entity{ID: id, Version: meta.version}
}

// isValidLocked checks entity validity while holding the reservation lock.
// Paths that may run concurrently with lane reservation must use this
// instead of IsValid: reserveEntity can expand and reallocate the metas
// slice at any time.
func (w *World) isValidLocked(e Entity) bool {
	w.entities.mu.Lock()
	defer w.entities.mu.Unlock()
	return w.IsValid(e)
}

// releaseReserved frees a reserved handle that will never be placed. It is a
// no-op for entities that were already placed or removed.
func (w *World) releaseReserved(e Entity) {
	w.entities.mu.Lock()
	defer w.entities.mu.Unlock()
	if int(e.ID) >= len(w.entities.metas) {
		return
	}
	meta := &w.entities.metas[e.ID]
	if meta.version != e.Version || meta.archetypeIndex >= 0 {
		return
	}
	meta.version = 0
	w.entities.freeIDs = append(w.entities.freeIDs, e.ID)
}

// placeReserved materializes a reserved handle inside the given archetype.
func (w *World) placeReserved(e Entity, a *archetype) error {
	if int(e.ID) >= len(w.entities.metas) {
		return ErrDeadEntity
	}
	meta := &w.entities.metas[e.ID]
	if meta.version != e.Version {
		return ErrDeadEntity
	}
	if meta.archetypeIndex >= 0 {
		return errors.New("kumitate: reserved entity already placed")
	}
	w.placeInArchetype(e, a)
	return nil
}

// Instantiate creates a new entity that clones the component shape and data
// of the given prefab entity. Buffer components are cloned shallowly; their
// element slices are copied on the next append (see AppendBuffer).
func (w *World) Instantiate(prefab Entity) (Entity, error) {
	a, srcChunk, srcIdx, err := w.locate(prefab)
	if err != nil {
		return Entity{}, ErrInvalidPrefab
	}
	e := w.createEntity(a)
	w.copyRow(a, srcChunk, srcIdx, e)
	return e, nil
}

// cloneReserved materializes a reserved handle as a clone of prefab. Used by
// deferred command logs at playback time.
func (w *World) cloneReserved(prefab, e Entity) error {
	a, srcChunk, srcIdx, err := w.locate(prefab)
	if err != nil {
		return ErrInvalidPrefab
	}
	if err := w.placeReserved(e, a); err != nil {
		return err
	}
	w.copyRow(a, srcChunk, srcIdx, e)
	return nil
}

// locate resolves a live, materialized entity to its storage coordinates.
func (w *World) locate(e Entity) (*archetype, *chunk, int, error) {
	if !w.IsValid(e) {
		return nil, nil, 0, ErrDeadEntity
	}
	meta := w.entities.metas[e.ID]
	if meta.archetypeIndex < 0 {
		return nil, nil, 0, ErrDeadEntity
	}
	a := w.archetypes.archetypes[meta.archetypeIndex]
	return a, a.chunks[meta.chunkIndex], meta.index, nil
}

// copyRow copies every component of the source row onto the entity e, which
// must already live in the same archetype.
func (w *World) copyRow(a *archetype, srcChunk *chunk, srcIdx int, e Entity) {
	meta := w.entities.metas[e.ID]
	dstChunk := a.chunks[meta.chunkIndex]
	for _, cid := range a.compOrder {
		size := a.compSizes[cid]
		src := unsafe.Pointer(uintptr(srcChunk.compPointers[cid]) + uintptr(srcIdx)*size)
		dst := unsafe.Pointer(uintptr(dstChunk.compPointers[cid]) + uintptr(meta.index)*size)
		memCopy(dst, src, size)
	}
}

// RemoveEntity removes a single entity. Reserved handles that were never
// placed are released back to the ID pool.
func (w *World) RemoveEntity(e Entity) {
	if !w.IsValid(e) {
		return
	}
	meta := &w.entities.metas[e.ID]
	if meta.archetypeIndex >= 0 {
		a := w.archetypes.archetypes[meta.archetypeIndex]
		w.removeFromArchetype(a, meta)
	}
	meta.archetypeIndex = -1
	meta.chunkIndex = -1
	meta.index = -1
	meta.version = 0
	w.entities.freeIDs = append(w.entities.freeIDs, e.ID)
	w.mutationVersion++
}

// RemoveEntities removes a batch of entities.
func (w *World) RemoveEntities(ents []Entity) {
	for _, e := range ents {
		w.RemoveEntity(e)
	}
}

// removeFromArchetype removes the entity from the archetype without freeing
// the ID or invalidating the version.
func (w *World) removeFromArchetype(a *archetype, meta *entityMeta) {
	chunkIdx := meta.chunkIndex
	chunk := a.chunks[chunkIdx]
	idx := meta.index
	lastIdx := chunk.size - 1
	if idx < lastIdx {
		lastEnt := chunk.entityIDs[lastIdx]
		chunk.entityIDs[idx] = lastEnt
		for _, cid := range a.compOrder {
			size := a.compSizes[cid]
			src := unsafe.Pointer(uintptr(chunk.compPointers[cid]) + uintptr(lastIdx)*size)
			dst := unsafe.Pointer(uintptr(chunk.compPointers[cid]) + uintptr(idx)*size)
			memCopy(dst, src, size)
		}
		w.entities.metas[lastEnt.ID].index = idx
	}
	chunk.size--
	a.size--
	if chunk.size == 0 {
		lastChunkIdx := len(a.chunks) - 1
		if chunkIdx < lastChunkIdx {
			a.chunks[chunkIdx] = a.chunks[lastChunkIdx]
			swappedChunk := a.chunks[chunkIdx]
			for j := 0; j < swappedChunk.size; j++ {
				ent := swappedChunk.entityIDs[j]
				w.entities.metas[ent.ID].chunkIndex = chunkIdx
			}
		}
		a.chunks = a.chunks[:lastChunkIdx]
	}
	w.mutationVersion++
}
