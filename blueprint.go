package kumitate

import (
	"reflect"
	"unsafe"
)

// Blueprint is a type-level description of a fixed initial component set. It
// resolves its archetype once at construction, so stamping entities out of
// it does no per-entity mask work. Blueprints are the template behind the
// FromBlueprint creation strategy and are usable standalone.
type Blueprint struct {
	world *World
	arch  *archetype
}

// NewBlueprint creates a Blueprint whose entities start with the single
// component type `A`, zero-valued.
func NewBlueprint[A any](w *World) *Blueprint {
	return blueprintFor(w, reflect.TypeFor[A]())
}

// NewBlueprint2 creates a Blueprint with component types `A` and `B`.
func NewBlueprint2[A, B any](w *World) *Blueprint {
	return blueprintFor(w, reflect.TypeFor[A](), reflect.TypeFor[B]())
}

// NewBlueprint3 creates a Blueprint with component types `A`, `B` and `C`.
func NewBlueprint3[A, B, C any](w *World) *Blueprint {
	return blueprintFor(w, reflect.TypeFor[A](), reflect.TypeFor[B](), reflect.TypeFor[C]())
}

// NewBlueprint4 creates a Blueprint with component types `A`, `B`, `C` and `D`.
func NewBlueprint4[A, B, C, D any](w *World) *Blueprint {
	return blueprintFor(w, reflect.TypeFor[A](), reflect.TypeFor[B](), reflect.TypeFor[C](), reflect.TypeFor[D]())
}

// blueprintFor resolves the archetype for the given component types.
func blueprintFor(w *World, types ...reflect.Type) *Blueprint {
	var mask bitmask256
	specs := make([]compSpec, 0, len(types))
	for _, t := range types {
		id := w.getCompTypeID(t)
		if mask.containsBit(id) {
			continue
		}
		mask.set(id)
		specs = append(specs, compSpec{id: id, typ: t, size: w.components.compIDToSize[id]})
	}
	return &Blueprint{world: w, arch: w.getOrCreateArchetype(mask, specs)}
}

// NewEntity creates one entity with the blueprint's component set, all
// components zero-valued.
func (b *Blueprint) NewEntity() Entity {
	e := b.world.createEntity(b.arch)
	b.zeroRow(e)
	return e
}

// NewEntities creates count entities with the blueprint's component set.
func (b *Blueprint) NewEntities(count int) []Entity {
	if count <= 0 {
		return nil
	}
	ents := make([]Entity, count)
	for i := range ents {
		ents[i] = b.NewEntity()
	}
	return ents
}

// place materializes a reserved handle inside the blueprint's archetype.
// Used by deferred command logs at playback time.
func (b *Blueprint) place(e Entity) error {
	if err := b.world.placeReserved(e, b.arch); err != nil {
		return err
	}
	b.zeroRow(e)
	return nil
}

// zeroRow clears the entity's component storage. Chunk rows are recycled by
// swap-remove, so a fresh entity may otherwise observe a removed entity's
// data.
func (b *Blueprint) zeroRow(e Entity) {
	w := b.world
	meta := w.entities.metas[e.ID]
	c := b.arch.chunks[meta.chunkIndex]
	for _, cid := range b.arch.compOrder {
		size := b.arch.compSizes[cid]
		ptr := unsafe.Pointer(uintptr(c.compPointers[cid]) + uintptr(meta.index)*size)
		memZero(ptr, size)
	}
}
