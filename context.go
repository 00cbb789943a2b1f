package kumitate

// Context is the uniform mutation surface a build pipeline runs against.
// Creation strategies and steps are written purely against it and stay
// agnostic to whether operations land in the world immediately or are
// recorded for later playback.
//
// Three implementations exist: Immediate (direct world mutation,
// single-threaded), CommandLog (single-threaded deferred log), and the
// lanes of a ParallelCommandLog (thread-indexed deferred log). The
// interface is closed; external types cannot implement it.
type Context interface {
	// World returns the world this context mutates.
	World() *World

	// apply executes the command now (immediate) or records it for
	// playback (deferred). A deferred context always returns nil here;
	// command errors surface from Playback instead.
	apply(cmd func(*World) error) error

	// newEntity produces a live handle for a brand-new empty entity.
	newEntity() Entity

	// newFromBlueprint produces a live handle for an entity with the
	// blueprint's component set.
	newFromBlueprint(bp *Blueprint) Entity

	// instantiate produces a live handle for a clone of prefab.
	instantiate(prefab Entity) (Entity, error)
}

// immediateContext applies every operation directly to the world. It must
// only ever be driven from a single goroutine.
type immediateContext struct {
	w *World
}

// Immediate returns a Context that mutates the world directly. Effects are
// visible to subsequent steps within the same build.
func Immediate(w *World) Context {
	return &immediateContext{w: w}
}

func (c *immediateContext) World() *World {
	return c.w
}

func (c *immediateContext) apply(cmd func(*World) error) error {
	return cmd(c.w)
}

func (c *immediateContext) newEntity() Entity {
	return c.w.CreateEntity()
}

func (c *immediateContext) newFromBlueprint(bp *Blueprint) Entity {
	return bp.NewEntity()
}

func (c *immediateContext) instantiate(prefab Entity) (Entity, error) {
	return c.w.Instantiate(prefab)
}

// SetComponentIn adds or updates the component of type `T` on the entity,
// through the given context.
func SetComponentIn[T any](ctx Context, e Entity, val T) error {
	return ctx.apply(func(w *World) error {
		if !SetComponent(w, e, val) {
			return ErrDeadEntity
		}
		return nil
	})
}

// AddComponentIn ensures the entity has a zero-valued component of type `T`,
// through the given context. Existing data is left untouched.
func AddComponentIn[T any](ctx Context, e Entity) error {
	return ctx.apply(func(w *World) error {
		if AddComponent[T](w, e) == nil {
			return ErrDeadEntity
		}
		return nil
	})
}

// RemoveComponentIn removes the component of type `T` from the entity,
// through the given context.
func RemoveComponentIn[T any](ctx Context, e Entity) error {
	return ctx.apply(func(w *World) error {
		RemoveComponent[T](w, e)
		return nil
	})
}

// SetSharedIn associates the shared value of type `T` with the entity,
// through the given context.
func SetSharedIn[T comparable](ctx Context, e Entity, val T) error {
	return ctx.apply(func(w *World) error {
		if !SetShared(w, e, val) {
			return ErrDeadEntity
		}
		return nil
	})
}

// RemoveSharedIn dissociates the shared value of type `T` from the entity,
// through the given context.
func RemoveSharedIn[T comparable](ctx Context, e Entity) error {
	return ctx.apply(func(w *World) error {
		RemoveShared[T](w, e)
		return nil
	})
}

// AppendBufferIn appends elements to the entity's buffer of element type
// `T`, through the given context.
func AppendBufferIn[T any](ctx Context, e Entity, elems ...T) error {
	return ctx.apply(func(w *World) error {
		if !AppendBuffer(w, e, elems...) {
			return ErrDeadEntity
		}
		return nil
	})
}

// SetParentIn links child to parent, through the given context.
func SetParentIn(ctx Context, child, parent Entity) error {
	return ctx.apply(func(w *World) error {
		if !SetParentOf(w, child, parent) {
			return ErrDeadEntity
		}
		return nil
	})
}

// NewEntityIn produces a brand-new empty entity through the given context.
// Under a deferred context the handle is reserved immediately but carries no
// components until playback.
func NewEntityIn(ctx Context) Entity {
	return ctx.newEntity()
}

// NewFromBlueprintIn produces an entity with the blueprint's component set
// through the given context.
func NewFromBlueprintIn(ctx Context, bp *Blueprint) Entity {
	return ctx.newFromBlueprint(bp)
}

// InstantiateIn produces a clone of prefab through the given context. Under
// a deferred context the prefab's validity is checked against the world as
// it will exist at playback time.
func InstantiateIn(ctx Context, prefab Entity) (Entity, error) {
	return ctx.instantiate(prefab)
}
