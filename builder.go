package kumitate

import "fmt"

// BuildBegan is published to the builder's event bus after the creation
// strategy has produced a handle but before any step runs. No entity is in
// scope for subscribers; use BuildEnded to observe the result.
type BuildBegan struct{}

// BuildEnded is published to the builder's event bus after the last step
// ran, carrying the wrapper for the realized entity.
type BuildEnded struct {
	Built Built
}

// Built is the post-build handle bundling the realized entity, the
// execution context it was built against, and the builder's variable map.
// It is handed to BuildEnded subscribers and returned by BuildWrapped.
type Built struct {
	entity Entity
	ctx    Context
	vars   *Vars
}

// Entity returns the realized entity handle.
func (b Built) Entity() Entity { return b.entity }

// Context returns the execution context the entity was built against.
func (b Built) Context() Context { return b.ctx }

// Vars returns the builder's variable map. Read it with Var; consumers must
// not mutate it.
func (b Built) Vars() *Vars { return b.vars }

// Builder declares, step by step, how a single logical entity is created
// and populated, then realizes that declaration on demand with Build. The
// same configured builder may be built any number of times, stamping out
// one independently populated entity per call.
//
// A builder is owned by one goroutine; only the deferred log it records
// into is designed for concurrent production across builders.
type Builder struct {
	steps    []Step
	index    map[StepKey]int
	strategy Strategy
	vars     *Vars
	events   EventBus
	prepare  func(Context) error
	built    bool
}

// NewBuilder creates an empty builder with the default Empty creation
// strategy and no steps.
func NewBuilder() *Builder {
	return &Builder{index: make(map[StepKey]int, 8)}
}

// AddStep appends step to the chain unconditionally, without
// de-duplication. The caller is responsible for not introducing a second
// element with an occupied key; prefer StepFor and GenericStepFor, which
// maintain the chain invariant.
func (b *Builder) AddStep(step Step) *Builder {
	k := step.Key()
	if _, ok := b.index[k]; !ok {
		b.index[k] = len(b.steps)
	}
	b.steps = append(b.steps, step)
	return b
}

// StepCount returns the number of elements in the step chain.
func (b *Builder) StepCount() int {
	return len(b.steps)
}

// SetStrategy replaces the active creation strategy. The last call before
// Build wins.
func (b *Builder) SetStrategy(s Strategy) *Builder {
	b.strategy = s
	return b
}

// OnPrepare sets the builder's pre-build hook. It runs after the creation
// strategy and the BuildBegan notification, before any step, and receives
// the execution context for context-dependent setup. A non-nil error aborts
// the build.
func (b *Builder) OnPrepare(fn func(Context) error) *Builder {
	b.prepare = fn
	return b
}

// OnPreBuild registers a callback invoked once per successful strategy
// creation, before any step runs. Multiple callbacks fire in registration
// order.
func (b *Builder) OnPreBuild(fn func()) *Builder {
	Subscribe(&b.events, func(BuildBegan) { fn() })
	return b
}

// OnPostBuild registers a callback invoked once per successful build, after
// the last step, with the wrapper for the realized entity. Multiple
// callbacks fire in registration order.
func (b *Builder) OnPostBuild(fn func(Built)) *Builder {
	Subscribe(&b.events, func(ev BuildEnded) { fn(ev.Built) })
	return b
}

// Events exposes the builder's event bus. BuildBegan and BuildEnded are
// published there; OnPreBuild and OnPostBuild are sugar over Subscribe.
func (b *Builder) Events() *EventBus {
	return &b.events
}

// Built reports whether this builder has successfully created an entity at
// least once. A builder is considered built as soon as a build's creation
// strategy succeeds, even if a later step fails.
func (b *Builder) Built() bool {
	return b.built
}

// Discard marks the end of the builder's life. It panics if the builder was
// never built: configuring a pipeline and dropping it unused is a defect
// this check surfaces in tests and debug paths, replacing
// finalizer-based leak detection.
func (b *Builder) Discard() {
	if !b.built {
		panic("kumitate: builder discarded without ever building")
	}
}

// Vars returns the builder's variable map, or nil if no variable was ever
// set. Reads through Var handle a nil map.
func (b *Builder) Vars() *Vars {
	return b.vars
}

// Build realizes the declared pipeline against the execution context:
// the creation strategy produces the handle, BuildBegan fires, the prepare
// hook runs, every step processes in insertion order, and BuildEnded fires
// with the wrapper. It returns the realized entity handle.
//
// Build may be called any number of times; each call independently re-runs
// the strategy and the full chain. Under a deferred context the returned
// handle is live but empty until the log plays back.
//
// A strategy failure aborts before any step and leaves the builder marked
// un-built for that and prior failed attempts; a step failure aborts the
// remaining chain with no rollback of earlier steps.
func (b *Builder) Build(ctx Context) (Entity, error) {
	wrapped, err := b.BuildWrapped(ctx)
	if err != nil {
		return Entity{}, err
	}
	return wrapped.entity, nil
}

// BuildWrapped is Build returning the post-build wrapper instead of a bare
// handle.
func (b *Builder) BuildWrapped(ctx Context) (Built, error) {
	strategy := b.strategy
	if strategy == nil {
		strategy = Empty()
	}
	e, err := strategy.Create(ctx, b.vars)
	if err != nil {
		return Built{}, fmt.Errorf("kumitate: creation strategy: %w", err)
	}
	b.built = true
	Publish(&b.events, BuildBegan{})
	if b.prepare != nil {
		if err := b.prepare(ctx); err != nil {
			return Built{}, fmt.Errorf("kumitate: prepare hook: %w", err)
		}
	}
	for _, s := range b.steps {
		if err := s.Process(ctx, b.vars, e); err != nil {
			return Built{}, fmt.Errorf("kumitate: step %T: %w", s, err)
		}
	}
	wrapped := Built{entity: e, ctx: ctx, vars: b.vars}
	Publish(&b.events, BuildEnded{Built: wrapped})
	return wrapped, nil
}

// Fluent declaration API. Single-valued setters share one step per concrete
// kind, so repeated calls overwrite and only the last value before Build is
// applied.

// SetName declares the entity's Name component.
func (b *Builder) SetName(name string) *Builder {
	StepFor(b, func() *nameStep { return &nameStep{} }).Set(Name{Value: name})
	return b
}

// SetTranslation declares the entity's Translation component.
func (b *Builder) SetTranslation(x, y, z float32) *Builder {
	StepFor(b, func() *translationStep { return &translationStep{} }).Set(Translation{X: x, Y: y, Z: z})
	return b
}

// SetRotation declares the entity's Rotation component.
func (b *Builder) SetRotation(x, y, z, w float32) *Builder {
	StepFor(b, func() *rotationStep { return &rotationStep{} }).Set(Rotation{X: x, Y: y, Z: z, W: w})
	return b
}

// SetScale declares the entity's Scale component.
func (b *Builder) SetScale(scale float32) *Builder {
	StepFor(b, func() *scaleStep { return &scaleStep{} }).Set(Scale{Value: scale})
	return b
}

// SetParent declares the entity's hierarchical parent.
func (b *Builder) SetParent(parent Entity) *Builder {
	StepFor(b, func() *parentStep { return &parentStep{} }).Set(parent)
	return b
}

// SetVariable stores val in the builder's variable map keyed by its own
// type, overwriting any prior value of that type. The map is allocated on
// first use; a builder that never sets a variable never allocates one.
func SetVariable[T any](b *Builder, val T) *Builder {
	if b.vars == nil {
		b.vars = &Vars{}
	}
	SetVar(b.vars, val)
	return b
}

// Variable reads a value from the builder's variable map.
func Variable[T any](b *Builder) (T, bool) {
	return Var[T](b.vars)
}

// With declares a component of type `T` with the given data. The generic
// slot for `T` is claimed for "component with data"; combining it with
// WithType, WithShared, or WithBuffer for the same `T` in one chain panics.
func With[T any](b *Builder, val T) *Builder {
	GenericStepFor[*componentStep[T], T](b, func() *componentStep[T] { return &componentStep[T]{} }).Set(val)
	return b
}

// WithType declares a component of type `T` present, zero-valued.
func WithType[T any](b *Builder) *Builder {
	GenericStepFor[*presenceStep[T], T](b, func() *presenceStep[T] { return &presenceStep[T]{} })
	return b
}

// WithShared declares a shared component value of type `T`.
func WithShared[T comparable](b *Builder, val T) *Builder {
	GenericStepFor[*sharedStep[T], T](b, func() *sharedStep[T] { return &sharedStep[T]{} }).Set(val)
	return b
}

// WithBuffer declares buffer elements of element type `T`. Unlike the
// single-valued setters this accumulates: every call appends to the same
// step, and all elements are applied in call order by one step execution.
func WithBuffer[T any](b *Builder, elems ...T) *Builder {
	GenericStepFor[*bufferStep[T], T](b, func() *bufferStep[T] { return &bufferStep[T]{} }).Add(elems...)
	return b
}

// WithVariable declares a component of type `T` whose value is read from
// the builder's variable map at build time. Setting the variable after the
// declaration, or between builds, changes what subsequent builds apply.
func WithVariable[T any](b *Builder) *Builder {
	GenericStepFor[*varComponentStep[T], T](b, func() *varComponentStep[T] { return &varComponentStep[T]{} })
	return b
}
