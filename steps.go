package kumitate

import "reflect"

// Typed steps: one instance per concrete step type, single payload,
// last write before build wins.

type nameStep struct {
	value Name
}

func (s *nameStep) Set(v Name) { s.value = v }

func (s *nameStep) Key() StepKey { return KindKey[*nameStep]() }

func (s *nameStep) Process(ctx Context, _ *Vars, e Entity) error {
	return SetComponentIn(ctx, e, s.value)
}

type translationStep struct {
	value Translation
}

func (s *translationStep) Set(v Translation) { s.value = v }

func (s *translationStep) Key() StepKey { return KindKey[*translationStep]() }

func (s *translationStep) Process(ctx Context, _ *Vars, e Entity) error {
	return SetComponentIn(ctx, e, s.value)
}

type rotationStep struct {
	value Rotation
}

func (s *rotationStep) Set(v Rotation) { s.value = v }

func (s *rotationStep) Key() StepKey { return KindKey[*rotationStep]() }

func (s *rotationStep) Process(ctx Context, _ *Vars, e Entity) error {
	return SetComponentIn(ctx, e, s.value)
}

type scaleStep struct {
	value Scale
}

func (s *scaleStep) Set(v Scale) { s.value = v }

func (s *scaleStep) Key() StepKey { return KindKey[*scaleStep]() }

func (s *scaleStep) Process(ctx Context, _ *Vars, e Entity) error {
	return SetComponentIn(ctx, e, s.value)
}

type parentStep struct {
	parent Entity
}

func (s *parentStep) Set(parent Entity) { s.parent = parent }

func (s *parentStep) Key() StepKey { return KindKey[*parentStep]() }

func (s *parentStep) Process(ctx Context, _ *Vars, e Entity) error {
	return SetParentIn(ctx, e, s.parent)
}

// Generic steps: one slot per carried value type across the whole chain.

// componentStep sets a component of type T with data.
type componentStep[T any] struct {
	value T
}

func (s *componentStep[T]) Set(v T) { s.value = v }

func (s *componentStep[T]) Key() StepKey { return CarriedKey[T]() }

func (s *componentStep[T]) Process(ctx Context, _ *Vars, e Entity) error {
	return SetComponentIn(ctx, e, s.value)
}

// presenceStep declares a component of type T present, zero-valued.
type presenceStep[T any] struct{}

func (s *presenceStep[T]) Key() StepKey { return CarriedKey[T]() }

func (s *presenceStep[T]) Process(ctx Context, _ *Vars, e Entity) error {
	return AddComponentIn[T](ctx, e)
}

// sharedStep associates a shared value of type T.
type sharedStep[T comparable] struct {
	value T
}

func (s *sharedStep[T]) Set(v T) { s.value = v }

func (s *sharedStep[T]) Key() StepKey { return CarriedKey[T]() }

func (s *sharedStep[T]) Process(ctx Context, _ *Vars, e Entity) error {
	return SetSharedIn(ctx, e, s.value)
}

// bufferStep accumulates buffer elements of type T. All accumulated
// elements are applied by one Process call, in the order they were added.
type bufferStep[T any] struct {
	elems []T
}

func (s *bufferStep[T]) Add(elems ...T) { s.elems = append(s.elems, elems...) }

func (s *bufferStep[T]) Key() StepKey { return CarriedKey[T]() }

func (s *bufferStep[T]) Process(ctx Context, _ *Vars, e Entity) error {
	return AppendBufferIn(ctx, e, s.elems...)
}

// varComponentStep sets a component of type T whose value is read from the
// variable map at build time rather than captured at declaration time.
type varComponentStep[T any] struct{}

func (s *varComponentStep[T]) Key() StepKey { return CarriedKey[T]() }

func (s *varComponentStep[T]) Process(ctx Context, vars *Vars, e Entity) error {
	val, ok := Var[T](vars)
	if !ok {
		return &MissingVariableError{Type: reflect.TypeFor[T]()}
	}
	return SetComponentIn(ctx, e, val)
}

// MissingVariableError reports a variable-driven step whose variable was
// never set before build.
type MissingVariableError struct {
	Type reflect.Type
}

func (e *MissingVariableError) Error() string {
	return "kumitate: no variable of type " + e.Type.String() + " set before build"
}
