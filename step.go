package kumitate

import (
	"fmt"
	"reflect"
)

// StepKey is the de-duplication key of a chain element. Exactly one of its
// fields is set: Kind for typed steps (one instance per concrete step type)
// and Carried for generic steps (one slot per carried value type across the
// whole chain, regardless of which concrete kind claimed it).
type StepKey struct {
	Kind    reflect.Type
	Carried reflect.Type
}

// KindKey returns the StepKey for the concrete step type `S`.
func KindKey[S any]() StepKey {
	return StepKey{Kind: reflect.TypeFor[S]()}
}

// CarriedKey returns the StepKey for the carried value type `V`.
func CarriedKey[V any]() StepKey {
	return StepKey{Carried: reflect.TypeFor[V]()}
}

// Step is one deferred unit of entity mutation within a build pipeline.
// Steps mutate the entity through the execution context only; under a
// deferred context they must not assume their effects are visible to later
// steps of the same build.
type Step interface {
	// Key returns the step's de-duplication key. The chain never holds
	// two elements with the same key.
	Key() StepKey

	// Process applies the step's mutation to the entity. A non-nil error
	// aborts the remaining chain.
	Process(ctx Context, vars *Vars, e Entity) error
}

// StepFor returns the chain element of concrete step type `S`, creating and
// appending a new one via newStep if absent. Repeated calls for the same
// type mutate the same element in place; the chain position is fixed by the
// first call.
//
// All single-valued fluent setters are built on this, which is what gives
// them last-write-wins semantics.
func StepFor[S Step](b *Builder, newStep func() S) S {
	k := KindKey[S]()
	if i, ok := b.index[k]; ok {
		return b.steps[i].(S)
	}
	s := newStep()
	b.AddStep(s)
	return s
}

// GenericStepFor returns the chain element occupying the generic slot for
// carried value type `V`, creating and appending a new step via newStep if
// the slot is empty.
//
// The slot is keyed by `V` alone, not by the concrete step kind: alternative
// ways of declaring the same value type (with data, presence-only, shared,
// buffered) are mutually exclusive within one chain. Resolving an occupied
// slot as a different concrete kind is a programming error and panics.
func GenericStepFor[S Step, V any](b *Builder, newStep func() S) S {
	k := CarriedKey[V]()
	if i, ok := b.index[k]; ok {
		s, ok := b.steps[i].(S)
		if !ok {
			panic(fmt.Sprintf("kumitate: step slot for %v is held by %T, cannot resolve as %v",
				reflect.TypeFor[V](), b.steps[i], reflect.TypeFor[S]()))
		}
		return s
	}
	s := newStep()
	b.AddStep(s)
	return s
}
