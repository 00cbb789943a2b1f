package kumitate

import "reflect"

// Vars is a type-keyed store holding at most one value per concrete type. It
// backs the per-builder variable map that creation strategies, steps, and
// post-build consumers share, and doubles as the world's global variable
// store. The zero value is ready to use; a Vars that is never written never
// allocates.
//
// Vars is owned by a single builder (or the world) and must not be mutated
// concurrently.
type Vars struct {
	types map[reflect.Type]int
	items []any
}

// Len returns the number of stored variables.
func (v *Vars) Len() int {
	if v == nil {
		return 0
	}
	return len(v.types)
}

// Clear removes all stored variables, keeping allocated capacity.
func (v *Vars) Clear() {
	if v == nil {
		return
	}
	clear(v.types)
	v.items = v.items[:0]
}

// set stores val under key t, replacing any existing value of that type.
func (v *Vars) set(t reflect.Type, val any) {
	if v.types == nil {
		v.types = make(map[reflect.Type]int, 4)
	}
	if idx, ok := v.types[t]; ok {
		v.items[idx] = val
		return
	}
	v.types[t] = len(v.items)
	v.items = append(v.items, val)
}

// get returns the value stored under key t, if any.
func (v *Vars) get(t reflect.Type) (any, bool) {
	if v == nil || v.types == nil {
		return nil, false
	}
	idx, ok := v.types[t]
	if !ok {
		return nil, false
	}
	return v.items[idx], true
}

// SetVar stores val keyed by its own type `T`, overwriting any prior value
// of that type.
//
// Parameters:
//   - v: The Vars store to write to.
//   - val: The value to store.
func SetVar[T any](v *Vars, val T) {
	v.set(reflect.TypeFor[T](), val)
}

// Var retrieves the stored value of type `T`.
//
// Parameters:
//   - v: The Vars store to read. A nil store is treated as empty.
//
// Returns:
//   - The stored value and true, or the zero value and false if absent.
func Var[T any](v *Vars) (T, bool) {
	raw, ok := v.get(reflect.TypeFor[T]())
	if !ok {
		var zero T
		return zero, false
	}
	return raw.(T), true
}

// HasVar reports whether a value of type `T` is stored.
func HasVar[T any](v *Vars) bool {
	_, ok := v.get(reflect.TypeFor[T]())
	return ok
}
