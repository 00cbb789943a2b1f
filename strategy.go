package kumitate

import "errors"

// ErrNilBlueprint is returned when a FromBlueprint strategy was constructed
// with a nil blueprint.
var ErrNilBlueprint = errors.New("kumitate: nil blueprint")

// Strategy is the pluggable policy that produces the initial entity handle
// before any step runs. Strategies are stateless beyond their construction
// parameters and must not retain the produced handle.
type Strategy interface {
	Create(ctx Context, vars *Vars) (Entity, error)
}

type emptyStrategy struct{}

// Empty returns the default creation strategy: a brand-new entity with no
// predefined shape.
func Empty() Strategy {
	return emptyStrategy{}
}

func (emptyStrategy) Create(ctx Context, _ *Vars) (Entity, error) {
	return NewEntityIn(ctx), nil
}

type blueprintStrategy struct {
	bp *Blueprint
}

// FromBlueprint returns a creation strategy that instantiates entities whose
// initial component set is fixed by the blueprint.
func FromBlueprint(bp *Blueprint) Strategy {
	return blueprintStrategy{bp: bp}
}

func (s blueprintStrategy) Create(ctx Context, _ *Vars) (Entity, error) {
	if s.bp == nil {
		return Entity{}, ErrNilBlueprint
	}
	return NewFromBlueprintIn(ctx, s.bp), nil
}

type prefabStrategy struct {
	prefab Entity
}

// FromPrefab returns a creation strategy that clones the shape and data of
// an existing template entity.
func FromPrefab(prefab Entity) Strategy {
	return prefabStrategy{prefab: prefab}
}

func (s prefabStrategy) Create(ctx Context, _ *Vars) (Entity, error) {
	return InstantiateIn(ctx, s.prefab)
}
