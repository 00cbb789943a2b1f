package kumitate_test

import (
	"errors"
	"testing"

	"github.com/edwinsyarief/kumitate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Gun struct {
	Ammo int
}

type Armor struct {
	Rating int
}

type Waypoint struct {
	X, Y float32
}

// recordStep captures the entity handed to the chain, so tests can inspect
// partial state after an aborted build.
type recordStep struct {
	got *kumitate.Entity
}

func (s *recordStep) Key() kumitate.StepKey {
	return kumitate.KindKey[*recordStep]()
}

func (s *recordStep) Process(_ kumitate.Context, _ *kumitate.Vars, e kumitate.Entity) error {
	*s.got = e
	return nil
}

// tagStep appends its tag to a shared trace, for ordering assertions.
type tagStep struct {
	tag   string
	trace *[]string
}

func (s *tagStep) Key() kumitate.StepKey {
	return kumitate.KindKey[*tagStep]()
}

func (s *tagStep) Process(_ kumitate.Context, _ *kumitate.Vars, _ kumitate.Entity) error {
	*s.trace = append(*s.trace, s.tag)
	return nil
}

// observeNameStep reads the entity's Name at its own position in the chain.
// Only meaningful under an immediate context, where earlier steps are
// already visible.
type observeNameStep struct {
	seen *string
}

func (s *observeNameStep) Key() kumitate.StepKey {
	return kumitate.KindKey[*observeNameStep]()
}

func (s *observeNameStep) Process(ctx kumitate.Context, _ *kumitate.Vars, e kumitate.Entity) error {
	if n := kumitate.GetComponent[kumitate.Name](ctx.World(), e); n != nil {
		*s.seen = n.Value
	}
	return nil
}

func TestBuildEmpty(t *testing.T) {
	world := kumitate.NewWorld(16)
	b := kumitate.NewBuilder()

	e, err := b.Build(kumitate.Immediate(world))
	require.NoError(t, err)
	assert.True(t, world.IsValid(e))
	assert.False(t, kumitate.HasComponent[Position](world, e))
	assert.Equal(t, 0, b.StepCount())
}

func TestBuildFluentChain(t *testing.T) {
	world := kumitate.NewWorld(16)
	b := kumitate.NewBuilder().
		SetName("hero").
		SetTranslation(1, 2, 3).
		SetRotation(0, 0, 0, 1).
		SetScale(2)

	e, err := b.Build(kumitate.Immediate(world))
	require.NoError(t, err)

	name := kumitate.GetComponent[kumitate.Name](world, e)
	require.NotNil(t, name)
	assert.Equal(t, "hero", name.Value)

	tr := kumitate.GetComponent[kumitate.Translation](world, e)
	require.NotNil(t, tr)
	assert.Equal(t, float32(1), tr.X)
	assert.Equal(t, float32(3), tr.Z)

	rot := kumitate.GetComponent[kumitate.Rotation](world, e)
	require.NotNil(t, rot)
	assert.Equal(t, float32(1), rot.W)

	sc := kumitate.GetComponent[kumitate.Scale](world, e)
	require.NotNil(t, sc)
	assert.Equal(t, float32(2), sc.Value)
}

func TestStepDeduplication(t *testing.T) {
	world := kumitate.NewWorld(16)

	t.Run("LastNameWins", func(t *testing.T) {
		b := kumitate.NewBuilder().
			SetName("first").
			SetTranslation(1, 0, 0).
			SetName("second")
		assert.Equal(t, 2, b.StepCount())

		e, err := b.Build(kumitate.Immediate(world))
		require.NoError(t, err)
		assert.Equal(t, "second", kumitate.GetComponent[kumitate.Name](world, e).Value)
	})

	t.Run("LastComponentValueWins", func(t *testing.T) {
		b := kumitate.NewBuilder()
		kumitate.With(b, Gun{Ammo: 10})
		kumitate.With(b, Gun{Ammo: 30})
		assert.Equal(t, 1, b.StepCount())

		e, err := b.Build(kumitate.Immediate(world))
		require.NoError(t, err)
		assert.Equal(t, 30, kumitate.GetComponent[Gun](world, e).Ammo)
	})

	t.Run("PositionFixedByFirstCall", func(t *testing.T) {
		var seen string
		b := kumitate.NewBuilder()
		b.SetName("a")
		b.AddStep(&observeNameStep{seen: &seen})
		b.SetName("b") // re-declares in place, must not move the name step after the observer

		_, err := b.Build(kumitate.Immediate(world))
		require.NoError(t, err)
		assert.Equal(t, 2, b.StepCount())
		assert.Equal(t, "b", seen)
	})
}

func TestGenericSlotConflictPanics(t *testing.T) {
	b := kumitate.NewBuilder()
	kumitate.With(b, Gun{Ammo: 5})

	assert.Panics(t, func() {
		kumitate.WithType[Gun](b)
	})
	assert.Panics(t, func() {
		kumitate.WithShared(b, Gun{Ammo: 5})
	})
	assert.Panics(t, func() {
		kumitate.WithBuffer(b, Gun{Ammo: 1})
	})
}

func TestWithType(t *testing.T) {
	world := kumitate.NewWorld(16)
	b := kumitate.NewBuilder()
	kumitate.WithType[Armor](b)

	e, err := b.Build(kumitate.Immediate(world))
	require.NoError(t, err)
	a := kumitate.GetComponent[Armor](world, e)
	require.NotNil(t, a)
	assert.Equal(t, 0, a.Rating)
}

func TestWithShared(t *testing.T) {
	world := kumitate.NewWorld(16)
	b := kumitate.NewBuilder()
	kumitate.WithShared(b, Material{Shader: "lit"})

	e1, err := b.Build(kumitate.Immediate(world))
	require.NoError(t, err)
	e2, err := b.Build(kumitate.Immediate(world))
	require.NoError(t, err)

	m1, ok := kumitate.GetShared[Material](world, e1)
	require.True(t, ok)
	m2, _ := kumitate.GetShared[Material](world, e2)
	assert.Equal(t, m1, m2)
}

func TestWithBufferAccumulates(t *testing.T) {
	world := kumitate.NewWorld(16)
	b := kumitate.NewBuilder()
	kumitate.WithBuffer(b, Waypoint{X: 1}, Waypoint{X: 2})
	kumitate.WithBuffer(b, Waypoint{X: 3})
	assert.Equal(t, 1, b.StepCount())

	e, err := b.Build(kumitate.Immediate(world))
	require.NoError(t, err)
	wps := kumitate.GetBuffer[Waypoint](world, e)
	require.Len(t, wps, 3)
	assert.Equal(t, float32(1), wps[0].X)
	assert.Equal(t, float32(2), wps[1].X)
	assert.Equal(t, float32(3), wps[2].X)
}

func TestStepExecutionOrder(t *testing.T) {
	world := kumitate.NewWorld(16)
	var trace []string
	b := kumitate.NewBuilder()

	b.AddStep(&tagStep{tag: "first", trace: &trace})
	b.SetName("middle")
	b.OnPrepare(func(kumitate.Context) error {
		trace = append(trace, "prepare")
		return nil
	})
	b.OnPreBuild(func() { trace = append(trace, "pre") })
	b.OnPostBuild(func(kumitate.Built) { trace = append(trace, "post") })

	_, err := b.Build(kumitate.Immediate(world))
	require.NoError(t, err)
	assert.Equal(t, []string{"pre", "prepare", "first", "post"}, trace)
}

func TestBuildCallbacks(t *testing.T) {
	world := kumitate.NewWorld(16)

	t.Run("RegistrationOrder", func(t *testing.T) {
		var order []int
		b := kumitate.NewBuilder()
		for i := 0; i < 3; i++ {
			i := i
			b.OnPostBuild(func(kumitate.Built) { order = append(order, i) })
		}
		_, err := b.Build(kumitate.Immediate(world))
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 2}, order)
	})

	t.Run("WrapperIdentity", func(t *testing.T) {
		ctx := kumitate.Immediate(world)
		var seen kumitate.Built
		b := kumitate.NewBuilder().SetName("x")
		b.OnPostBuild(func(built kumitate.Built) { seen = built })

		wrapped, err := b.BuildWrapped(ctx)
		require.NoError(t, err)
		assert.Equal(t, wrapped.Entity(), seen.Entity())
		assert.Equal(t, ctx, seen.Context())
	})

	t.Run("FirePerBuild", func(t *testing.T) {
		pre, post := 0, 0
		b := kumitate.NewBuilder().
			OnPreBuild(func() { pre++ }).
			OnPostBuild(func(kumitate.Built) { post++ })
		_, err := b.Build(kumitate.Immediate(world))
		require.NoError(t, err)
		_, err = b.Build(kumitate.Immediate(world))
		require.NoError(t, err)
		assert.Equal(t, 2, pre)
		assert.Equal(t, 2, post)
	})
}

func TestBuildTwiceStampsDistinctEntities(t *testing.T) {
	world := kumitate.NewWorld(16)
	b := kumitate.NewBuilder().SetName("clone")
	kumitate.With(b, Gun{Ammo: 12})

	e1, err := b.Build(kumitate.Immediate(world))
	require.NoError(t, err)
	e2, err := b.Build(kumitate.Immediate(world))
	require.NoError(t, err)

	assert.NotEqual(t, e1, e2)
	kumitate.GetComponent[Gun](world, e1).Ammo = 0
	assert.Equal(t, 12, kumitate.GetComponent[Gun](world, e2).Ammo)
}

func TestBuildFromBlueprint(t *testing.T) {
	world := kumitate.NewWorld(16)
	bp := kumitate.NewBlueprint2[Position, Health](world)
	b := kumitate.NewBuilder().
		SetStrategy(kumitate.FromBlueprint(bp)).
		SetName("unit")

	e, err := b.Build(kumitate.Immediate(world))
	require.NoError(t, err)
	assert.NotNil(t, kumitate.GetComponent[Position](world, e))
	assert.NotNil(t, kumitate.GetComponent[Health](world, e))
	assert.Equal(t, "unit", kumitate.GetComponent[kumitate.Name](world, e).Value)

	t.Run("NilBlueprint", func(t *testing.T) {
		b := kumitate.NewBuilder().SetStrategy(kumitate.FromBlueprint(nil))
		_, err := b.Build(kumitate.Immediate(world))
		require.Error(t, err)
		assert.ErrorIs(t, err, kumitate.ErrNilBlueprint)
	})
}

func TestBuildFromPrefab(t *testing.T) {
	world := kumitate.NewWorld(16)
	prefab := world.CreateEntity()
	kumitate.SetComponent(world, prefab, Gun{Ammo: 7})

	b := kumitate.NewBuilder().SetStrategy(kumitate.FromPrefab(prefab))
	e, err := b.Build(kumitate.Immediate(world))
	require.NoError(t, err)
	assert.NotEqual(t, prefab, e)
	assert.Equal(t, 7, kumitate.GetComponent[Gun](world, e).Ammo)
}

func TestStrategyFailureAbortsBeforeSteps(t *testing.T) {
	world := kumitate.NewWorld(16)
	dead := world.CreateEntity()
	world.RemoveEntity(dead)

	pre := 0
	var trace []string
	b := kumitate.NewBuilder().
		SetStrategy(kumitate.FromPrefab(dead)).
		OnPreBuild(func() { pre++ })
	b.AddStep(&tagStep{tag: "ran", trace: &trace})

	_, err := b.Build(kumitate.Immediate(world))
	require.Error(t, err)
	assert.ErrorIs(t, err, kumitate.ErrInvalidPrefab)
	assert.False(t, b.Built())
	assert.Zero(t, pre)
	assert.Empty(t, trace)

	// The builder stays usable: retry with a working strategy
	b.SetStrategy(kumitate.Empty())
	_, err = b.Build(kumitate.Immediate(world))
	require.NoError(t, err)
	assert.True(t, b.Built())
	assert.Equal(t, 1, pre)
}

func TestStepFailureAbortsRemainingChain(t *testing.T) {
	world := kumitate.NewWorld(16)
	dead := world.CreateEntity()
	world.RemoveEntity(dead)

	var got kumitate.Entity
	var trace []string
	b := kumitate.NewBuilder()
	b.AddStep(&recordStep{got: &got})
	b.SetName("partial")
	b.SetParent(dead) // fails: dead parent
	b.AddStep(&tagStep{tag: "after", trace: &trace})

	_, err := b.Build(kumitate.Immediate(world))
	require.Error(t, err)
	assert.ErrorIs(t, err, kumitate.ErrDeadEntity)

	// No rollback: steps before the failure stay applied
	name := kumitate.GetComponent[kumitate.Name](world, got)
	require.NotNil(t, name)
	assert.Equal(t, "partial", name.Value)
	// Steps after the failure never ran
	assert.Empty(t, trace)
	// Creation succeeded, so the builder counts as built
	assert.True(t, b.Built())
}

func TestBuildWithVariables(t *testing.T) {
	world := kumitate.NewWorld(16)

	t.Run("VariableDrivenComponent", func(t *testing.T) {
		b := kumitate.NewBuilder()
		kumitate.WithVariable[Health](b)
		kumitate.SetVariable(b, Health{Current: 50, Max: 100})

		e, err := b.Build(kumitate.Immediate(world))
		require.NoError(t, err)
		h := kumitate.GetComponent[Health](world, e)
		require.NotNil(t, h)
		assert.Equal(t, 50, h.Current)

		// Changing the variable between builds changes the next entity
		kumitate.SetVariable(b, Health{Current: 99, Max: 100})
		e2, err := b.Build(kumitate.Immediate(world))
		require.NoError(t, err)
		assert.Equal(t, 99, kumitate.GetComponent[Health](world, e2).Current)
		assert.Equal(t, 50, kumitate.GetComponent[Health](world, e).Current)
	})

	t.Run("MissingVariable", func(t *testing.T) {
		b := kumitate.NewBuilder()
		kumitate.WithVariable[Armor](b)

		_, err := b.Build(kumitate.Immediate(world))
		require.Error(t, err)
		var missing *kumitate.MissingVariableError
		require.True(t, errors.As(err, &missing))
		assert.Contains(t, missing.Error(), "Armor")
	})

	t.Run("ReadBack", func(t *testing.T) {
		b := kumitate.NewBuilder()
		kumitate.SetVariable(b, Armor{Rating: 3})
		a, ok := kumitate.Variable[Armor](b)
		require.True(t, ok)
		assert.Equal(t, 3, a.Rating)
		_, ok = kumitate.Variable[Health](b)
		assert.False(t, ok)
	})
}

func TestBuilderDiscard(t *testing.T) {
	world := kumitate.NewWorld(16)

	t.Run("NeverBuiltPanics", func(t *testing.T) {
		b := kumitate.NewBuilder().SetName("wasted")
		assert.Panics(t, func() { b.Discard() })
	})

	t.Run("BuiltIsQuiet", func(t *testing.T) {
		b := kumitate.NewBuilder()
		_, err := b.Build(kumitate.Immediate(world))
		require.NoError(t, err)
		assert.NotPanics(t, func() { b.Discard() })
	})
}

func TestSetParentStep(t *testing.T) {
	world := kumitate.NewWorld(16)
	parent := world.CreateEntity()

	b := kumitate.NewBuilder().SetParent(parent)
	e, err := b.Build(kumitate.Immediate(world))
	require.NoError(t, err)

	got, ok := kumitate.ParentOf(world, e)
	require.True(t, ok)
	assert.Equal(t, parent, got)
}
