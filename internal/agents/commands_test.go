package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wct097/saintaveline/internal/world"
)

func TestFollowObeyedThenIdlesNearOwner(t *testing.T) {
	f := newFixture(t)
	fx := &recordingEffects{}
	daughter := f.spawn(t, SpawnSpec{
		Archetype: ArchDaughter,
		Owner:     f.player,
		Position:  world.V3(0, 0, -1),
		Effects:   fx,
	})
	daughter.Profile.Personality = Personality{Agreeableness: 0.7, Bravery: 0.4, Independence: 0.3}
	cmds := NewCommands(nil)

	require.NoError(t, cmds.Execute(daughter, "follow", CommandArgs{}))
	assert.Equal(t, StateFollow, daughter.StateName())
	assert.Equal(t, 1, fx.blinks)

	mover := daughter.Movement.(*world.Mover)
	for i := 0; i < 30 && daughter.StateName() == StateFollow; i++ {
		mover.Advance(0.1)
		daughter.Tick(0.1)
	}
	assert.Equal(t, StateFollowIdle, daughter.StateName())
	assert.Less(t, daughter.Position().Dist(f.player.Position()), daughter.Config.StopDistance)

	f.player.MoveTo(world.V3(0, 0, 6))
	daughter.Tick(0.1)
	assert.Equal(t, StateFollow, daughter.StateName())

	f.player.MoveTo(world.V3(0, 0, 40))
	daughter.Tick(0.1)
	assert.Equal(t, StateFollowIdle, daughter.StateName(), "owner out of range")
}

func TestFollowRefusedStays(t *testing.T) {
	f := newFixture(t)
	daughter := f.spawn(t, SpawnSpec{Archetype: ArchDaughter, Owner: f.player})
	daughter.Policy = PolicyFunc(func(float64, float64, Personality, RelationshipTraits) Decision {
		return Refuse
	})

	require.NoError(t, NewCommands(nil).Execute(daughter, "follow", CommandArgs{}))
	assert.Equal(t, StateStay, daughter.StateName())
	assert.Contains(t, daughter.Memories[len(daughter.Memories)-1].Content, "refuse")
}

func TestDistrustfulAgentRefusesDefaultPolicy(t *testing.T) {
	f := newFixture(t)
	grandfather := f.spawn(t, SpawnSpec{Archetype: ArchGrandfather, Owner: f.player})
	grandfather.Profile.Personality = Personality{Agreeableness: 0.1, Bravery: 0.1, Independence: 1}
	grandfather.Profile.SetRelationship(f.player.ID(), RelationshipTraits{Trust: 0.1, Love: 0.1, Fear: 0.9})

	require.NoError(t, NewCommands(nil).Execute(grandfather, "follow", CommandArgs{}))
	assert.Equal(t, StateStay, grandfather.StateName())
}

func TestGoToLabelledPoint(t *testing.T) {
	f := newFixture(t)
	daughter := f.spawn(t, SpawnSpec{Archetype: ArchDaughter, Owner: f.player})
	cmds := NewCommands(map[string]world.Vec3{"cellar": world.V3(4, 0, 0)})
	assert.Equal(t, []string{"follow", "goto", "stay"}, cmds.Available(daughter))

	err := cmds.Execute(daughter, "goto", CommandArgs{Label: "attic"})
	require.ErrorIs(t, err, ErrUnknownPoint)
	assert.Equal(t, StateStay, daughter.StateName())

	require.NoError(t, cmds.Execute(daughter, "goto", CommandArgs{Label: "cellar"}))
	require.Equal(t, StateGoTo, daughter.StateName())

	mover := daughter.Movement.(*world.Mover)
	for i := 0; i < 30 && daughter.StateName() == StateGoTo; i++ {
		mover.Advance(0.1)
		daughter.Tick(0.1)
	}
	assert.Equal(t, StateStay, daughter.StateName())
	assert.InDelta(t, 4, daughter.Position().X, daughter.Config.ArrivalThreshold)
}

func TestCommandRejections(t *testing.T) {
	f := newFixture(t)
	cmds := NewCommands(nil)
	guard := f.spawn(t, SpawnSpec{Archetype: ArchRaiderGuard})
	daughter := f.spawn(t, SpawnSpec{Archetype: ArchDaughter, Owner: f.player})

	assert.ErrorIs(t, cmds.Execute(guard, "stay", CommandArgs{}), ErrWrongKind)
	assert.Empty(t, cmds.Available(guard))
	assert.ErrorIs(t, cmds.Execute(daughter, "dance", CommandArgs{}), ErrUnknownCommand)
	assert.Equal(t, []string{"follow", "stay"}, cmds.Available(daughter), "goto needs a labelled point")

	orphan := f.spawn(t, SpawnSpec{Archetype: ArchGrandfather})
	assert.ErrorIs(t, cmds.Execute(orphan, "follow", CommandArgs{}), ErrNoTarget)

	daughter.TakeDamage(500)
	assert.ErrorIs(t, cmds.Execute(daughter, "stay", CommandArgs{}), ErrDead)
	assert.Equal(t, StateDeath, daughter.StateName())
}

func TestRegisteredCommandRuns(t *testing.T) {
	f := newFixture(t)
	daughter := f.spawn(t, SpawnSpec{Archetype: ArchDaughter, Owner: f.player})
	cmds := NewCommands(nil)
	cmds.Register("wait_here", func(a *Agent, _ CommandArgs) error {
		p := a.Position()
		s, err := NewGoTo(a, p)
		if err != nil {
			return err
		}
		return a.SetState(s)
	})

	require.NoError(t, cmds.Execute(daughter, "wait_here", CommandArgs{}))
	daughter.Tick(0.1)
	assert.Equal(t, StateStay, daughter.StateName())
}

func TestFollowersSettleWhenOwnerDies(t *testing.T) {
	f := newFixture(t)
	daughter := f.spawn(t, SpawnSpec{Archetype: ArchDaughter, Owner: f.player, Position: world.V3(0, 0, 0)})
	grandfather := f.spawn(t, SpawnSpec{Archetype: ArchGrandfather, Owner: f.player, Position: world.V3(0, 0, 2.5)})
	obey := PolicyFunc(func(float64, float64, Personality, RelationshipTraits) Decision { return Obey })
	daughter.Policy = obey
	grandfather.Policy = obey

	cmds := NewCommands(nil)
	require.NoError(t, cmds.Execute(daughter, "follow", CommandArgs{}))
	require.NoError(t, cmds.Execute(grandfather, "follow", CommandArgs{}))
	daughter.Tick(0.1)
	grandfather.Tick(0.1)
	require.Equal(t, StateFollow, daughter.StateName())
	require.Equal(t, StateFollowIdle, grandfather.StateName())

	f.player.TakeDamage(1000)
	require.False(t, f.player.Alive())
	daughter.Tick(0.1)
	grandfather.Tick(0.1)
	assert.Equal(t, StateStay, daughter.StateName())
	assert.Equal(t, StateStay, grandfather.StateName())

	daughter.Tick(0.1)
	assert.Equal(t, StateStay, daughter.StateName())
}
