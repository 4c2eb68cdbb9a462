package perception

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wct097/saintaveline/internal/world"
)

func newScanner(space *world.Space, pose *world.Pose) *Scanner {
	return &Scanner{
		Source:       func() (world.Pose, bool) { return *pose, true },
		Self:         100,
		EyeOffset:    world.V3(0, 1.6, 0),
		ViewDistance: 5,
		ViewAngle:    120,
		TargetMask:   world.CategoryPlayer | world.CategoryFriendly,
		ObstacleMask: world.CategoryGeometry,
		Spatial:      space,
	}
}

func collect(s *Scanner, max int) []world.Entity {
	var out []world.Entity
	for e := range s.Scan(max) {
		out = append(out, e)
	}
	return out
}

func TestScanRoundTrip(t *testing.T) {
	space := world.NewSpace()
	pose := &world.Pose{}
	target := world.NewBody(1, "player", world.CategoryPlayer, world.V3(0, 1.6, 3), 100)
	space.Add(target)
	s := newScanner(space, pose)

	require.Len(t, collect(s, 0), 1, "in range, in cone, clear")

	target.MoveTo(world.V3(0, 1.6, 6))
	assert.Empty(t, collect(s, 0), "out of range")

	target.MoveTo(world.V3(3, 1.6, -1))
	assert.Empty(t, collect(s, 0), "outside the cone")

	target.MoveTo(world.V3(0, 1.6, 3))
	space.AddObstacle(world.Obstacle{Min: world.V3(-1, 0, 1), Max: world.V3(1, 3, 2)})
	assert.Empty(t, collect(s, 0), "blocked")

	s.ObstacleMask = world.CategoryNone
	assert.Len(t, collect(s, 0), 1)
}

func TestScanSkipsSelfAndMask(t *testing.T) {
	space := world.NewSpace()
	pose := &world.Pose{}
	space.Add(world.NewBody(100, "self", world.CategoryPlayer, world.V3(0, 1.6, 1), 1))
	space.Add(world.NewBody(2, "enemy", world.CategoryEnemy, world.V3(0, 1.6, 2), 1))
	s := newScanner(space, pose)
	assert.Empty(t, collect(s, 0))
}

func TestScanHonoursMaxAndIsRestartable(t *testing.T) {
	space := world.NewSpace()
	pose := &world.Pose{}
	for i := 1; i <= 4; i++ {
		space.Add(world.NewBody(world.EntityID(i), "", world.CategoryFriendly, world.V3(0, 1.6, float64(i)), 1))
	}
	s := newScanner(space, pose)

	got := collect(s, 2)
	require.Len(t, got, 2)
	assert.Equal(t, world.EntityID(1), got[0].ID())
	assert.Equal(t, world.EntityID(2), got[1].ID())

	seq := s.Scan(0)
	var a, b int
	for range seq {
		a++
	}
	for range seq {
		b++
	}
	assert.Equal(t, 4, a)
	assert.Equal(t, a, b)

	e, ok := s.First(func(e world.Entity) bool { return e.ID() == 3 })
	require.True(t, ok)
	assert.Equal(t, world.EntityID(3), e.ID())
}

func TestMissingPoseYieldsNothing(t *testing.T) {
	space := world.NewSpace()
	space.Add(world.NewBody(1, "", world.CategoryPlayer, world.V3(0, 1.6, 2), 1))
	s := newScanner(space, &world.Pose{})
	s.Source = func() (world.Pose, bool) { return world.Pose{}, false }
	assert.Empty(t, collect(s, 0))

	s.Source = nil
	_, ok := s.First(nil)
	assert.False(t, ok)
}
