package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestYawConventions(t *testing.T) {
	assert.InDelta(t, 0, YawTowards(V3(0, 0, 1), 7), 1e-9)
	assert.InDelta(t, 90, YawTowards(V3(1, 0, 0), 7), 1e-9)
	assert.InDelta(t, 270, YawTowards(V3(-1, 0, 0), 7), 1e-9)
	assert.Equal(t, 7.0, YawTowards(V3(0, 5, 0), 7), "vertical direction keeps fallback")

	f := Pose{Yaw: 90}.Forward()
	assert.InDelta(t, 1, f.X, 1e-9)
	assert.InDelta(t, 0, f.Z, 1e-9)
}

func TestRotateTowardsIsRateLimited(t *testing.T) {
	assert.InDelta(t, 10, RotateTowards(0, 90, 10), 1e-9)
	assert.InDelta(t, 350, RotateTowards(0, 270, 10), 1e-9, "turns the short way")
	assert.InDelta(t, 90, RotateTowards(85, 90, 10), 1e-9)
	assert.InDelta(t, -20, DeltaYaw(10, 350), 1e-9)
}

func TestAngleBetween(t *testing.T) {
	assert.InDelta(t, 90, AngleBetween(V3(1, 0, 0), V3(0, 0, 1)), 1e-9)
	assert.InDelta(t, 180, AngleBetween(V3(1, 0, 0), V3(-2, 0, 0)), 1e-9)
	assert.Equal(t, 0.0, AngleBetween(Zero, V3(1, 0, 0)))
}

func TestMoverAdvancesAndArrives(t *testing.T) {
	pose := &Pose{}
	m := NewMover(pose, 2, 0)
	m.MoveTo(V3(0, 0, 5))
	assert.True(t, m.HasPath())
	assert.InDelta(t, 5, m.RemainingDistance(), 1e-9)

	m.Advance(1)
	assert.InDelta(t, 2, pose.Position.Z, 1e-9)
	assert.False(t, m.IsArrived(0.5))

	m.Advance(10)
	assert.InDelta(t, 5, pose.Position.Z, 1e-9)
	assert.True(t, m.IsArrived(0.5))

	m.Disable()
	m.MoveTo(V3(9, 0, 9))
	m.Advance(1)
	assert.False(t, m.HasPath())
	assert.InDelta(t, 5, pose.Position.Z, 1e-9)
}
