package engine

import (
	"fmt"

	"github.com/wct097/saintaveline/internal/agents"
	"github.com/wct097/saintaveline/internal/stimulus"
	"github.com/wct097/saintaveline/internal/world"
)

// Gunshot is the host weapon. Each Attack is heard by everyone within
// HearingRange, and hits the owner's target when the fuzzed aim is within
// HitAngle of true and nothing solid is in the way.
type Gunshot struct {
	Owner        *agents.Agent
	Damage       float64
	Range        float64
	HearingRange float64
	HitAngle     float64 // Degrees

	sim *Simulation
}

// NewGunshot returns a rifle with stock tuning. Owner is set after spawn.
func NewGunshot(sim *Simulation) *Gunshot {
	return &Gunshot{
		Damage:       15,
		Range:        30,
		HearingRange: 15,
		HitAngle:     4,
		sim:          sim,
	}
}

// Attack fires one round. Runs inside the frame, with the session locked.
func (g *Gunshot) Attack() {
	a := g.Owner
	if a == nil || !a.Alive() {
		return
	}
	s := g.sim

	shot := stimulus.New(stimulus.Gunshot, a.Position(), g.HearingRange, a.ID())
	if _, err := s.Bus.Dispatch(shot); err != nil {
		s.log.Warn("gunshot not delivered", "agent", a.ID(), "error", err)
	}

	target := a.Target
	if target == nil || !target.Alive() {
		return
	}
	muzzle := a.Position().Add(a.Config.EyeOffset)
	want := target.Position().Sub(muzzle)
	aim := a.AimDirection(muzzle, true)

	if !g.hits(muzzle, want, aim, target.Position()) {
		s.Stats.ShotsMiss++
		return
	}
	d, ok := target.(world.Damageable)
	if !ok {
		return
	}
	s.Stats.ShotsHit++
	s.damage(target.ID(), d, g.Damage, fmt.Sprintf("%s (%d)", a.Name, a.ID()))
}

func (g *Gunshot) hits(muzzle, want, aim, at world.Vec3) bool {
	if want.Len() > g.Range {
		return false
	}
	if world.AngleBetween(aim, want) > g.HitAngle {
		return false
	}
	return g.sim.Space.LineOfSight(muzzle, at, world.CategoryGeometry)
}
