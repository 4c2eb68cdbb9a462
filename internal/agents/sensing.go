package agents

import (
	"fmt"

	"github.com/wct097/saintaveline/internal/stimulus"
	"github.com/wct097/saintaveline/internal/world"
)

// ShoutCalmnessLoss is how much calm a friendly loses hearing a hostile bark.
const ShoutCalmnessLoss = 0.1

// HandleSound implements stimulus.Sensor. Enemies forward gunshots and
// footsteps within hearing range to their current state; friendlies lose
// comfort on gunfire and calm on shouts. The dead hear nothing.
func (a *Agent) HandleSound(s stimulus.Stimulus) {
	if a.dead || a.removed || a.faulted != nil {
		return
	}
	if s.Source == a.EntityID {
		return
	}
	if !s.InRange(a.Pose.Position) {
		return
	}

	switch a.Kind {
	case Enemy:
		if s.Kind != stimulus.Gunshot && s.Kind != stimulus.Footstep {
			return
		}
		if h, ok := a.machine.Current().(SoundHandler); ok {
			h.HandleSound(s)
		}

	case Friendly:
		switch s.Kind {
		case stimulus.Gunshot, stimulus.Explosion:
			a.alarm()
			a.Profile.Mental.ReduceComfort(a.GunfireComfortLoss)
			AddMemory(a, fmt.Sprintf("Heard a %s", s.Kind), 0.4)
		case stimulus.Shout:
			a.alarm()
			a.Profile.Mental.ReduceCalmness(ShoutCalmnessLoss)
		}
	}
}

// aimJitter is the per-axis noise range for a calmness level. Calm agents
// aim true; panicked ones spray.
func aimJitter(calmness float64) float64 {
	switch {
	case calmness > 0.7:
		return 0
	case calmness > 0:
		return 0.1
	case calmness > -0.25:
		return 0.25
	default:
		return 0.7
	}
}

// AimDirection is the unit direction toward the target. With fuzz, random
// noise scaled by the agent's calmness band is added before normalising.
// Without a target it returns the zero vector.
func (a *Agent) AimDirection(from world.Vec3, fuzz bool) world.Vec3 {
	if a.Target == nil {
		return world.Zero
	}
	dir := a.Target.Position().Sub(from).Normalize()
	if !fuzz {
		return dir
	}
	j := aimJitter(a.Profile.Mental.Calmness)
	if j == 0 {
		return dir
	}
	r := a.env.Rand
	return dir.Add(world.V3(r.Range(-j, j), r.Range(-j, j), r.Range(-j, j))).Normalize()
}
