// Shared plumbing for the behaviour states: names, sensing helpers,
// rate-limited turning and the randomized fire cooldown.
package agents

import (
	"github.com/wct097/saintaveline/internal/perception"
	"github.com/wct097/saintaveline/internal/stimulus"
	"github.com/wct097/saintaveline/internal/world"
)

// State names as reported by Machine.CurrentName.
const (
	StateIdle        = "idle"
	StatePatrol      = "patrol"
	StateInvestigate = "investigate"
	StatePursue      = "pursue"
	StateAttack      = "attack"
	StateStay        = "stay"
	StateFollow      = "follow"
	StateFollowIdle  = "follow_idle"
	StateGoTo        = "goto"
	StateDeath       = "death"
)

// Enemy perception masks.
const (
	hostileMask  = world.CategoryPlayer | world.CategoryFriendly
	obstacleMask = world.CategoryGeometry
)

// SoundHandler is implemented by states that react to stimuli.
type SoundHandler interface {
	HandleSound(stimulus.Stimulus)
}

// newScanner builds the agent's sight cone from its config.
func (a *Agent) newScanner() *perception.Scanner {
	return &perception.Scanner{
		Source: func() (world.Pose, bool) {
			if a.removed {
				return world.Pose{}, false
			}
			return a.Pose, true
		},
		Self:         a.EntityID,
		EyeOffset:    a.Config.EyeOffset,
		ViewDistance: a.Config.DetectionDistance,
		ViewAngle:    a.Config.ViewAngle,
		TargetMask:   hostileMask,
		ObstacleMask: obstacleMask,
		Spatial:      a.env.Spatial,
	}
}

// acquireTarget returns the first visible, living, hostile entity.
func (a *Agent) acquireTarget(s *perception.Scanner) world.Entity {
	e, ok := s.First(func(e world.Entity) bool {
		return e.Alive() && a.hostileTo(e)
	})
	if !ok {
		return nil
	}
	return e
}

// hostileTo consults the faction table. Entities without a faction, or a
// session without a table, are judged by the scan mask alone.
func (a *Agent) hostileTo(e world.Entity) bool {
	if a.env.Factions == nil {
		return true
	}
	aff, ok := e.(Affiliated)
	if !ok {
		return true
	}
	return a.env.Factions.Hostile(a.Team, aff.Faction())
}

// turnTowards rotates the agent toward dir at RotationSpeed.
func (a *Agent) turnTowards(dir world.Vec3, dt float64) {
	want := world.YawTowards(dir, a.Pose.Yaw)
	a.turnToYaw(want, dt)
}

func (a *Agent) turnToYaw(yaw, dt float64) {
	a.Pose.Yaw = world.RotateTowards(a.Pose.Yaw, yaw, a.Config.RotationSpeed*dt)
}

// distanceTo is the straight-line distance to e.
func (a *Agent) distanceTo(e world.Entity) float64 {
	return a.Pose.Position.Dist(e.Position())
}

// fireTimer triggers the weapon on a randomized cooldown. The first shot is
// immediate.
type fireTimer struct {
	clock float64
	next  float64
}

func (f *fireTimer) tick(a *Agent, dt float64) {
	f.clock += dt
	if f.clock < f.next {
		return
	}
	if a.Weapon == nil {
		a.warnOnce("weapon", "no weapon equipped, skipping attack")
	} else {
		a.Weapon.Attack()
	}
	f.next = f.clock + a.env.Rand.Range(a.Config.FireCooldownMin, a.Config.FireCooldownMax)
}

// requireEnemy checks the preconditions shared by the enemy states.
func requireEnemy(a *Agent, needMovement bool) error {
	if a.Kind != Enemy {
		return ErrWrongKind
	}
	if needMovement && a.Movement == nil {
		return ErrMissingMovement
	}
	return nil
}

func requireFriendly(a *Agent, needMovement bool) error {
	if a.Kind != Friendly {
		return ErrWrongKind
	}
	if needMovement && a.Movement == nil {
		return ErrMissingMovement
	}
	return nil
}
