package agents

import (
	"fmt"

	"github.com/wct097/saintaveline/internal/fsm"
	"github.com/wct097/saintaveline/internal/stimulus"
	"github.com/wct097/saintaveline/internal/world"
)

// Pursue chases a target, firing while in range, and hands over to Attack
// at close quarters.
type Pursue struct {
	agent  *Agent
	target world.Entity
	fire   fireTimer
	barked bool
}

// NewPursue creates a chase of target. It needs movement and a target.
func NewPursue(a *Agent, target world.Entity) (*Pursue, error) {
	if err := requireEnemy(a, true); err != nil {
		return nil, fmt.Errorf("pursue: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("pursue: %w", ErrNoTarget)
	}
	a.Target = target
	return &Pursue{agent: a, target: target}, nil
}

func (s *Pursue) Name() string { return StatePursue }

// Enter barks a warning that nearby agents can hear. The bark happens once
// per chase; resuming after Attack stays quiet.
func (s *Pursue) Enter() {
	a := s.agent
	a.Target = s.target
	if s.barked || a.env.Bus == nil {
		return
	}
	s.barked = true
	shout := stimulus.New(stimulus.Shout, a.Pose.Position, a.Config.ShoutRange, a.EntityID)
	if _, err := a.env.Bus.Dispatch(shout); err != nil {
		a.log().Warn("shout not delivered", "error", err)
	}
}

func (s *Pursue) Update(dt float64) fsm.Directive {
	a := s.agent
	if !s.target.Alive() {
		a.Movement.Stop()
		AddMemory(a, fmt.Sprintf("Entity %d is down", s.target.ID()), 0.6)
		return fsm.Pop()
	}

	d := a.distanceTo(s.target)
	if d < a.Config.StopDistance {
		a.Movement.Stop()
		next, err := NewAttack(a, s.target)
		if err != nil {
			return fsm.Fault(err)
		}
		return pushAndChange(a, s, next)
	}

	if d > a.Config.DetectionDistance {
		a.Movement.Stop()
		AddMemory(a, fmt.Sprintf("Lost entity %d", s.target.ID()), 0.5)
		a.log().Info("lost target", "target", s.target.ID(), "distance", d)
		return fsm.Pop()
	}

	a.Movement.MoveTo(s.target.Position())
	s.fire.tick(a, dt)
	return fsm.None()
}

func (s *Pursue) Exit() {}

// Target is the entity being chased.
func (s *Pursue) Target() world.Entity { return s.target }

// Attack holds position at close range, facing and firing at the target.
type Attack struct {
	agent  *Agent
	target world.Entity
	fire   fireTimer
}

// NewAttack creates a close-range engagement with target.
func NewAttack(a *Agent, target world.Entity) (*Attack, error) {
	if err := requireEnemy(a, false); err != nil {
		return nil, fmt.Errorf("attack: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("attack: %w", ErrNoTarget)
	}
	return &Attack{agent: a, target: target}, nil
}

func (s *Attack) Name() string { return StateAttack }
func (s *Attack) Enter()       {}
func (s *Attack) Exit()        {}

func (s *Attack) Update(dt float64) fsm.Directive {
	a := s.agent
	if !s.target.Alive() {
		return fsm.Pop()
	}
	if a.distanceTo(s.target) > a.Config.StopDistance {
		return fsm.Pop()
	}
	a.turnTowards(s.target.Position().Sub(a.Pose.Position), dt)
	s.fire.tick(a, dt)
	return fsm.None()
}
