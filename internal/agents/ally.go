package agents

import (
	"fmt"

	"github.com/wct097/saintaveline/internal/fsm"
	"github.com/wct097/saintaveline/internal/world"
)

// Stay never leaves on its own; only a command or death moves the agent on.
// It keeps facing the owner when there is one.
type Stay struct {
	agent *Agent
}

// NewStay creates the ally rest state.
func NewStay(a *Agent) (*Stay, error) {
	if err := requireFriendly(a, false); err != nil {
		return nil, fmt.Errorf("stay: %w", err)
	}
	return &Stay{agent: a}, nil
}

func (s *Stay) Name() string { return StateStay }

func (s *Stay) Enter() {
	if s.agent.Movement != nil {
		s.agent.Movement.Stop()
	}
}

func (s *Stay) Update(dt float64) fsm.Directive {
	a := s.agent
	if a.Owner != nil {
		a.turnTowards(a.Owner.Position().Sub(a.Pose.Position), dt)
	}
	return fsm.None()
}

func (s *Stay) Exit() {}

// Follow walks after the owner until close enough or out of range.
type Follow struct {
	agent *Agent
}

// NewFollow needs movement and an owner.
func NewFollow(a *Agent) (*Follow, error) {
	if err := requireFriendly(a, true); err != nil {
		return nil, fmt.Errorf("follow: %w", err)
	}
	if a.Owner == nil {
		return nil, fmt.Errorf("follow: %w", ErrNoTarget)
	}
	return &Follow{agent: a}, nil
}

func (s *Follow) Name() string { return StateFollow }
func (s *Follow) Enter()       {}

func (s *Follow) Update(float64) fsm.Directive {
	a := s.agent
	if !a.Owner.Alive() {
		a.Movement.Stop()
		return ownerLost(a)
	}
	d := a.distanceTo(a.Owner)
	if d < a.Config.StopDistance || d >= a.Config.DetectionDistance {
		a.Movement.Stop()
		next, err := NewFollowIdle(a)
		if err != nil {
			return fsm.Fault(err)
		}
		return fsm.Change(next)
	}
	a.Movement.MoveTo(a.Owner.Position())
	return fsm.None()
}

func (s *Follow) Exit() {
	s.agent.Movement.Stop()
}

// FollowIdle waits near the owner, resuming Follow once the owner moves away
// but is still within detection range.
type FollowIdle struct {
	agent *Agent
}

// NewFollowIdle needs an owner.
func NewFollowIdle(a *Agent) (*FollowIdle, error) {
	if err := requireFriendly(a, false); err != nil {
		return nil, fmt.Errorf("follow idle: %w", err)
	}
	if a.Owner == nil {
		return nil, fmt.Errorf("follow idle: %w", ErrNoTarget)
	}
	return &FollowIdle{agent: a}, nil
}

func (s *FollowIdle) Name() string { return StateFollowIdle }
func (s *FollowIdle) Enter()       {}
func (s *FollowIdle) Exit()        {}

func (s *FollowIdle) Update(dt float64) fsm.Directive {
	a := s.agent
	if !a.Owner.Alive() {
		return ownerLost(a)
	}
	d := a.distanceTo(a.Owner)
	if d > a.Config.StopDistance && d < a.Config.DetectionDistance {
		next, err := NewFollow(a)
		if err != nil {
			return fsm.Fault(err)
		}
		return fsm.Change(next)
	}
	a.turnTowards(a.Owner.Position().Sub(a.Pose.Position), dt)
	return fsm.None()
}

// ownerLost settles the agent where it stands once the owner is dead.
func ownerLost(a *Agent) fsm.Directive {
	AddMemory(a, "Lost the one I was following", 0.9)
	next, err := NewStay(a)
	if err != nil {
		return fsm.Fault(err)
	}
	return fsm.Change(next)
}

// GoTo walks to a destination and then stays there.
type GoTo struct {
	agent *Agent
	dest  world.Vec3
}

// NewGoTo needs movement.
func NewGoTo(a *Agent, dest world.Vec3) (*GoTo, error) {
	if err := requireFriendly(a, true); err != nil {
		return nil, fmt.Errorf("goto: %w", err)
	}
	return &GoTo{agent: a, dest: dest}, nil
}

func (s *GoTo) Name() string { return StateGoTo }

func (s *GoTo) Enter() {
	s.agent.Movement.MoveTo(s.dest)
}

func (s *GoTo) Update(float64) fsm.Directive {
	a := s.agent
	if a.Pose.Position.Sub(s.dest).Flat().Len() > a.Config.ArrivalThreshold {
		return fsm.None()
	}
	a.Movement.Stop()
	next, err := NewStay(a)
	if err != nil {
		return fsm.Fault(err)
	}
	return fsm.Change(next)
}

func (s *GoTo) Exit() {}

// Destination is where the agent is headed.
func (s *GoTo) Destination() world.Vec3 { return s.dest }
