package agents

import (
	"fmt"
	"math"

	"github.com/wct097/saintaveline/internal/fsm"
	"github.com/wct097/saintaveline/internal/perception"
	"github.com/wct097/saintaveline/internal/stimulus"
	"github.com/wct097/saintaveline/internal/world"
)

// alert is the sensing shared by Idle, Patrol and Investigate: a scan on a
// fixed cadence and a pending investigation point set by HandleSound.
type alert struct {
	agent   *Agent
	scanner *perception.Scanner
	timer   float64
	heard   *world.Vec3
}

func newAlert(a *Agent) alert {
	return alert{agent: a, scanner: a.newScanner()}
}

// check returns a Change directive when something needs chasing or
// investigating. self is pushed first so it resumes afterwards.
func (al *alert) check(self fsm.State, dt float64, investigate bool) (fsm.Directive, bool) {
	a := al.agent
	if al.heard != nil && investigate {
		point := *al.heard
		al.heard = nil
		next, err := NewInvestigate(a, point)
		if err != nil {
			return fsm.Fault(err), true
		}
		return pushAndChange(a, self, next), true
	}

	al.timer += dt
	if al.timer < a.Config.ScanInterval {
		return fsm.None(), false
	}
	al.timer = 0

	target := a.acquireTarget(al.scanner)
	if target == nil {
		return fsm.None(), false
	}
	next, err := NewPursue(a, target)
	if err != nil {
		return fsm.Fault(err), true
	}
	AddMemory(a, fmt.Sprintf("Spotted entity %d", target.ID()), 0.7)
	return pushAndChange(a, self, next), true
}

func (al *alert) hear(s stimulus.Stimulus) {
	if s.Kind != stimulus.Gunshot && s.Kind != stimulus.Footstep {
		return
	}
	p := s.Position
	al.heard = &p
}

func pushAndChange(a *Agent, self, next fsm.State) fsm.Directive {
	if err := a.PushState(self); err != nil {
		return fsm.Fault(err)
	}
	return fsm.Change(next)
}

// Idle holds a post. The guard sways its gaze around the facing it had when
// first posted and walks back if displaced.
type Idle struct {
	alert
	home        world.Vec3
	originalYaw float64
	swayTime    float64
	posted      bool
}

// NewIdle creates the guard state.
func NewIdle(a *Agent) (*Idle, error) {
	if err := requireEnemy(a, false); err != nil {
		return nil, fmt.Errorf("idle: %w", err)
	}
	return &Idle{alert: newAlert(a)}, nil
}

func (s *Idle) Name() string { return StateIdle }

func (s *Idle) Enter() {
	a := s.agent
	if !s.posted {
		s.home = a.Pose.Position
		s.originalYaw = a.Pose.Yaw
		s.posted = true
	}
	// Sway restarts at zero, so a resumed guard turns back to its post facing.
	s.swayTime = 0
}

func (s *Idle) Update(dt float64) fsm.Directive {
	if d, ok := s.check(s, dt, true); ok {
		return d
	}
	a := s.agent

	if a.Movement != nil {
		if a.Pose.Position.Sub(s.home).Flat().Len() > a.Config.HomeTolerance {
			a.Movement.MoveTo(s.home)
		} else {
			a.Movement.Stop()
		}
	}

	s.swayTime += dt
	angle := math.Sin(s.swayTime*a.Config.SwaySpeed) * a.Config.SwayAngle
	a.turnToYaw(s.originalYaw+angle, dt)
	return fsm.None()
}

func (s *Idle) Exit() {
	s.heard = nil
	if s.agent.Movement != nil {
		s.agent.Movement.Stop()
	}
}

func (s *Idle) HandleSound(st stimulus.Stimulus) { s.hear(st) }

// Home is the post the guard returns to.
func (s *Idle) Home() world.Vec3 { return s.home }

// Patrol walks the configured waypoints in a loop.
type Patrol struct {
	alert
	index int
}

// NewPatrol creates the patrol state. It needs movement.
func NewPatrol(a *Agent) (*Patrol, error) {
	if err := requireEnemy(a, true); err != nil {
		return nil, fmt.Errorf("patrol: %w", err)
	}
	return &Patrol{alert: newAlert(a)}, nil
}

func (s *Patrol) Name() string { return StatePatrol }

func (s *Patrol) Enter() {
	if wp := s.agent.Config.Waypoints; len(wp) > 0 {
		s.agent.Movement.MoveTo(wp[s.index])
	}
}

func (s *Patrol) Update(dt float64) fsm.Directive {
	a := s.agent
	if d, ok := s.check(s, dt, true); ok {
		return d
	}

	wp := a.Config.Waypoints
	if len(wp) > 0 && a.Movement.RemainingDistance() < a.Config.ArrivalThreshold {
		s.index = (s.index + 1) % len(wp)
		a.Movement.MoveTo(wp[s.index])
	}
	return fsm.None()
}

func (s *Patrol) Exit() { s.heard = nil }

func (s *Patrol) HandleSound(st stimulus.Stimulus) { s.hear(st) }

// Index is the waypoint currently being walked to.
func (s *Patrol) Index() int { return s.index }

// Investigate walks to where a sound came from, looks around for a while,
// then returns to whatever it interrupted.
type Investigate struct {
	alert
	point    world.Vec3
	elapsed  float64
	lingered float64
	baseYaw  float64
	arrived  bool
}

// NewInvestigate creates an investigation of point. It needs movement.
func NewInvestigate(a *Agent, point world.Vec3) (*Investigate, error) {
	if err := requireEnemy(a, true); err != nil {
		return nil, fmt.Errorf("investigate: %w", err)
	}
	return &Investigate{alert: newAlert(a), point: point}, nil
}

func (s *Investigate) Name() string { return StateInvestigate }

// Enter heads for the point. A resumed investigation that already arrived
// keeps lingering where it stands.
func (s *Investigate) Enter() {
	if !s.arrived {
		s.agent.Movement.MoveTo(s.point)
	}
}

func (s *Investigate) Update(dt float64) fsm.Directive {
	a := s.agent
	if s.heard != nil {
		s.point = *s.heard
		s.heard = nil
		s.arrived = false
		s.lingered = 0
		a.Movement.MoveTo(s.point)
	}
	if d, ok := s.check(s, dt, false); ok {
		return d
	}

	s.elapsed += dt
	if !s.arrived && a.Movement.IsArrived(a.Config.ArrivalThreshold) {
		s.arrived = true
		s.baseYaw = a.Pose.Yaw
		a.Movement.Stop()
	}
	if s.arrived {
		s.lingered += dt
		angle := math.Sin(s.lingered*a.Config.SwaySpeed*4) * 90
		a.turnToYaw(s.baseYaw+angle, dt)
		if s.lingered >= a.Config.InvestigateLinger {
			return fsm.Pop()
		}
	}
	if a.Config.InvestigateTimeout > 0 && s.elapsed >= a.Config.InvestigateTimeout {
		a.Movement.Stop()
		return fsm.Pop()
	}
	return fsm.None()
}

func (s *Investigate) Exit() {}

// HandleSound retargets the investigation to the newest sound.
func (s *Investigate) HandleSound(st stimulus.Stimulus) { s.hear(st) }

// Point is where the investigation is headed.
func (s *Investigate) Point() world.Vec3 { return s.point }
