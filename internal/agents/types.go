// Package agents provides the NPC shell, its mental model and decision
// policy, and the concrete behaviour states its state machine runs.
package agents

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/wct097/saintaveline/internal/entropy"
	"github.com/wct097/saintaveline/internal/faction"
	"github.com/wct097/saintaveline/internal/fsm"
	"github.com/wct097/saintaveline/internal/stimulus"
	"github.com/wct097/saintaveline/internal/world"
)

var (
	// ErrMissingMovement is returned when a state needs a movement handle the
	// agent does not have.
	ErrMissingMovement = errors.New("agents: movement capability missing")
	// ErrNoTarget is returned when a state needs a target or owner and none is set.
	ErrNoTarget = errors.New("agents: no target")
	// ErrWrongKind is returned when a state is built for the other NPC family.
	ErrWrongKind = errors.New("agents: state not valid for agent kind")
	// ErrDead is returned by commands sent to a dead agent.
	ErrDead = errors.New("agents: agent is dead")
)

// Kind separates the two NPC families.
type Kind uint8

const (
	Enemy Kind = iota
	Friendly
)

func (k Kind) String() string {
	if k == Friendly {
		return "friendly"
	}
	return "enemy"
}

// Category maps the kind onto the spatial category mask.
func (k Kind) Category() world.Category {
	if k == Friendly {
		return world.CategoryFriendly
	}
	return world.CategoryEnemy
}

// Movement is the navigation capability.
type Movement interface {
	MoveTo(dest world.Vec3)
	Stop()
	IsArrived(threshold float64) bool
	RemainingDistance() float64
	Disable()
}

// Weapon is the equipped combat capability. It may rate-limit itself.
type Weapon interface {
	Attack()
}

// Effects are optional presentation hooks. Fade reports false when the
// effect cannot run, for example when there is nothing to render.
type Effects interface {
	Ragdoll(id world.EntityID)
	Fade(id world.EntityID, duration float64) bool
	Blink(id world.EntityID)
}

// Affiliated is implemented by entities that belong to a faction.
type Affiliated interface {
	Faction() faction.ID
}

// Hooks receive agent lifecycle notifications. Any field may be nil.
type Hooks struct {
	OnTransition func(a *Agent, t fsm.Transition)
	OnDied       func(a *Agent)
	OnRemovable  func(a *Agent)
	OnFault      func(a *Agent, err error)
	OnMemory     func(a *Agent, m Memory)
}

// Env is what an agent needs from the session that owns it.
type Env struct {
	Spatial  world.Spatial
	Bus      *stimulus.Bus
	Factions *faction.Table
	Rand     *entropy.Source
	Log      *slog.Logger
	Hooks    Hooks
}

// Agent is one NPC. It owns exactly one state machine and is ticked once
// per frame by the host.
type Agent struct {
	EntityID  world.EntityID `json:"id"`
	Name      string         `json:"name"`
	Kind      Kind           `json:"kind"`
	Archetype string         `json:"archetype,omitempty"`
	Team      faction.ID     `json:"faction"`

	Pose      world.Pose `json:"pose"`
	Health    float64    `json:"health"`
	MaxHealth float64    `json:"max_health"`

	Profile *Profile `json:"profile"`
	Config  Config   `json:"config"`
	Policy  Policy   `json:"-"`

	// GunfireComfortLoss is the fraction of comfort lost on hearing a shot.
	GunfireComfortLoss float64 `json:"gunfire_comfort_loss,omitempty"`

	Movement Movement `json:"-"`
	Weapon   Weapon   `json:"-"`
	Effects  Effects  `json:"-"`

	// Target is what an enemy is chasing. Owner is who a friendly follows.
	Target world.Entity `json:"-"`
	Owner  world.Entity `json:"-"`

	Memories []Memory `json:"memories,omitempty"`

	env       Env
	machine   *fsm.Machine
	clock     float64
	lastAlarm float64
	dead      bool
	removable bool
	removed   bool
	faulted   error
	warned    map[string]bool
}

// New creates an agent. Call Start to install its first state.
func New(id world.EntityID, name string, kind Kind, env Env) *Agent {
	if env.Log == nil {
		env.Log = slog.Default()
	}
	a := &Agent{
		EntityID:  id,
		Name:      name,
		Kind:      kind,
		Health:    100,
		MaxHealth: 100,
		Profile:   NewProfile(Personality{Agreeableness: 0.5, Bravery: 0.5, Independence: 0.5}),
		Config:    DefaultConfig(),
		Policy:    DefaultPolicy(),
		env:       env,
		machine:   fsm.New(),
		warned:    make(map[string]bool),
	}
	a.machine.Observe(func(t fsm.Transition) {
		a.log().Debug("state "+t.Kind.String(), "state", t.State, "depth", t.Depth)
		if a.env.Hooks.OnTransition != nil {
			a.env.Hooks.OnTransition(a, t)
		}
	})
	return a
}

// Start installs the initial state.
func (a *Agent) Start(s fsm.State) error {
	if err := a.machine.SetState(s); err != nil {
		return fmt.Errorf("agent %d start: %w", a.EntityID, err)
	}
	return nil
}

func (a *Agent) ID() world.EntityID       { return a.EntityID }
func (a *Agent) Position() world.Vec3     { return a.Pose.Position }
func (a *Agent) Category() world.Category { return a.Kind.Category() }
func (a *Agent) Faction() faction.ID      { return a.Team }

// Alive reports whether the agent has health left and is still in the world.
func (a *Agent) Alive() bool { return !a.dead && !a.removed }

// Dead reports whether the agent has entered Death.
func (a *Agent) Dead() bool { return a.dead }

// Removable reports whether Death has finished its cleanup phase.
func (a *Agent) Removable() bool { return a.removable }

// Faulted returns the invariant violation that deactivated the agent, if any.
func (a *Agent) Faulted() error { return a.faulted }

// Machine exposes the state machine.
func (a *Agent) Machine() *fsm.Machine { return a.machine }

// StateName is the current state's name.
func (a *Agent) StateName() string { return a.machine.CurrentName() }

// QuietFor reports whether nothing alarming has happened in the last d
// seconds. It is the default mental recovery gate.
func (a *Agent) QuietFor(d float64) bool {
	return !a.dead && a.clock-a.lastAlarm >= d
}

func (a *Agent) alarm() { a.lastAlarm = a.clock }

// Clock is the agent's accumulated tick time in seconds.
func (a *Agent) Clock() float64 { return a.clock }

// Env returns the agent's session wiring.
func (a *Agent) Env() Env { return a.env }

// SetState replaces the current state and clears the stack.
func (a *Agent) SetState(s fsm.State) error { return a.machine.SetState(s) }

// PushState suspends s to be resumed by a later Pop.
func (a *Agent) PushState(s fsm.State) error { return a.machine.PushState(s) }

// Tick advances mood and behaviour by dt seconds. A faulted or removable
// agent does nothing.
func (a *Agent) Tick(dt float64) {
	if a.faulted != nil || a.removable || a.removed {
		return
	}
	a.clock += dt
	a.Profile.Mental.Tick(dt)
	if err := a.machine.Update(dt); err != nil {
		a.fault(err)
	}
}

// TakeDamage reduces health and enters Death at zero. Returns remaining health.
func (a *Agent) TakeDamage(amount float64) float64 {
	if a.dead || amount <= 0 {
		return a.Health
	}
	a.Health -= amount
	a.alarm()
	if a.Health > 0 {
		a.Profile.Mental.ReduceCalmness(amount / a.MaxHealth)
		return a.Health
	}
	a.Health = 0
	a.die()
	return 0
}

func (a *Agent) die() {
	a.dead = true
	a.Target = nil
	if err := a.machine.SetState(newDeath(a)); err != nil {
		a.log().Error("could not enter death", "error", err)
	}
	a.machine.Seal()
	if a.env.Hooks.OnDied != nil {
		a.env.Hooks.OnDied(a)
	}
}

func (a *Agent) markRemovable() {
	if a.removable {
		return
	}
	a.removable = true
	if a.env.Hooks.OnRemovable != nil {
		a.env.Hooks.OnRemovable(a)
	}
}

// Remove tears down the state machine. Called by the host once the agent
// is taken out of the world.
func (a *Agent) Remove() {
	if a.removed {
		return
	}
	a.removed = true
	a.machine.Teardown()
}

// fault deactivates the agent after an invariant violation. The rest of the
// simulation keeps running.
func (a *Agent) fault(err error) {
	a.faulted = err
	if a.Movement != nil {
		a.Movement.Stop()
	}
	a.log().Error("agent deactivated", "state", a.machine.CurrentName(), "error", err)
	if a.env.Hooks.OnFault != nil {
		a.env.Hooks.OnFault(a, err)
	}
}

// warnOnce logs a missing optional collaborator the first time it matters.
func (a *Agent) warnOnce(key, msg string) {
	if a.warned[key] {
		return
	}
	a.warned[key] = true
	a.log().Warn(msg)
}

func (a *Agent) log() *slog.Logger {
	return a.env.Log.With("agent", a.EntityID, "name", a.Name)
}

// Snapshot is a read-only view of an agent for observers.
type Snapshot struct {
	ID        world.EntityID `json:"id"`
	Name      string         `json:"name"`
	Kind      string         `json:"kind"`
	Archetype string         `json:"archetype,omitempty"`
	Faction   faction.ID     `json:"faction"`
	Pose      world.Pose     `json:"pose"`
	Health    float64        `json:"health"`
	MaxHealth float64        `json:"max_health"`
	State     string         `json:"state"`
	Stack     []string       `json:"stack"`
	Comfort   float64        `json:"comfort"`
	Calmness  float64        `json:"calmness"`
	Mood      string         `json:"mood"`
	Target    world.EntityID `json:"target,omitempty"`
	Dead      bool           `json:"dead"`
	Faulted   string         `json:"faulted,omitempty"`
}

// Snapshot copies the observable fields.
func (a *Agent) Snapshot() Snapshot {
	s := Snapshot{
		ID:        a.EntityID,
		Name:      a.Name,
		Kind:      a.Kind.String(),
		Archetype: a.Archetype,
		Faction:   a.Team,
		Pose:      a.Pose,
		Health:    a.Health,
		MaxHealth: a.MaxHealth,
		State:     a.machine.CurrentName(),
		Stack:     a.machine.StackNames(),
		Comfort:   a.Profile.Mental.Comfort,
		Calmness:  a.Profile.Mental.Calmness,
		Mood:      a.Profile.Mental.Band(),
		Dead:      a.dead,
	}
	if a.Target != nil {
		s.Target = a.Target.ID()
	}
	if a.faulted != nil {
		s.Faulted = a.faulted.Error()
	}
	return s
}
