// Agent spawning: builds NPCs from archetype templates, gives them a mover,
// traits and recovery gates, and installs their starting state.
package agents

import (
	"fmt"
	"math/rand"

	"github.com/wct097/saintaveline/internal/world"
)

// CalmDelay is how long an agent must go without an alarm before its mood
// starts to recover.
const CalmDelay = 5.0

// SpawnSpec describes one agent to create.
type SpawnSpec struct {
	Name         string
	Archetype    string
	Position     world.Vec3
	Yaw          float64
	InitialState string // Overrides the template's starting state
	Config       Config // Merged over the template's tuning
	Owner        world.Entity

	// Optional collaborators. A nil Movement gets a straight-line mover.
	Movement Movement
	Weapon   Weapon
	Effects  Effects
	Policy   Policy
}

// Spawner creates agents for the simulation.
type Spawner struct {
	env    Env
	rng    *rand.Rand
	nextID world.EntityID
}

// NewSpawner creates a spawner with the given seed.
func NewSpawner(seed int64, env Env) *Spawner {
	return &Spawner{
		env:    env,
		rng:    rand.New(rand.NewSource(seed + 300)),
		nextID: 1,
	}
}

// SetNextID sets the next ID to be issued, leaving room for entities the
// host creates itself.
func (s *Spawner) SetNextID(id world.EntityID) {
	s.nextID = id
}

// NextID reserves and returns an ID.
func (s *Spawner) NextID() world.EntityID {
	id := s.nextID
	s.nextID++
	return id
}

// Spawn creates and starts one agent.
func (s *Spawner) Spawn(spec SpawnSpec) (*Agent, error) {
	tmpl, ok := LookupArchetype(spec.Archetype)
	if !ok {
		return nil, fmt.Errorf("agents: unknown archetype %q", spec.Archetype)
	}

	name := spec.Name
	if name == "" {
		name = s.generateName(tmpl.Kind)
	}

	a := New(s.NextID(), name, tmpl.Kind, s.env)
	a.Archetype = spec.Archetype
	a.Team = tmpl.Team
	a.Pose = world.Pose{Position: spec.Position, Yaw: world.NormalizeYaw(spec.Yaw)}
	a.Health = tmpl.Health
	a.MaxHealth = tmpl.Health
	a.Config = DefaultConfig().Merge(tmpl.Config).Merge(spec.Config)
	a.GunfireComfortLoss = tmpl.GunfireComfortLoss
	a.Owner = spec.Owner

	a.Profile = NewProfile(s.jitterPersonality(tmpl.Personality))
	a.Profile.Mental.ShouldCalmDown = func() bool { return a.QuietFor(CalmDelay) }
	a.Profile.Mental.ShouldRegainComfort = func() bool { return a.QuietFor(CalmDelay * 2) }
	if spec.Owner != nil && tmpl.OwnerRelationship != (RelationshipTraits{}) {
		a.Profile.SetRelationship(spec.Owner.ID(), tmpl.OwnerRelationship)
	}

	if spec.Policy != nil {
		a.Policy = spec.Policy
	}
	a.Movement = spec.Movement
	if a.Movement == nil {
		a.Movement = world.NewMover(&a.Pose, a.Config.MoveSpeed, a.Config.RotationSpeed)
	}
	a.Weapon = spec.Weapon
	a.Effects = spec.Effects

	initial := tmpl.InitialState
	if spec.InitialState != "" {
		initial = spec.InitialState
	}
	st, err := NewState(initial, a)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}
	if err := a.Start(st); err != nil {
		return nil, err
	}

	a.log().Info("agent spawned", "archetype", spec.Archetype, "state", initial, "pos", spec.Position)
	return a, nil
}

// jitterPersonality varies traits a little so two agents of one archetype
// do not decide identically.
func (s *Spawner) jitterPersonality(p Personality) Personality {
	j := func(v float64) float64 { return clamp01(v + (s.rng.Float64()-0.5)*0.1) }
	return Personality{
		Agreeableness: j(p.Agreeableness),
		Bravery:       j(p.Bravery),
		Independence:  j(p.Independence),
	}
}

func (s *Spawner) generateName(kind Kind) string {
	if kind == Enemy {
		return raiderNames[s.rng.Intn(len(raiderNames))]
	}
	return familyNames[s.rng.Intn(len(familyNames))]
}

// Name pools for unnamed spawns.
var raiderNames = []string{
	"Brute", "Scar", "Vulture", "Hatchet", "Rook", "Jackal", "Cinder",
	"Gravel", "Husk", "Mauler", "Shade", "Talon", "Viper", "Wolf",
}

var familyNames = []string{
	"Kusi-Rose", "Tupac", "Aveline", "Inti", "Killa", "Mayta", "Sisa",
}
