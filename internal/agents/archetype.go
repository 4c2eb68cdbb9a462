// Archetypes: the stock NPC templates a scenario can spawn. Each sets the
// family, faction, starting state, traits and tuning of a character.
package agents

import (
	"fmt"
	"sort"

	"github.com/wct097/saintaveline/internal/faction"
	"github.com/wct097/saintaveline/internal/fsm"
)

// Archetype names.
const (
	ArchRaiderGuard  = "raider_guard"
	ArchRaiderPatrol = "raider_patrol"
	ArchDaughter     = "daughter"
	ArchGrandfather  = "grandfather"
)

// Template defines how an archetype differs from a default agent.
type Template struct {
	Kind         Kind
	Team         faction.ID
	InitialState string
	Health       float64
	Personality  Personality

	// OwnerRelationship seeds the traits toward the owner at spawn.
	OwnerRelationship RelationshipTraits

	// GunfireComfortLoss is the fraction of comfort lost per gunshot heard.
	GunfireComfortLoss float64

	// Config is merged over DefaultConfig.
	Config Config
}

var archetypeTemplates = map[string]Template{
	ArchRaiderGuard: {
		Kind:         Enemy,
		Team:         faction.Raiders,
		InitialState: StateIdle,
		Health:       100,
		Personality:  Personality{Agreeableness: 0.2, Bravery: 0.7, Independence: 0.6},
	},
	ArchRaiderPatrol: {
		Kind:         Enemy,
		Team:         faction.Raiders,
		InitialState: StatePatrol,
		Health:       100,
		Personality:  Personality{Agreeableness: 0.2, Bravery: 0.6, Independence: 0.5},
	},
	ArchDaughter: {
		Kind:               Friendly,
		Team:               faction.Household,
		InitialState:       StateStay,
		Health:             100,
		Personality:        Personality{Agreeableness: 0.7, Bravery: 0.4, Independence: 0.3},
		OwnerRelationship:  RelationshipTraits{Trust: 0.95, Love: 0.92, Fear: 0.15}, // High trust in her father
		GunfireComfortLoss: 0.12,
	},
	ArchGrandfather: {
		Kind:               Friendly,
		Team:               faction.Household,
		InitialState:       StateStay,
		Health:             80,
		Personality:        Personality{Agreeableness: 0.5, Bravery: 0.7, Independence: 0.7},
		OwnerRelationship:  RelationshipTraits{Trust: 0.85, Love: 0.90, Fear: 0.10}, // Trusts, but more independent
		GunfireComfortLoss: 0.08,                                                       // More stoic under fire
		Config:             Config{MoveSpeed: 2.0},                                     // Slower with age
	},
}

// LookupArchetype returns the template for name.
func LookupArchetype(name string) (Template, bool) {
	t, ok := archetypeTemplates[name]
	return t, ok
}

// ArchetypeNames lists the known archetypes, sorted.
func ArchetypeNames() []string {
	names := make([]string, 0, len(archetypeTemplates))
	for n := range archetypeTemplates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewState builds a starting state by name. Only states that need no extra
// arguments can start an agent.
func NewState(name string, a *Agent) (fsm.State, error) {
	switch name {
	case StateIdle:
		return asState(NewIdle(a))
	case StatePatrol:
		return asState(NewPatrol(a))
	case StateStay:
		return asState(NewStay(a))
	case StateFollow:
		return asState(NewFollow(a))
	case StateFollowIdle:
		return asState(NewFollowIdle(a))
	default:
		return nil, fmt.Errorf("agents: no starting state named %q", name)
	}
}

// asState avoids returning a typed nil inside a non-nil interface.
func asState[S fsm.State](s S, err error) (fsm.State, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
