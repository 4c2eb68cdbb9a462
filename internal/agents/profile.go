package agents

import (
	"github.com/wct097/saintaveline/internal/world"
)

// Personality holds fixed traits, each 0.0–1.0.
type Personality struct {
	Agreeableness float64 `json:"agreeableness" yaml:"agreeableness"` // Willingness to go along with requests
	Bravery       float64 `json:"bravery" yaml:"bravery"`             // Tolerance for danger
	Independence  float64 `json:"independence" yaml:"independence"`   // Preference for own judgement
}

// RelationshipTraits is how an agent regards one other entity. 0.0–1.0.
type RelationshipTraits struct {
	Trust float64 `json:"trust" yaml:"trust"`
	Love  float64 `json:"love" yaml:"love"`
	Fear  float64 `json:"fear" yaml:"fear"`
}

// Profile bundles the traits and mood of one agent.
type Profile struct {
	Personality   Personality                            `json:"personality"`
	Mental        MentalState                            `json:"mental"`
	Relationships map[world.EntityID]*RelationshipTraits `json:"relationships"`
}

// NewProfile creates a profile with resting mental state and no
// relationships.
func NewProfile(p Personality) *Profile {
	return &Profile{
		Personality:   p,
		Mental:        NewMentalState(),
		Relationships: make(map[world.EntityID]*RelationshipTraits),
	}
}

// Relationship returns the traits toward id, creating neutral traits on first
// lookup. Entries are never removed.
func (p *Profile) Relationship(id world.EntityID) *RelationshipTraits {
	if p.Relationships == nil {
		p.Relationships = make(map[world.EntityID]*RelationshipTraits)
	}
	r, ok := p.Relationships[id]
	if !ok {
		r = &RelationshipTraits{Trust: 0.5}
		p.Relationships[id] = r
	}
	return r
}

// SetRelationship replaces the traits toward id, clamping each to [0, 1].
func (p *Profile) SetRelationship(id world.EntityID, r RelationshipTraits) {
	r.Trust = clamp01(r.Trust)
	r.Love = clamp01(r.Love)
	r.Fear = clamp01(r.Fear)
	*p.Relationship(id) = r
}
