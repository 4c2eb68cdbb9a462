package agents

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func always() bool { return true }

func TestRecoveryWaitsForFullInterval(t *testing.T) {
	m := NewMentalState()
	m.ShouldCalmDown = always
	m.ShouldRegainComfort = always

	m.Tick(0.6)
	assert.Equal(t, 0.0, m.Calmness)
	m.Tick(0.6)

	// calm step: 0.1 * (1 + 0.5) * clamp01(0.5+1) = 0.15
	assert.InDelta(t, 0.15, m.Calmness, 1e-9)
	// comfort step uses the updated calmness: 0.1 * (1 + 0.75) * 1 = 0.175
	assert.InDelta(t, 0.675, m.Comfort, 1e-9)
}

func TestNilGateBlocksRecovery(t *testing.T) {
	m := NewMentalState()
	m.Tick(5)
	assert.Equal(t, 0.0, m.Calmness)
	assert.Equal(t, 0.5, m.Comfort)

	m.ShouldCalmDown = func() bool { return false }
	m.Tick(5)
	assert.Equal(t, 0.0, m.Calmness)
}

func TestRecoveryNeverLeavesUnitRange(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		m := MentalState{
			Comfort:             rng.Float64()*2 - 1,
			Calmness:            rng.Float64()*2 - 1,
			BaseComfortRate:     rng.Float64(),
			BaseCalmRate:        rng.Float64(),
			ShouldCalmDown:      always,
			ShouldRegainComfort: always,
		}
		for step := 0; step < 30; step++ {
			before := m
			m.Tick(1)
			require.GreaterOrEqual(t, m.Calmness, before.Calmness, "rate is non-negative")
			require.GreaterOrEqual(t, m.Comfort, before.Comfort)
			require.LessOrEqual(t, m.Calmness, 1.0)
			require.GreaterOrEqual(t, m.Calmness, -1.0)
			require.LessOrEqual(t, m.Comfort, 1.0)
			require.GreaterOrEqual(t, m.Comfort, -1.0)
		}
	}
}

func TestPanickedAgentDoesNotRegainComfort(t *testing.T) {
	m := MentalState{Comfort: 0, Calmness: -1, BaseComfortRate: 0.5, ShouldRegainComfort: always}
	m.Tick(1)
	assert.Equal(t, 0.0, m.Comfort)
}

func TestReductions(t *testing.T) {
	m := NewMentalState()
	m.ReduceComfort(0.12)
	assert.InDelta(t, 0.44, m.Comfort, 1e-9)

	m.ReduceCalmness(5)
	assert.Equal(t, -1.0, m.Calmness)
	assert.Equal(t, "panicked", m.Band())
}

func TestWeightedPolicy(t *testing.T) {
	pol := DefaultPolicy()
	daughter := Personality{Agreeableness: 0.7, Bravery: 0.4, Independence: 0.3}
	loving := RelationshipTraits{Trust: 0.95, Love: 0.92, Fear: 0.15}
	stranger := RelationshipTraits{Trust: 0.1, Love: 0, Fear: 0.8}

	assert.Equal(t, Obey, pol.Evaluate(1, 1, daughter, loving))
	assert.Equal(t, Refuse, pol.Evaluate(1, 1, daughter, stranger))
	assert.Equal(t, Refuse, pol.Evaluate(0, 0, daughter, loving))
	assert.Equal(t, Refuse, pol.Evaluate(1, 0, daughter, loving), "personality alone is below threshold")
}

func TestExprPolicy(t *testing.T) {
	pol, err := NewExprPolicy("trust*0.5 + love*0.4 - fear*0.3 >= 0.5")
	require.NoError(t, err)
	assert.Equal(t, Obey, pol.Evaluate(1, 1, Personality{}, RelationshipTraits{Trust: 0.95, Love: 0.92, Fear: 0.15}))
	assert.Equal(t, Refuse, pol.Evaluate(1, 1, Personality{}, RelationshipTraits{Trust: 0.2}))

	_, err = NewExprPolicy("trust + ")
	assert.Error(t, err)
	_, err = NewExprPolicy("trust * 2")
	assert.Error(t, err, "non-bool expressions are rejected at compile time")
}

func TestPolicyFunc(t *testing.T) {
	var p Policy = PolicyFunc(func(float64, float64, Personality, RelationshipTraits) Decision { return Obey })
	assert.Equal(t, Obey, p.Evaluate(0, 0, Personality{}, RelationshipTraits{}))
}

func TestRelationshipCreatedLazily(t *testing.T) {
	p := NewProfile(Personality{})
	r := p.Relationship(9)
	r.Love = 0.8
	assert.Equal(t, 0.8, p.Relationship(9).Love)
	assert.Len(t, p.Relationships, 1)

	p.SetRelationship(9, RelationshipTraits{Trust: 2})
	assert.Equal(t, 1.0, p.Relationship(9).Trust)
}
