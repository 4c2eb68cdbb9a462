package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wct097/saintaveline/internal/agents"
	"github.com/wct097/saintaveline/internal/faction"
	"github.com/wct097/saintaveline/internal/world"
)

//go:embed default_scenario.yaml
var defaultScenario []byte

// OwnerPlayer is the owner value that binds a friendly to the player.
const OwnerPlayer = "player"

// Scenario is a roster of agents plus the arena they stand in.
type Scenario struct {
	Name   string                `yaml:"name" json:"name" jsonschema:"required"`
	Seed   int64                 `yaml:"seed,omitempty" json:"seed,omitempty" jsonschema:"description=Overridden by NPCSIM_SEED when that is non-zero"`
	Arena  *world.ArenaConfig    `yaml:"arena,omitempty" json:"arena,omitempty"`
	Player world.Vec3            `yaml:"player" json:"player"`
	Points map[string]world.Vec3 `yaml:"points,omitempty" json:"points,omitempty" jsonschema:"description=Labelled points friendlies can be sent to"`

	Relations []Relation   `yaml:"relations,omitempty" json:"relations,omitempty"`
	Agents    []AgentEntry `yaml:"agents" json:"agents" jsonschema:"required,minItems=1"`
}

// Relation overrides the standing between two factions.
type Relation struct {
	A     string  `yaml:"a" json:"a" jsonschema:"required"`
	B     string  `yaml:"b" json:"b" jsonschema:"required"`
	Value float64 `yaml:"value" json:"value" jsonschema:"minimum=-100,maximum=100"`
}

// AgentEntry describes one spawn.
type AgentEntry struct {
	Name      string        `yaml:"name,omitempty" json:"name,omitempty"`
	Archetype string        `yaml:"archetype" json:"archetype" jsonschema:"required,enum=raider_guard,enum=raider_patrol,enum=daughter,enum=grandfather"`
	State     string        `yaml:"state,omitempty" json:"state,omitempty" jsonschema:"enum=idle,enum=patrol,enum=stay,enum=follow,enum=follow_idle"`
	Position  world.Vec3    `yaml:"position" json:"position"`
	Yaw       float64       `yaml:"yaw,omitempty" json:"yaw,omitempty"`
	Owner     string        `yaml:"owner,omitempty" json:"owner,omitempty" jsonschema:"enum=player"`
	Policy    string        `yaml:"policy,omitempty" json:"policy,omitempty" jsonschema:"description=expr-lang boolean over weight_a weight_b agreeableness bravery independence trust love fear"`
	Tuning    agents.Config `yaml:"tuning,omitempty" json:"tuning,omitempty"`
}

// LoadScenario reads path, or the built-in scenario when path is empty.
func LoadScenario(path string) (*Scenario, error) {
	data := defaultScenario
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read scenario: %w", err)
		}
		data = b
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks references the YAML decoder cannot.
func (sc *Scenario) Validate() error {
	var errs []error
	if sc.Name == "" {
		errs = append(errs, errors.New("scenario: name is required"))
	}
	if len(sc.Agents) == 0 {
		errs = append(errs, errors.New("scenario: no agents"))
	}
	factions := faction.Seed()
	for _, r := range sc.Relations {
		if _, err := factions.Parse(r.A); err != nil {
			errs = append(errs, fmt.Errorf("relation: %w", err))
		}
		if _, err := factions.Parse(r.B); err != nil {
			errs = append(errs, fmt.Errorf("relation: %w", err))
		}
	}
	for i, a := range sc.Agents {
		t, ok := agents.LookupArchetype(a.Archetype)
		if !ok {
			errs = append(errs, fmt.Errorf("agent %d: unknown archetype %q", i, a.Archetype))
			continue
		}
		if a.Owner != "" && a.Owner != OwnerPlayer {
			errs = append(errs, fmt.Errorf("agent %d: owner must be %q", i, OwnerPlayer))
		}
		if t.Kind == agents.Enemy && a.Owner != "" {
			errs = append(errs, fmt.Errorf("agent %d: enemies have no owner", i))
		}
		if a.Policy != "" {
			if _, err := agents.NewExprPolicy(a.Policy); err != nil {
				errs = append(errs, fmt.Errorf("agent %d: %w", i, err))
			}
		}
	}
	return errors.Join(errs...)
}

// ApplyRelations writes the scenario's overrides into t.
func (sc *Scenario) ApplyRelations(t *faction.Table) error {
	for _, r := range sc.Relations {
		a, err := t.Parse(r.A)
		if err != nil {
			return err
		}
		b, err := t.Parse(r.B)
		if err != nil {
			return err
		}
		t.SetRelation(a, b, r.Value)
	}
	return nil
}

// SpawnSpec converts an entry. player is bound when the entry is owned.
func (e AgentEntry) SpawnSpec(player world.Entity) (agents.SpawnSpec, error) {
	spec := agents.SpawnSpec{
		Name:         e.Name,
		Archetype:    e.Archetype,
		Position:     e.Position,
		Yaw:          e.Yaw,
		InitialState: e.State,
		Config:       e.Tuning,
	}
	if e.Owner == OwnerPlayer {
		spec.Owner = player
	}
	if e.Policy != "" {
		p, err := agents.NewExprPolicy(e.Policy)
		if err != nil {
			return spec, err
		}
		spec.Policy = p
	}
	return spec, nil
}

// KeepClear lists the points arena generation must not cover.
func (sc *Scenario) KeepClear() []world.Vec3 {
	pts := []world.Vec3{sc.Player}
	for _, a := range sc.Agents {
		pts = append(pts, a.Position)
		pts = append(pts, a.Tuning.Waypoints...)
	}
	for _, p := range sc.Points {
		pts = append(pts, p)
	}
	return pts
}
