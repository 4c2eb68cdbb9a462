// Package faction tracks the teams agents belong to and how they regard each
// other. An agent treats another as a valid target only when their factions
// are hostile.
package faction

import (
	"fmt"
	"sort"
	"strings"
)

// ID is a faction identifier.
type ID uint16

const (
	Unaffiliated ID = iota
	Household       // The player and the people they protect
	Raiders         // Armed intruders
	Townsfolk       // Bystanders
)

// HostileThreshold is the relation at or below which two factions fight.
const HostileThreshold = -50.0

// Faction is one team.
type Faction struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`

	// Relations with other factions (faction ID → -100 to +100).
	Relations map[ID]float64 `json:"relations"`
}

// Table holds every known faction.
type Table struct {
	byID map[ID]*Faction
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{byID: make(map[ID]*Faction)}
}

// Seed creates the factions present in a standard scenario. Household and
// Raiders are at war; Townsfolk are neutral toward both.
func Seed() *Table {
	t := NewTable()
	t.Add(&Faction{ID: Household, Name: "Household"})
	t.Add(&Faction{ID: Raiders, Name: "Raiders"})
	t.Add(&Faction{ID: Townsfolk, Name: "Townsfolk"})
	t.SetRelation(Household, Raiders, -100)
	t.SetRelation(Household, Townsfolk, 40)
	t.SetRelation(Raiders, Townsfolk, -20)
	return t
}

// Add registers f, replacing any faction with the same ID.
func (t *Table) Add(f *Faction) {
	if f.Relations == nil {
		f.Relations = make(map[ID]float64)
	}
	t.byID[f.ID] = f
}

// Get returns the faction with id.
func (t *Table) Get(id ID) (*Faction, bool) {
	f, ok := t.byID[id]
	return f, ok
}

// SetRelation sets the symmetric relation between a and b, clamped to
// [-100, 100]. Unknown factions are created on demand.
func (t *Table) SetRelation(a, b ID, v float64) {
	v = max(-100, min(100, v))
	t.ensure(a).Relations[b] = v
	t.ensure(b).Relations[a] = v
}

// Relation returns how a regards b. Members of one faction are at +100;
// unknown pairs are neutral.
func (t *Table) Relation(a, b ID) float64 {
	if a == b {
		return 100
	}
	f, ok := t.byID[a]
	if !ok {
		return 0
	}
	return f.Relations[b]
}

// Hostile reports whether a treats b as an enemy.
func (t *Table) Hostile(a, b ID) bool {
	if a == Unaffiliated || b == Unaffiliated {
		return false
	}
	return t.Relation(a, b) <= HostileThreshold
}

// Names lists the faction names sorted by ID.
func (t *Table) Names() []string {
	ids := make([]int, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = t.byID[ID(id)].Name
	}
	return out
}

// Parse resolves a faction by case-insensitive name.
func (t *Table) Parse(name string) (ID, error) {
	for id, f := range t.byID {
		if strings.EqualFold(f.Name, strings.TrimSpace(name)) {
			return id, nil
		}
	}
	return Unaffiliated, fmt.Errorf("faction: unknown faction %q", name)
}

func (t *Table) ensure(id ID) *Faction {
	f, ok := t.byID[id]
	if !ok {
		f = &Faction{ID: id, Name: fmt.Sprintf("Faction %d", id)}
		t.Add(f)
	}
	return f
}
