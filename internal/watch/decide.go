package watch

import (
	"fmt"

	"github.com/wct097/saintaveline/internal/agents"
)

// Actions a Decision can carry.
const (
	ActionNone    = "none"
	ActionShelter = "shelter"
	ActionRegroup = "regroup"
)

// Order is one command for one agent.
type Order struct {
	Agent   uint64 `json:"agent"`
	Name    string `json:"name"`
	Command string `json:"command"`
	Label   string `json:"label,omitempty"`
}

// Decision is what the steward wants done this cycle.
type Decision struct {
	Action    string  `json:"action"`
	Rationale string  `json:"rationale"`
	Orders    []Order `json:"orders,omitempty"`
}

// Steward turns triage results into household orders. It sends the family
// to shelter when shots are being fired and calls them back once the yard
// has been calm for CalmCycles observations.
type Steward struct {
	Shelter    string // Labelled point to retreat to. Empty means stay put.
	CalmCycles int
}

// Decide returns at most one action for the current cycle.
func (s Steward) Decide(snap *Snapshot, h *Health, mem *CycleMemory) Decision {
	switch h.Level {
	case LevelCritical, LevelWarning:
		orders := s.shelterOrders(snap)
		if len(orders) == 0 {
			return Decision{Action: ActionNone, Rationale: "household already sheltering"}
		}
		return Decision{
			Action:    ActionShelter,
			Rationale: fmt.Sprintf("%s: %d hostiles shooting, %d wounded", h.Level, h.Shooting, h.Wounded),
			Orders:    orders,
		}
	case LevelCalm:
		if !mem.ShelteredRecently() || mem.CalmStreak() < max(s.CalmCycles, 1) {
			return Decision{Action: ActionNone, Rationale: "calm"}
		}
		orders := regroupOrders(snap)
		if len(orders) == 0 {
			return Decision{Action: ActionNone, Rationale: "calm"}
		}
		return Decision{
			Action:    ActionRegroup,
			Rationale: fmt.Sprintf("calm for %d cycles", mem.CalmStreak()),
			Orders:    orders,
		}
	}
	return Decision{Action: ActionNone, Rationale: "watching " + h.Level}
}

func (s Steward) shelterOrders(snap *Snapshot) []Order {
	var out []Order
	for _, a := range household(snap) {
		if s.Shelter == "" {
			if a.State == agents.StateStay {
				continue
			}
			out = append(out, Order{Agent: uint64(a.ID), Name: a.Name, Command: "stay"})
			continue
		}
		if a.State == agents.StateGoTo || a.State == agents.StateStay {
			continue
		}
		out = append(out, Order{Agent: uint64(a.ID), Name: a.Name, Command: "goto", Label: s.Shelter})
	}
	return out
}

func regroupOrders(snap *Snapshot) []Order {
	var out []Order
	for _, a := range household(snap) {
		if a.State != agents.StateStay {
			continue
		}
		out = append(out, Order{Agent: uint64(a.ID), Name: a.Name, Command: "follow"})
	}
	return out
}

func household(snap *Snapshot) []agents.Snapshot {
	var out []agents.Snapshot
	for _, a := range snap.Agents {
		if a.Kind == agents.Friendly.String() && !a.Dead && a.Faulted == "" {
			out = append(out, a)
		}
	}
	return out
}
