package watch

import (
	"github.com/wct097/saintaveline/internal/agents"
	"github.com/wct097/saintaveline/internal/engine"
)

// Threat levels, most severe first.
const (
	LevelCritical = "CRITICAL"
	LevelWarning  = "WARNING"
	LevelWatch    = "WATCH"
	LevelCalm     = "CALM"
)

// Health holds derived signals computed from a Snapshot.
// Deterministic; runs before any decision.
type Health struct {
	Frame    uint64
	PlayerHP float64

	Hostiles  int // Enemies alive
	Engaged   int // Enemies pursuing or attacking
	Shooting  int // Enemies attacking
	Household int // Friendlies alive
	Wounded   int // Friendlies under half health
	Uneasy    int // Friendlies in the uneasy or panicked mood bands
	Faulted   int
	Deaths    int // Died events since the last observation
	Gunshots  int // Gunshot stimuli since the last observation

	Level string
}

// Triage computes Health from the snapshot's data.
func Triage(snap *Snapshot) *Health {
	h := &Health{
		Frame:    snap.Status.Frame,
		PlayerHP: snap.Status.PlayerHP,
		Faulted:  snap.Status.Stats.Faulted,
	}

	for _, a := range snap.Agents {
		if a.Dead || a.Faulted != "" {
			continue
		}
		switch a.Kind {
		case agents.Enemy.String():
			h.Hostiles++
			switch a.State {
			case agents.StatePursue:
				h.Engaged++
			case agents.StateAttack:
				h.Engaged++
				h.Shooting++
			}
		case agents.Friendly.String():
			h.Household++
			if a.MaxHealth > 0 && a.Health < a.MaxHealth/2 {
				h.Wounded++
			}
			if a.Mood == "uneasy" || a.Mood == "panicked" {
				h.Uneasy++
			}
		}
	}

	for _, e := range snap.Events {
		switch e.Category {
		case engine.EventDied:
			h.Deaths++
		case engine.EventStimulus:
			if e.Meta["kind"] == "gunshot" {
				h.Gunshots++
			}
		}
	}

	h.Level = LevelCalm
	switch {
	case h.PlayerHP <= 25, h.Shooting > 0 && h.Wounded > 0:
		h.Level = LevelCritical
	case h.Shooting > 0, h.Deaths > 0:
		h.Level = LevelWarning
	case h.Engaged > 0, h.Gunshots > 0, h.Faulted > 0:
		h.Level = LevelWatch
	}
	return h
}
