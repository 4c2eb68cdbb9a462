package engine

import "github.com/wct097/saintaveline/internal/world"

// sessionEffects turns presentation requests into events for whatever is
// watching the stream. Fade only succeeds when a renderer is attached.
type sessionEffects struct {
	sim      *Simulation
	renderer bool
}

func (e *sessionEffects) Ragdoll(id world.EntityID) {
	e.effect(id, "ragdoll", nil)
}

func (e *sessionEffects) Blink(id world.EntityID) {
	e.effect(id, "blink", nil)
}

func (e *sessionEffects) Fade(id world.EntityID, duration float64) bool {
	if !e.renderer {
		return false
	}
	e.effect(id, "fade", map[string]any{"duration": duration})
	return true
}

func (e *sessionEffects) effect(id world.EntityID, name string, meta map[string]any) {
	if meta == nil {
		meta = make(map[string]any, 1)
	}
	meta["effect"] = name
	e.sim.emit(Event{
		Category:    EventEffect,
		AgentID:     id,
		Description: name,
		Meta:        meta,
	})
}
