package agents

import (
	"github.com/wct097/saintaveline/internal/fsm"
)

// Death is terminal. It disables movement, drops the body, fades it after
// DeathDelay and flags the agent removable FadeDuration later. Stimuli are
// ignored because Death does not implement SoundHandler.
type Death struct {
	agent       *Agent
	timer       float64
	fadeStarted bool
}

func newDeath(a *Agent) *Death {
	return &Death{agent: a}
}

func (s *Death) Name() string { return StateDeath }

func (s *Death) Enter() {
	a := s.agent
	a.log().Info("agent died", "kind", a.Kind)
	AddMemory(a, "Died", 1)

	if a.Movement != nil {
		a.Movement.Disable()
	}
	if a.Effects != nil {
		a.Effects.Ragdoll(a.EntityID)
	} else {
		a.warnOnce("effects", "no effects handle, skipping ragdoll")
	}
}

func (s *Death) Update(dt float64) fsm.Directive {
	a := s.agent
	s.timer += dt

	if !s.fadeStarted && s.timer >= a.Config.DeathDelay {
		s.fadeStarted = true
		if a.Effects == nil || !a.Effects.Fade(a.EntityID, a.Config.FadeDuration) {
			a.log().Warn("no renderer found, skipping fade effect")
		}
	}

	if s.fadeStarted && s.timer >= a.Config.DeathDelay+a.Config.FadeDuration {
		a.markRemovable()
	}
	return fsm.None()
}

func (s *Death) Exit() {}

// Elapsed is the time spent dead.
func (s *Death) Elapsed() float64 { return s.timer }
