package agents

// RecoveryInterval is how much accumulated time triggers one recovery step.
const RecoveryInterval = 1.0

// MentalState holds the two mood axes. Both range from -1 to 1: Comfort from
// uncomfortable to comfortable, Calmness from panicked to calm.
type MentalState struct {
	Comfort         float64 `json:"comfort" yaml:"comfort"`
	Calmness        float64 `json:"calmness" yaml:"calmness"`
	BaseComfortRate float64 `json:"base_comfort_rate" yaml:"base_comfort_rate"` // 0–1
	BaseCalmRate    float64 `json:"base_calm_rate" yaml:"base_calm_rate"`       // 0–1

	// Gates decide whether recovery may happen right now. A nil gate blocks
	// recovery on that axis.
	ShouldCalmDown      func() bool `json:"-" yaml:"-"`
	ShouldRegainComfort func() bool `json:"-" yaml:"-"`

	timer float64
}

// NewMentalState returns the resting defaults: mildly comfortable, neutral
// calm, slow recovery.
func NewMentalState() MentalState {
	return MentalState{
		Comfort:         0.5,
		Calmness:        0,
		BaseComfortRate: 0.1,
		BaseCalmRate:    0.1,
	}
}

// Tick accumulates dt and applies one calmness step then one comfort step
// each time a full RecoveryInterval has passed. Leftover time is discarded.
func (m *MentalState) Tick(dt float64) {
	if dt <= 0 {
		return
	}
	m.timer += dt
	if m.timer < RecoveryInterval {
		return
	}
	m.recoverCalmness()
	m.recoverComfort()
	m.timer = 0
}

func (m *MentalState) recoverCalmness() {
	if m.ShouldCalmDown == nil || !m.ShouldCalmDown() {
		return
	}
	m.Calmness = clampUnit(m.Calmness + recoveryRate(m.BaseCalmRate, m.Calmness, m.Comfort))
}

func (m *MentalState) recoverComfort() {
	if m.ShouldRegainComfort == nil || !m.ShouldRegainComfort() {
		return
	}
	m.Comfort = clampUnit(m.Comfort + recoveryRate(m.BaseComfortRate, m.Comfort, m.Calmness))
}

// recoveryRate grows with the axis's own value and is damped by the other
// axis: base × (1 + inverseLerp(-1, 1, self)) × clamp01(other + 1).
// Negative base rates are treated as zero.
func recoveryRate(base, self, other float64) float64 {
	if base < 0 {
		base = 0
	}
	return base * (1 + inverseLerp(-1, 1, self)) * clamp01(other+1)
}

// ReduceComfort removes a fraction of the current comfort (the gunfire
// reaction). The loss is proportional, so a negative comfort moves toward
// zero.
func (m *MentalState) ReduceComfort(fraction float64) {
	m.Comfort = clampUnit(m.Comfort - m.Comfort*fraction)
}

// ReduceCalmness subtracts a flat amount from calmness.
func (m *MentalState) ReduceCalmness(amount float64) {
	m.Calmness = clampUnit(m.Calmness - amount)
}

// Band names the calmness range used for aim jitter and status output.
func (m *MentalState) Band() string {
	switch {
	case m.Calmness > 0.7:
		return "calm"
	case m.Calmness > 0:
		return "steady"
	case m.Calmness > -0.25:
		return "uneasy"
	default:
		return "panicked"
	}
}

func inverseLerp(a, b, v float64) float64 {
	if a == b {
		return 0
	}
	return clamp01((v - a) / (b - a))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
