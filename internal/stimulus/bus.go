package stimulus

import (
	"errors"
	"log/slog"

	"github.com/wct097/saintaveline/internal/world"
)

// ErrRecursionLimit is returned when sensors publish from inside
// HandleSound deeper than Bus.MaxDepth.
var ErrRecursionLimit = errors.New("stimulus: publish recursion limit reached")

// DefaultMaxDepth bounds nested publishes.
const DefaultMaxDepth = 8

// Sensor receives stimuli. Implementations are compared by identity, so
// pointer receivers are expected.
type Sensor interface {
	Position() world.Vec3
	HandleSound(Stimulus)
}

// DeliveryMode selects which registered sensors receive a stimulus.
type DeliveryMode uint8

const (
	// Broadcast delivers to every sensor regardless of distance.
	Broadcast DeliveryMode = iota
	// Filtered delivers only to sensors within the hearing range.
	Filtered
)

func (m DeliveryMode) String() string {
	if m == Broadcast {
		return "broadcast"
	}
	return "filtered"
}

// DefaultPolicy is the per-kind delivery mode used by Dispatch.
func DefaultPolicy() map[Kind]DeliveryMode {
	return map[Kind]DeliveryMode{
		Footstep:  Broadcast,
		Gunshot:   Filtered,
		Explosion: Filtered,
		Shout:     Filtered,
	}
}

// Bus is a registry of sensors. One bus belongs to one simulation.
// Not safe for concurrent use; the host serialises access.
type Bus struct {
	Policy    map[Kind]DeliveryMode
	MaxDepth  int
	OnPublish func(s Stimulus, mode DeliveryMode, delivered int)

	sensors    []Sensor
	registered map[Sensor]struct{}
	depth      int
	log        *slog.Logger
}

// NewBus creates a bus with the default policy.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		Policy:     DefaultPolicy(),
		MaxDepth:   DefaultMaxDepth,
		registered: make(map[Sensor]struct{}),
		log:        logger,
	}
}

// Register adds a sensor. Registering twice has no effect.
func (b *Bus) Register(s Sensor) {
	if s == nil {
		return
	}
	if _, ok := b.registered[s]; ok {
		return
	}
	b.registered[s] = struct{}{}
	b.sensors = append(b.sensors, s)
}

// Unregister removes a sensor. Unknown sensors are ignored.
func (b *Bus) Unregister(s Sensor) {
	if _, ok := b.registered[s]; !ok {
		return
	}
	delete(b.registered, s)
	for i, x := range b.sensors {
		if x == s {
			b.sensors = append(b.sensors[:i:i], b.sensors[i+1:]...)
			break
		}
	}
}

// Registered reports whether s is currently registered.
func (b *Bus) Registered(s Sensor) bool {
	_, ok := b.registered[s]
	return ok
}

// Len is the number of registered sensors.
func (b *Bus) Len() int { return len(b.sensors) }

// Reset drops every registration.
func (b *Bus) Reset() {
	b.sensors = nil
	b.registered = make(map[Sensor]struct{})
}

// Emit delivers to every registered sensor.
func (b *Bus) Emit(s Stimulus) (int, error) { return b.Publish(s, Broadcast) }

// EmitFiltered delivers to sensors within the stimulus hearing range.
func (b *Bus) EmitFiltered(s Stimulus) (int, error) { return b.Publish(s, Filtered) }

// Dispatch delivers using the mode configured for the stimulus kind.
// Kinds missing from Policy are filtered.
func (b *Bus) Dispatch(s Stimulus) (int, error) {
	mode, ok := b.Policy[s.Kind]
	if !ok {
		mode = Filtered
	}
	return b.Publish(s, mode)
}

// Publish delivers s synchronously and returns how many sensors received it.
// Iteration runs over a snapshot of the registry; a sensor unregistered by an
// earlier recipient during the same publish is skipped.
func (b *Bus) Publish(s Stimulus, mode DeliveryMode) (int, error) {
	limit := b.MaxDepth
	if limit <= 0 {
		limit = DefaultMaxDepth
	}
	if b.depth >= limit {
		b.log.Warn("stimulus dropped", "kind", s.Kind, "depth", b.depth, "err", ErrRecursionLimit)
		return 0, ErrRecursionLimit
	}
	b.depth++
	defer func() { b.depth-- }()

	snapshot := make([]Sensor, len(b.sensors))
	copy(snapshot, b.sensors)

	delivered := 0
	for _, sensor := range snapshot {
		if !b.Registered(sensor) {
			continue
		}
		if mode == Filtered && !s.InRange(sensor.Position()) {
			continue
		}
		sensor.HandleSound(s)
		delivered++
	}

	b.log.Debug("stimulus published", "kind", s.Kind, "mode", mode, "range", s.HearingRange, "delivered", delivered)
	if b.OnPublish != nil {
		b.OnPublish(s, mode, delivered)
	}
	return delivered, nil
}
