package engine

import (
	"sync"

	"github.com/wct097/saintaveline/internal/world"
)

// Event categories.
const (
	EventStateEntered = "state_entered"
	EventStateExited  = "state_exited"
	EventDied         = "died"
	EventRemoved      = "removed"
	EventFaulted      = "faulted"
	EventStimulus     = "stimulus"
	EventCommand      = "command"
	EventDamaged      = "damaged"
	EventEffect       = "effect"
	EventMemory       = "memory"
)

// MaxEvents bounds the in-memory history.
const MaxEvents = 1000

// Event is a notable occurrence in the session.
type Event struct {
	Seq         uint64         `json:"seq"`
	Frame       uint64         `json:"frame"`
	Time        float64        `json:"time"` // Simulation seconds
	Category    string         `json:"category"`
	AgentID     world.EntityID `json:"agent_id,omitempty"`
	AgentName   string         `json:"agent_name,omitempty"`
	State       string         `json:"state,omitempty"`
	Description string         `json:"description"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// eventLog keeps a bounded history and fans new events out to subscribers.
// Subscribers that fall behind lose events rather than stall the frame.
type eventLog struct {
	mu      sync.Mutex
	seq     uint64
	history []Event
	subs    map[int]chan Event
	nextSub int
	dropped uint64
}

func newEventLog() *eventLog {
	return &eventLog{subs: make(map[int]chan Event)}
}

func (l *eventLog) emit(e Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	e.Seq = l.seq
	l.history = append(l.history, e)
	if len(l.history) > MaxEvents {
		l.history = l.history[len(l.history)-MaxEvents:]
	}
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
			l.dropped++
		}
	}
	return e
}

// since returns events with Seq > after, oldest first, at most limit.
func (l *eventLog) since(after uint64, limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Event
	for _, e := range l.history {
		if e.Seq <= after {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (l *eventLog) subscribe(buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 64
	}
	ch := make(chan Event, buf)

	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
}

func (l *eventLog) stats() (seq, dropped uint64, subscribers int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq, l.dropped, len(l.subs)
}
