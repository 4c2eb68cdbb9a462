// Package fsm is a stack-based finite state machine. One state is current and
// receives Update calls; suspended states wait on a LIFO stack with their
// fields intact until a Pop directive restores them.
package fsm

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyStack is returned when a pop is requested with nothing suspended.
	ErrEmptyStack = errors.New("fsm: pop with empty stack")
	// ErrSealed is returned by transitions attempted after Seal.
	ErrSealed = errors.New("fsm: machine sealed")
	// ErrNilState is returned when a nil state is installed.
	ErrNilState = errors.New("fsm: nil state")
)

// State is one unit of behaviour bound to a single owner.
type State interface {
	Name() string
	Enter()
	Update(dt float64) Directive
	Exit()
}

// Op is the kind of transition a Directive requests.
type Op uint8

const (
	OpNone Op = iota
	OpChange
	OpPop
	OpFault
)

func (o Op) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpChange:
		return "change"
	case OpPop:
		return "pop"
	case OpFault:
		return "fault"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Directive is the result of a state's Update.
type Directive struct {
	Op   Op
	Next State
	Err  error
}

// None keeps the current state.
func None() Directive { return Directive{} }

// Change replaces the current state with next. To resume the current state
// later, push it before returning Change.
func Change(next State) Directive { return Directive{Op: OpChange, Next: next} }

// Pop exits the current state and restores the most recently pushed one.
func Pop() Directive { return Directive{Op: OpPop} }

// Fault reports an invariant violation to whoever drives the machine.
func Fault(err error) Directive { return Directive{Op: OpFault, Err: err} }

// TransitionKind distinguishes enter and exit notifications.
type TransitionKind uint8

const (
	Entered TransitionKind = iota
	Exited
)

func (k TransitionKind) String() string {
	if k == Entered {
		return "entered"
	}
	return "exited"
}

// Transition is delivered to observers each time a state becomes or stops
// being current.
type Transition struct {
	Kind  TransitionKind
	State string
	Depth int // Stack depth at the moment of the notification
}

// Machine holds the current state and the stack of suspended states.
type Machine struct {
	current   State
	stack     []State
	sealed    bool
	observers []func(Transition)
}

// New creates an empty machine.
func New() *Machine {
	return &Machine{}
}

// Observe registers fn to receive enter/exit notifications.
func (m *Machine) Observe(fn func(Transition)) {
	if fn != nil {
		m.observers = append(m.observers, fn)
	}
}

// SetState discards the stack and the current state and makes s current.
func (m *Machine) SetState(s State) error {
	if m.sealed {
		return ErrSealed
	}
	if s == nil {
		return ErrNilState
	}
	m.exitCurrent()
	m.stack = m.stack[:0]
	m.enter(s)
	return nil
}

// PushState suspends s on the stack. The current state is unchanged.
func (m *Machine) PushState(s State) error {
	if m.sealed {
		return ErrSealed
	}
	if s == nil {
		return ErrNilState
	}
	m.stack = append(m.stack, s)
	return nil
}

// PopState removes and returns the top of the stack without touching the
// current state.
func (m *Machine) PopState() (State, error) {
	if len(m.stack) == 0 {
		return nil, ErrEmptyStack
	}
	top := m.stack[len(m.stack)-1]
	m.stack[len(m.stack)-1] = nil
	m.stack = m.stack[:len(m.stack)-1]
	return top, nil
}

// Update runs the current state and applies its directive. A machine with no
// current state does nothing.
func (m *Machine) Update(dt float64) error {
	if m.current == nil {
		return nil
	}
	cur := m.current
	d := cur.Update(dt)

	switch d.Op {
	case OpNone:
		return nil

	case OpChange:
		if m.sealed {
			return nil
		}
		if d.Next == nil {
			return fmt.Errorf("%s: change: %w", cur.Name(), ErrNilState)
		}
		m.exitCurrent()
		m.enter(d.Next)
		return nil

	case OpPop:
		if m.sealed {
			return nil
		}
		m.exitCurrent()
		restored, err := m.PopState()
		if err != nil {
			return fmt.Errorf("%s: %w", cur.Name(), err)
		}
		m.enter(restored)
		return nil

	case OpFault:
		err := d.Err
		if err == nil {
			err = errors.New("unspecified fault")
		}
		return fmt.Errorf("%s: %w", cur.Name(), err)
	}
	return nil
}

// Teardown exits the current state and drops the stack. Used when the owner
// is removed from the world.
func (m *Machine) Teardown() {
	m.stack = nil
	m.exitCurrent()
}

// Seal rejects every later transition. The current state keeps updating.
func (m *Machine) Seal() { m.sealed = true }

// Sealed reports whether Seal has been called.
func (m *Machine) Sealed() bool { return m.sealed }

// Current returns the current state, or nil.
func (m *Machine) Current() State { return m.current }

// CurrentName returns the current state's name, or "" when there is none.
func (m *Machine) CurrentName() string {
	if m.current == nil {
		return ""
	}
	return m.current.Name()
}

// Depth is the number of suspended states.
func (m *Machine) Depth() int { return len(m.stack) }

// StackNames lists suspended states from bottom to top.
func (m *Machine) StackNames() []string {
	names := make([]string, len(m.stack))
	for i, s := range m.stack {
		names[i] = s.Name()
	}
	return names
}

func (m *Machine) enter(s State) {
	m.current = s
	s.Enter()
	m.notify(Entered, s)
}

func (m *Machine) exitCurrent() {
	if m.current == nil {
		return
	}
	old := m.current
	m.current = nil
	old.Exit()
	m.notify(Exited, old)
}

func (m *Machine) notify(kind TransitionKind, s State) {
	if len(m.observers) == 0 {
		return
	}
	t := Transition{Kind: kind, State: s.Name(), Depth: len(m.stack)}
	for _, fn := range m.observers {
		fn(t)
	}
}
