package agents

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wct097/saintaveline/internal/world"
)

// ErrUnknownCommand is returned for names missing from the command table.
var ErrUnknownCommand = errors.New("agents: unknown command")

// ErrUnknownPoint is returned by goto for an unlabelled destination.
var ErrUnknownPoint = errors.New("agents: unknown labelled point")

// CommandArgs carries the optional arguments of a command.
type CommandArgs struct {
	Label string      `json:"label,omitempty"` // Labelled point for goto
	Point *world.Vec3 `json:"point,omitempty"` // Explicit destination for goto
}

// CommandFunc applies one command to a friendly agent.
type CommandFunc func(a *Agent, args CommandArgs) error

// Commands is the table of orders a player can give a friendly NPC.
type Commands struct {
	table map[string]CommandFunc

	// Points are the player's labelled map points, used by goto.
	Points map[string]world.Vec3
}

// NewCommands builds the stay/follow/goto table.
func NewCommands(points map[string]world.Vec3) *Commands {
	if points == nil {
		points = make(map[string]world.Vec3)
	}
	c := &Commands{Points: points}
	c.table = map[string]CommandFunc{
		"stay":   commandStay,
		"follow": commandFollow,
		"goto":   c.commandGoTo,
	}
	return c
}

// Register adds or replaces a command.
func (c *Commands) Register(name string, fn CommandFunc) {
	c.table[name] = fn
}

// Names lists every command, sorted.
func (c *Commands) Names() []string {
	names := make([]string, 0, len(c.table))
	for n := range c.table {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Available lists the commands that make sense for a right now. goto needs at
// least one labelled point.
func (c *Commands) Available(a *Agent) []string {
	if a.Kind != Friendly || a.dead {
		return nil
	}
	var out []string
	for _, n := range c.Names() {
		if n == "goto" && len(c.Points) == 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Execute runs the named command against a.
func (c *Commands) Execute(a *Agent, name string, args CommandArgs) error {
	fn, ok := c.table[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	if a.dead {
		return ErrDead
	}
	if a.Kind != Friendly {
		return fmt.Errorf("%s: %w", name, ErrWrongKind)
	}
	if err := fn(a, args); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	a.log().Info("command applied", "command", name, "state", a.StateName())
	return nil
}

func commandStay(a *Agent, _ CommandArgs) error {
	s, err := NewStay(a)
	if err != nil {
		return err
	}
	return a.SetState(s)
}

// commandFollow asks the agent to follow its owner. The agent blinks, then
// weighs the request; a refusal leaves it staying put.
func commandFollow(a *Agent, _ CommandArgs) error {
	if a.Owner == nil {
		return ErrNoTarget
	}
	if a.Effects != nil {
		a.Effects.Blink(a.EntityID)
	}

	policy := a.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}
	rel := a.Profile.Relationship(a.Owner.ID())
	decision := policy.Evaluate(1, 1, a.Profile.Personality, *rel)
	AddMemory(a, fmt.Sprintf("Asked to follow, decided to %s", decision), 0.5)

	if decision == Obey {
		s, err := NewFollow(a)
		if err != nil {
			return err
		}
		return a.SetState(s)
	}
	return commandStay(a, CommandArgs{})
}

func (c *Commands) commandGoTo(a *Agent, args CommandArgs) error {
	var dest world.Vec3
	switch {
	case args.Point != nil:
		dest = *args.Point
	case args.Label != "":
		p, ok := c.Points[args.Label]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPoint, args.Label)
		}
		dest = p
	default:
		return ErrUnknownPoint
	}
	s, err := NewGoTo(a, dest)
	if err != nil {
		return err
	}
	return a.SetState(s)
}
