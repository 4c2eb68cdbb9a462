// Simulation ties together the world, the stimulus bus and the agents, and
// runs them each frame.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/wct097/saintaveline/internal/agents"
	"github.com/wct097/saintaveline/internal/entropy"
	"github.com/wct097/saintaveline/internal/faction"
	"github.com/wct097/saintaveline/internal/fsm"
	"github.com/wct097/saintaveline/internal/stimulus"
	"github.com/wct097/saintaveline/internal/world"
)

// PlayerID is reserved for the player body. Agents are numbered after it.
const PlayerID world.EntityID = 1

// ErrUnknownAgent is returned for IDs not in the registry.
var ErrUnknownAgent = errors.New("engine: unknown agent")

// Options configure a new Simulation.
type Options struct {
	Seed   int64
	Points map[string]world.Vec3 // Labelled map points for goto
	Logger *slog.Logger

	// Renderer reports whether fade effects can run. Without one the death
	// fade is skipped with a warning and removal still happens on schedule.
	Renderer bool

	PlayerSpeed      float64 // Units per second when walking the player
	FootstepInterval float64 // Seconds between player footsteps
	FootstepRange    float64
}

// Simulation holds the complete session state. All exported methods are
// safe to call from other goroutines; agent logic only ever runs inside Tick.
type Simulation struct {
	mu sync.Mutex

	Space    *world.Space
	Bus      *stimulus.Bus
	Factions *faction.Table
	Rand     *entropy.Source
	Spawner  *agents.Spawner
	Commands *agents.Commands
	Player   *world.Body

	Agents     []*agents.Agent
	AgentIndex map[world.EntityID]*agents.Agent

	Frame uint64
	Clock float64
	Stats SimStats

	opts        Options
	log         *slog.Logger
	events      *eventLog
	queue       []pending
	playerMover *world.Mover
	footstep    float64
}

// SimStats tracks aggregate session statistics.
type SimStats struct {
	Spawned   int `json:"spawned"`
	Alive     int `json:"alive"`
	Dead      int `json:"dead"`
	Removed   int `json:"removed"`
	Faulted   int `json:"faulted"`
	Stimuli   int `json:"stimuli"`
	Commands  int `json:"commands"`
	ShotsHit  int `json:"shots_hit"`
	ShotsMiss int `json:"shots_missed"`
}

// pending is an operation queued from outside the frame loop.
type pending struct {
	desc string
	fn   func() error
}

// NewSimulation creates an empty session with a player body at the origin.
func NewSimulation(opts Options) *Simulation {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PlayerSpeed <= 0 {
		opts.PlayerSpeed = 5
	}
	if opts.FootstepInterval <= 0 {
		opts.FootstepInterval = 0.4
	}
	if opts.FootstepRange <= 0 {
		opts.FootstepRange = 8
	}

	s := &Simulation{
		Space:      world.NewSpace(),
		Bus:        stimulus.NewBus(opts.Logger),
		Factions:   faction.Seed(),
		Rand:       entropy.New(opts.Seed),
		AgentIndex: make(map[world.EntityID]*agents.Agent),
		opts:       opts,
		log:        opts.Logger,
		events:     newEventLog(),
	}
	s.Bus.OnPublish = s.onPublish

	s.Player = world.NewBody(PlayerID, "player", world.CategoryPlayer, world.Zero, 100)
	s.Player.Team = faction.Household
	s.Space.Add(s.Player)
	s.playerMover = world.NewMover(&s.Player.Pose, opts.PlayerSpeed, 0)

	env := agents.Env{
		Spatial:  s.Space,
		Bus:      s.Bus,
		Factions: s.Factions,
		Rand:     s.Rand.Fork(1),
		Log:      opts.Logger,
		Hooks: agents.Hooks{
			OnTransition: s.onTransition,
			OnDied:       s.onDied,
			OnFault:      s.onFault,
			OnMemory:     s.onMemory,
		},
	}
	s.Spawner = agents.NewSpawner(s.Rand.Seed(), env)
	s.Spawner.SetNextID(PlayerID + 1)
	s.Commands = agents.NewCommands(opts.Points)
	return s
}

// AddObstacles places sight-blocking geometry.
func (s *Simulation) AddObstacles(obs []world.Obstacle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range obs {
		s.Space.AddObstacle(o)
	}
}

// Spawn creates an agent and registers it with the space and the bus. A nil
// Weapon on an enemy gets a Gunshot; a nil Effects gets the session effects.
func (s *Simulation) Spawn(spec agents.SpawnSpec) (*agents.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawnLocked(spec)
}

func (s *Simulation) spawnLocked(spec agents.SpawnSpec) (*agents.Agent, error) {
	if spec.Effects == nil {
		spec.Effects = &sessionEffects{sim: s, renderer: s.opts.Renderer}
	}
	var gun *Gunshot
	if spec.Weapon == nil {
		if t, ok := agents.LookupArchetype(spec.Archetype); ok && t.Kind == agents.Enemy {
			gun = NewGunshot(s)
			spec.Weapon = gun
		}
	}

	a, err := s.Spawner.Spawn(spec)
	if err != nil {
		return nil, err
	}
	if gun != nil {
		gun.Owner = a
	}

	s.Agents = append(s.Agents, a)
	s.AgentIndex[a.ID()] = a
	s.Space.Add(a)
	s.Bus.Register(a)
	s.Stats.Spawned++
	return a, nil
}

// Tick advances the session by dt seconds: queued operations, the player,
// every agent once, then removal of finished corpses.
func (s *Simulation) Tick(frame uint64, dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Frame = frame
	s.Clock += dt
	s.drainQueue()
	s.tickPlayer(dt)

	// Agents spawned during the frame start ticking next frame.
	roster := slices.Clone(s.Agents)
	for _, a := range roster {
		a.Tick(dt)
		if m, ok := a.Movement.(interface{ Advance(float64) }); ok {
			m.Advance(dt)
		}
	}

	s.removeFinished()
	s.updateStats()
}

func (s *Simulation) drainQueue() {
	if len(s.queue) == 0 {
		return
	}
	queue := s.queue
	s.queue = nil
	for _, p := range queue {
		if err := p.fn(); err != nil {
			s.log.Warn("queued operation failed", "op", p.desc, "error", err)
		}
	}
}

func (s *Simulation) tickPlayer(dt float64) {
	if !s.playerMover.HasPath() {
		s.footstep = 0
		return
	}
	s.playerMover.Advance(dt)
	s.footstep += dt
	if s.footstep >= s.opts.FootstepInterval {
		s.footstep = 0
		step := stimulus.New(stimulus.Footstep, s.Player.Position(), s.opts.FootstepRange, PlayerID)
		if _, err := s.Bus.Dispatch(step); err != nil {
			s.log.Warn("footstep dropped", "error", err)
		}
	}
	if s.playerMover.IsArrived(0.05) {
		s.playerMover.Stop()
	}
}

func (s *Simulation) removeFinished() {
	kept := s.Agents[:0]
	for _, a := range s.Agents {
		if !a.Removable() {
			kept = append(kept, a)
			continue
		}
		a.Remove()
		s.Bus.Unregister(a)
		s.Space.Remove(a.ID())
		delete(s.AgentIndex, a.ID())
		s.Stats.Removed++
		s.emit(Event{
			Category:    EventRemoved,
			AgentID:     a.ID(),
			AgentName:   a.Name,
			Description: fmt.Sprintf("%s removed from the world", a.Name),
		})
	}
	clear(s.Agents[len(kept):])
	s.Agents = kept
}

func (s *Simulation) updateStats() {
	alive, dead, faulted := 0, 0, 0
	for _, a := range s.Agents {
		switch {
		case a.Faulted() != nil:
			faulted++
		case a.Dead():
			dead++
		default:
			alive++
		}
	}
	s.Stats.Alive = alive
	s.Stats.Dead = dead
	s.Stats.Faulted = faulted
}

// emit stamps and records an event. Callers hold mu.
func (s *Simulation) emit(e Event) {
	e.Frame = s.Frame
	e.Time = s.Clock
	s.events.emit(e)
}

func (s *Simulation) onTransition(a *agents.Agent, t fsm.Transition) {
	cat := EventStateEntered
	if t.Kind == fsm.Exited {
		cat = EventStateExited
	}
	s.emit(Event{
		Category:    cat,
		AgentID:     a.ID(),
		AgentName:   a.Name,
		State:       t.State,
		Description: fmt.Sprintf("%s %s %s", a.Name, t.Kind, t.State),
		Meta:        map[string]any{"depth": t.Depth},
	})
}

func (s *Simulation) onDied(a *agents.Agent) {
	desc := fmt.Sprintf("%s has died", a.Name)
	if a.Kind == agents.Friendly {
		desc = fmt.Sprintf("%s has died. The household is smaller now.", a.Name)
	}
	s.emit(Event{
		Category:    EventDied,
		AgentID:     a.ID(),
		AgentName:   a.Name,
		Description: desc,
		Meta:        map[string]any{"kind": a.Kind.String(), "archetype": a.Archetype},
	})
}

func (s *Simulation) onFault(a *agents.Agent, err error) {
	s.emit(Event{
		Category:    EventFaulted,
		AgentID:     a.ID(),
		AgentName:   a.Name,
		Description: err.Error(),
	})
}

// NotableMemory is the importance at which a memory also becomes an event.
const NotableMemory = 0.6

func (s *Simulation) onMemory(a *agents.Agent, m agents.Memory) {
	if m.Importance < NotableMemory {
		return
	}
	s.emit(Event{
		Category:    EventMemory,
		AgentID:     a.ID(),
		AgentName:   a.Name,
		State:       a.StateName(),
		Description: fmt.Sprintf("%s: %s", a.Name, m.Content),
		Meta:        map[string]any{"importance": m.Importance},
	})
}

func (s *Simulation) onPublish(st stimulus.Stimulus, mode stimulus.DeliveryMode, delivered int) {
	s.Stats.Stimuli++
	s.emit(Event{
		Category:    EventStimulus,
		AgentID:     st.Source,
		Description: st.String(),
		Meta: map[string]any{
			"kind":      st.Kind.String(),
			"mode":      mode.String(),
			"range":     st.HearingRange,
			"delivered": delivered,
			"position":  st.Position,
		},
	})
}

// Enqueue schedules fn to run at the start of the next frame.
func (s *Simulation) Enqueue(desc string, fn func() error) {
	s.mu.Lock()
	s.queue = append(s.queue, pending{desc: desc, fn: fn})
	s.mu.Unlock()
}

// QueueStimulus schedules a stimulus emission with the kind's delivery policy.
func (s *Simulation) QueueStimulus(st stimulus.Stimulus) {
	s.Enqueue("stimulus "+st.Kind.String(), func() error {
		_, err := s.Bus.Dispatch(st)
		return err
	})
}

// QueueCommand schedules a player order to agent id.
func (s *Simulation) QueueCommand(id world.EntityID, name string, args agents.CommandArgs) {
	s.Enqueue("command "+name, func() error {
		return s.applyCommand(id, name, args)
	})
}

func (s *Simulation) applyCommand(id world.EntityID, name string, args agents.CommandArgs) error {
	a, ok := s.AgentIndex[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	err := s.Commands.Execute(a, name, args)
	s.Stats.Commands++
	e := Event{
		Category:    EventCommand,
		AgentID:     a.ID(),
		AgentName:   a.Name,
		State:       a.StateName(),
		Description: fmt.Sprintf("%s ordered to %s", a.Name, name),
		Meta:        map[string]any{"command": name},
	}
	if err != nil {
		e.Meta["error"] = err.Error()
	}
	s.emit(e)
	return err
}

// QueueDamage schedules damage to agent id, or to the player for PlayerID.
func (s *Simulation) QueueDamage(id world.EntityID, amount float64) {
	s.Enqueue("damage", func() error {
		target, ok := s.damageable(id)
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownAgent, id)
		}
		s.damage(id, target, amount, "admin")
		return nil
	})
}

// QueuePlayerMove walks the player to dest, emitting footsteps on the way.
func (s *Simulation) QueuePlayerMove(dest world.Vec3) {
	s.Enqueue("player move", func() error {
		s.playerMover.MoveTo(dest)
		return nil
	})
}

// QueueSpawn schedules a spawn for the next frame.
func (s *Simulation) QueueSpawn(spec agents.SpawnSpec) {
	s.Enqueue("spawn "+spec.Archetype, func() error {
		_, err := s.spawnLocked(spec)
		return err
	})
}

func (s *Simulation) damageable(id world.EntityID) (world.Damageable, bool) {
	if id == PlayerID {
		return s.Player, true
	}
	a, ok := s.AgentIndex[id]
	return a, ok
}

func (s *Simulation) damage(id world.EntityID, target world.Damageable, amount float64, source string) {
	left := target.TakeDamage(amount)
	s.emit(Event{
		Category:    EventDamaged,
		AgentID:     id,
		Description: fmt.Sprintf("entity %d took %.0f damage from %s", id, amount, source),
		Meta:        map[string]any{"amount": amount, "health": left, "source": source},
	})
}

// Subscribe returns a channel of new events and a cancel func. Slow readers
// miss events rather than block the frame.
func (s *Simulation) Subscribe(buf int) (<-chan Event, func()) {
	return s.events.subscribe(buf)
}

// Events returns recorded events after seq, at most limit.
func (s *Simulation) Events(after uint64, limit int) []Event {
	return s.events.since(after, limit)
}

// Status is a point-in-time summary of the session.
type Status struct {
	Frame       uint64     `json:"frame"`
	Clock       float64    `json:"clock"`
	Agents      int        `json:"agents"`
	Stats       SimStats   `json:"stats"`
	Player      world.Pose `json:"player"`
	PlayerHP    float64    `json:"player_health"`
	EventSeq    uint64     `json:"event_seq"`
	Dropped     uint64     `json:"events_dropped"`
	Subscribers int        `json:"subscribers"`
	Obstacles   int        `json:"obstacles"`
}

// Status summarises the session.
func (s *Simulation) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, dropped, subs := s.events.stats()
	return Status{
		Frame:       s.Frame,
		Clock:       s.Clock,
		Agents:      len(s.Agents),
		Stats:       s.Stats,
		Player:      s.Player.Pose,
		PlayerHP:    s.Player.Health,
		EventSeq:    seq,
		Dropped:     dropped,
		Subscribers: subs,
		Obstacles:   len(s.Space.Obstacles),
	}
}

// Snapshots returns every live agent's view, in spawn order.
func (s *Simulation) Snapshots() []agents.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]agents.Snapshot, 0, len(s.Agents))
	for _, a := range s.Agents {
		out = append(out, a.Snapshot())
	}
	return out
}

// AgentDetail is a snapshot plus the agent's memory and available orders.
type AgentDetail struct {
	agents.Snapshot
	Personality agents.Personality `json:"personality"`
	Memories    []agents.Memory    `json:"memories"`
	Notable     []agents.Memory    `json:"notable,omitempty"`
	Commands    []string           `json:"commands,omitempty"`
}

// Agent returns the detail view for id.
func (s *Simulation) Agent(id world.EntityID) (AgentDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.AgentIndex[id]
	if !ok {
		return AgentDetail{}, false
	}
	return AgentDetail{
		Snapshot:    a.Snapshot(),
		Personality: a.Profile.Personality,
		Memories:    agents.RecentMemories(a, 20),
		Notable:     agents.ImportantMemories(a, 5),
		Commands:    s.Commands.Available(a),
	}, true
}
