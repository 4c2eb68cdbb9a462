package watch

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wct097/saintaveline/internal/agents"
	"github.com/wct097/saintaveline/internal/api"
	"github.com/wct097/saintaveline/internal/engine"
	"github.com/wct097/saintaveline/internal/stimulus"
	"github.com/wct097/saintaveline/internal/world"
)

func friendly(id world.EntityID, name, state string) agents.Snapshot {
	return agents.Snapshot{ID: id, Name: name, Kind: "friendly", State: state, Health: 100, MaxHealth: 100, Mood: "steady"}
}

func enemy(id world.EntityID, state string) agents.Snapshot {
	return agents.Snapshot{ID: id, Name: "raider", Kind: "enemy", State: state, Health: 100, MaxHealth: 100}
}

func TestTriageLevels(t *testing.T) {
	calm := &Snapshot{Agents: []agents.Snapshot{friendly(2, "Kusi-Rose", agents.StateFollow), enemy(3, agents.StateIdle)}}
	calm.Status.PlayerHP = 100
	h := Triage(calm)
	assert.Equal(t, LevelCalm, h.Level)
	assert.Equal(t, 1, h.Hostiles)
	assert.Equal(t, 1, h.Household)

	watch := &Snapshot{Agents: []agents.Snapshot{enemy(3, agents.StatePursue)}}
	watch.Status.PlayerHP = 100
	assert.Equal(t, LevelWatch, Triage(watch).Level)

	shots := &Snapshot{
		Agents: []agents.Snapshot{enemy(3, agents.StateAttack)},
		Events: []engine.Event{{Category: engine.EventStimulus, Meta: map[string]any{"kind": "gunshot"}}},
	}
	shots.Status.PlayerHP = 90
	h = Triage(shots)
	assert.Equal(t, LevelWarning, h.Level)
	assert.Equal(t, 1, h.Gunshots)

	hurt := friendly(2, "Tupac", agents.StateFollow)
	hurt.Health = 30
	hurt.Mood = "panicked"
	critical := &Snapshot{Agents: []agents.Snapshot{hurt, enemy(3, agents.StateAttack)}}
	critical.Status.PlayerHP = 90
	h = Triage(critical)
	assert.Equal(t, LevelCritical, h.Level)
	assert.Equal(t, 1, h.Wounded)
	assert.Equal(t, 1, h.Uneasy)

	dying := &Snapshot{}
	dying.Status.PlayerHP = 20
	assert.Equal(t, LevelCritical, Triage(dying).Level)
}

func TestStewardSheltersThenRegroups(t *testing.T) {
	steward := Steward{Shelter: "cellar", CalmCycles: 2}
	mem := LoadMemory("")

	under := &Snapshot{Agents: []agents.Snapshot{
		friendly(2, "Kusi-Rose", agents.StateFollow),
		friendly(4, "Tupac", agents.StateStay),
		enemy(3, agents.StateAttack),
	}}
	under.Status.PlayerHP = 80
	h := Triage(under)
	d := steward.Decide(under, h, mem)
	require.Equal(t, ActionShelter, d.Action)
	require.Len(t, d.Orders, 1)
	assert.Equal(t, Order{Agent: 2, Name: "Kusi-Rose", Command: "goto", Label: "cellar"}, d.Orders[0])
	mem.Record(CycleRecord{Level: h.Level, Action: d.Action})

	quiet := &Snapshot{Agents: []agents.Snapshot{
		friendly(2, "Kusi-Rose", agents.StateStay),
		friendly(4, "Tupac", agents.StateStay),
	}}
	quiet.Status.PlayerHP = 80
	h = Triage(quiet)
	d = steward.Decide(quiet, h, mem)
	assert.Equal(t, ActionNone, d.Action)
	mem.Record(CycleRecord{Level: h.Level, Action: d.Action})
	mem.Record(CycleRecord{Level: h.Level, Action: ActionNone})

	d = steward.Decide(quiet, h, mem)
	require.Equal(t, ActionRegroup, d.Action)
	assert.Len(t, d.Orders, 2)
	mem.Record(CycleRecord{Level: h.Level, Action: d.Action})

	assert.False(t, mem.ShelteredRecently())
	assert.Equal(t, ActionNone, steward.Decide(quiet, h, mem).Action)
}

func TestStewardWithoutShelterOrdersStay(t *testing.T) {
	snap := &Snapshot{Agents: []agents.Snapshot{
		friendly(2, "Kusi-Rose", agents.StateFollow),
		enemy(3, agents.StateAttack),
	}}
	snap.Status.PlayerHP = 100
	d := Steward{}.Decide(snap, Triage(snap), LoadMemory(""))
	require.Len(t, d.Orders, 1)
	assert.Equal(t, "stay", d.Orders[0].Command)
}

func TestMemoryPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.json")
	mem := LoadMemory(path)
	for i := range maxRecords + 5 {
		mem.Record(CycleRecord{Frame: uint64(i), Level: LevelCalm, Action: ActionNone})
	}
	require.NoError(t, mem.Save())

	loaded := LoadMemory(path)
	require.Len(t, loaded.Records, maxRecords)
	assert.Equal(t, uint64(5), loaded.Records[0].Frame)
	assert.Equal(t, maxRecords, loaded.CalmStreak())
}

func TestFormatting(t *testing.T) {
	line := FormatEvent(engine.Event{Seq: 12345, Time: 75.5, Category: engine.EventDied, AgentName: "Rook", Description: "Rook has died"})
	assert.Contains(t, line, "#12,345")
	assert.Contains(t, line, "[01:15.500]")
	assert.Contains(t, line, "Rook: Rook has died")

	u, err := StreamURL("https://sim.example/base/", 7)
	require.NoError(t, err)
	assert.Equal(t, "wss://sim.example/base/api/v1/stream?after=7", u)
	u, err = StreamURL("http://localhost:8080", 0)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/api/v1/stream?after=0", u)
}

func startAPI(t *testing.T) (*engine.Simulation, *engine.Engine, *httptest.Server) {
	t.Helper()
	sim := engine.NewSimulation(engine.Options{Seed: 5, Points: map[string]world.Vec3{"cellar": {X: -30}}})
	eng := engine.NewEngine(10)
	eng.OnTick = sim.Tick
	srv := api.NewServer(sim, eng)
	srv.AdminKey = "watch-key"
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return sim, eng, ts
}

func TestObserveAndAct(t *testing.T) {
	sim, eng, ts := startAPI(t)
	daughter, err := sim.Spawn(agents.SpawnSpec{
		Name:      "Kusi-Rose",
		Archetype: agents.ArchDaughter,
		Position:  world.Vec3{X: 2},
		Owner:     sim.Player,
	})
	require.NoError(t, err)
	sim.QueueStimulus(stimulus.New(stimulus.Shout, world.Vec3{Z: 500}, 1, 0))
	eng.Advance(2)

	ctx := context.Background()
	obs := NewObserver(ts.URL)
	require.NoError(t, obs.WaitReady(ctx))
	snap, err := obs.Observe(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Status.Frame)
	require.Len(t, snap.Agents, 1)
	assert.NotEmpty(t, snap.Events)

	again, err := obs.Observe(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Events)

	actor, err := NewActor(ts.URL, "watch-key")
	require.NoError(t, err)
	n, err := actor.Act(ctx, Decision{Action: ActionShelter, Orders: []Order{
		{Agent: uint64(daughter.ID()), Name: daughter.Name, Command: "goto", Label: "cellar"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	eng.Advance(1)
	assert.Equal(t, agents.StateGoTo, daughter.StateName())

	bad, err := NewActor(ts.URL, "wrong-key")
	require.NoError(t, err)
	_, err = bad.Act(ctx, Decision{Orders: []Order{{Agent: uint64(daughter.ID()), Command: "stay"}}})
	assert.ErrorContains(t, err, "401")
}

func TestTailStreamsEvents(t *testing.T) {
	sim, eng, ts := startAPI(t)
	sim.QueueStimulus(stimulus.New(stimulus.Shout, world.Zero, 5, 0))
	eng.Advance(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got := make(chan engine.Event, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- Tail(ctx, ts.URL, 0, func(e engine.Event) { got <- e })
	}()

	select {
	case e := <-got:
		assert.Equal(t, engine.EventStimulus, e.Category)
	case <-ctx.Done():
		t.Fatal("no event streamed")
	}
	cancel()
	assert.NoError(t, <-errc)
}
