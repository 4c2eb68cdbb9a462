package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wct097/saintaveline/internal/agents"
	"github.com/wct097/saintaveline/internal/engine"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionLifecycle(t *testing.T) {
	db := openTemp(t)
	start := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	s, err := db.BeginSession(42, "courtyard", start)
	require.NoError(t, err)
	assert.Len(t, s.ID, 36)
	assert.Equal(t, "20260314-092653", s.Label)

	require.NoError(t, db.EndSession(s.ID, 900, start.Add(30*time.Second)))
	got, err := db.GetSession(s.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), got.Frames)
	assert.True(t, got.EndedAt.Valid)

	_, err = db.GetSession("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.EndSession("nope", 1, start), ErrNotFound)

	list, err := db.Sessions(10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEventsRoundTrip(t *testing.T) {
	db := openTemp(t)
	s, err := db.BeginSession(1, "test", time.Now())
	require.NoError(t, err)

	events := []engine.Event{
		{Seq: 1, Frame: 1, Category: engine.EventStateEntered, AgentID: 2, AgentName: "Rook", State: "idle"},
		{Seq: 2, Frame: 30, Category: engine.EventStimulus, Description: "gunshot", Meta: map[string]any{"range": 15.0}},
		{Seq: 3, Frame: 31, Category: engine.EventDied, AgentID: 2, AgentName: "Rook"},
	}
	require.NoError(t, db.SaveEvents(s.ID, events))
	require.NoError(t, db.SaveEvents(s.ID, nil))

	recent, err := db.RecentEvents(s.ID, "", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, uint64(3), recent[0].Seq)
	assert.Equal(t, `{"range":15}`, recent[1].MetaJSON)

	died, err := db.RecentEvents(s.ID, engine.EventDied, 10)
	require.NoError(t, err)
	require.Len(t, died, 1)
	assert.Equal(t, "Rook", died[0].AgentName)

	counts, err := db.CountEvents(s.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		engine.EventStateEntered: 1,
		engine.EventStimulus:     1,
		engine.EventDied:         1,
	}, counts)
}

func TestAgentsReplaceRoster(t *testing.T) {
	db := openTemp(t)
	roster := []agents.Snapshot{
		{ID: 2, Name: "Rook", Kind: "enemy", State: "idle", Health: 100, Stack: []string{}},
		{ID: 3, Name: "Aveline", Kind: "friendly", State: "death", Dead: true, Stack: []string{}},
	}
	require.NoError(t, db.SaveAgents("s1", roster))
	require.NoError(t, db.SaveAgents("s1", roster[1:]))

	got, err := db.LoadAgents("s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, roster[1], got[0])
}

func TestMeta(t *testing.T) {
	db := openTemp(t)
	_, err := db.GetMeta("last_session")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.SaveMeta("last_session", "abc"))
	require.NoError(t, db.SaveMeta("last_session", "def"))
	v, err := db.GetMeta("last_session")
	require.NoError(t, err)
	assert.Equal(t, "def", v)
}

func TestJournalFlushesOnTimer(t *testing.T) {
	db := openTemp(t)
	sim := engine.NewSimulation(engine.Options{Seed: 5})
	session, err := db.BeginSession(5, "test", time.Now())
	require.NoError(t, err)

	j := NewJournal(db, session.ID, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	wait := j.Start(ctx, sim)

	_, err = sim.Spawn(agents.SpawnSpec{Archetype: agents.ArchRaiderGuard})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		counts, err := db.CountEvents(session.ID)
		return err == nil && counts[engine.EventStateEntered] == 1
	}, 2*time.Second, 5*time.Millisecond, "written before shutdown")

	cancel()
	wait()
	assert.Positive(t, j.Written())
}

func TestJournalStartSubscribesImmediately(t *testing.T) {
	db := openTemp(t)
	sim := engine.NewSimulation(engine.Options{Seed: 5})
	session, err := db.BeginSession(5, "test", time.Now())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	wait := NewJournal(db, session.ID, time.Hour).Start(ctx, sim)
	assert.Equal(t, 1, sim.Status().Subscribers)

	_, err = sim.Spawn(agents.SpawnSpec{Archetype: agents.ArchRaiderGuard})
	require.NoError(t, err)
	cancel()
	wait()

	counts, err := db.CountEvents(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[engine.EventStateEntered])
	assert.Equal(t, 0, sim.Status().Subscribers)
}
