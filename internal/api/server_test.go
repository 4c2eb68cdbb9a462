package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wct097/saintaveline/internal/agents"
	"github.com/wct097/saintaveline/internal/engine"
	"github.com/wct097/saintaveline/internal/persistence"
	"github.com/wct097/saintaveline/internal/stimulus"
	"github.com/wct097/saintaveline/internal/world"
)

const testKey = "test-admin-key"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	sim := engine.NewSimulation(engine.Options{Seed: 3})
	eng := engine.NewEngine(10)
	eng.OnTick = sim.Tick
	srv := NewServer(sim, eng)
	srv.AdminKey = testKey
	return srv
}

func token(t *testing.T) string {
	t.Helper()
	tok, err := IssueToken(testKey, "tester", time.Minute)
	require.NoError(t, err)
	return tok
}

func do(t *testing.T, srv *Server, method, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success, rec.Body.String())
	return resp.Data
}

func TestStatusAndAgents(t *testing.T) {
	srv := newTestServer(t)
	_, err := srv.Sim.Spawn(agents.SpawnSpec{
		Name:      "Hatchet",
		Archetype: agents.ArchRaiderGuard,
		Position:  world.Vec3{X: 0, Z: 200},
	})
	require.NoError(t, err)
	srv.Eng.Advance(5)

	rec := do(t, srv, http.MethodGet, "/api/v1/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeData[StatusResponse](t, rec)
	assert.Equal(t, uint64(5), st.Frame)
	assert.Equal(t, 1, st.Agents)
	assert.Equal(t, "00:00.500", st.SimTime)
	assert.Equal(t, 1.0, st.Speed)

	rec = do(t, srv, http.MethodGet, "/api/v1/agents", nil, "")
	roster := decodeData[[]agents.Snapshot](t, rec)
	require.Len(t, roster, 1)
	assert.Equal(t, "Hatchet", roster[0].Name)

	rec = do(t, srv, http.MethodGet, "/api/v1/agent/2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeData[engine.AgentDetail](t, rec)
	assert.Equal(t, agents.StateIdle, detail.State)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/v1/agent/99", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/v1/agent/x", nil, "").Code)
}

func TestEventsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	for range 3 {
		srv.Sim.QueueStimulus(stimulus.New(stimulus.Shout, world.Zero, 5, 0))
	}
	srv.Eng.Advance(1)

	rec := do(t, srv, http.MethodGet, "/api/v1/events?limit=2", nil, "")
	events := decodeData[[]engine.Event](t, rec)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(3), events[1].Seq)

	rec = do(t, srv, http.MethodGet, "/api/v1/events?after=2", nil, "")
	events = decodeData[[]engine.Event](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, engine.EventStimulus, events[0].Category)
}

func TestHistoryNeedsJournal(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodGet, "/api/v1/history", nil, "").Code)

	db, err := persistence.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sess, err := db.BeginSession(3, "test", time.Now())
	require.NoError(t, err)
	require.NoError(t, db.SaveEvents(sess.ID, []engine.Event{
		{Seq: 1, Category: engine.EventDied, Description: "a"},
		{Seq: 2, Category: engine.EventCommand, Description: "b"},
	}))
	srv.DB, srv.Session = db, sess.ID

	rec := do(t, srv, http.MethodGet, "/api/v1/history?category=died", nil, "")
	rows := decodeData[[]persistence.EventRow](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].Description)
}

func TestSessionsEndpoints(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodGet, "/api/v1/sessions", nil, "").Code)

	db, err := persistence.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	now := time.Now()
	prev, err := db.BeginSession(1, "yesterday", now.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, db.SaveEvents(prev.ID, []engine.Event{
		{Seq: 1, Category: engine.EventDied, Description: "a"},
		{Seq: 2, Category: engine.EventCommand, Description: "b"},
	}))
	require.NoError(t, db.SaveAgents(prev.ID, []agents.Snapshot{{ID: 2, Name: "Rook", Kind: "enemy", State: "idle"}}))
	require.NoError(t, db.EndSession(prev.ID, 300, now.Add(-50*time.Minute)))
	cur, err := db.BeginSession(3, "today", now)
	require.NoError(t, err)
	srv.DB, srv.Session = db, cur.ID

	list := decodeData[[]persistence.Session](t, do(t, srv, http.MethodGet, "/api/v1/sessions", nil, ""))
	require.Len(t, list, 2)
	assert.Equal(t, cur.ID, list[0].ID)
	assert.Len(t, decodeData[[]persistence.Session](t, do(t, srv, http.MethodGet, "/api/v1/sessions?limit=1", nil, "")), 1)

	old := decodeData[SessionDetail](t, do(t, srv, http.MethodGet, "/api/v1/sessions/"+prev.ID, nil, ""))
	assert.False(t, old.Current)
	assert.Equal(t, uint64(300), old.Frames)
	assert.Equal(t, 1, old.Events[engine.EventDied])
	require.Len(t, old.Agents, 1)
	assert.Equal(t, "Rook", old.Agents[0].Name)

	live := decodeData[SessionDetail](t, do(t, srv, http.MethodGet, "/api/v1/sessions/"+cur.ID, nil, ""))
	assert.True(t, live.Current)
	assert.Empty(t, live.Agents)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/v1/sessions/nope", nil, "").Code)
}

func TestAdminRequiresToken(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]float64{"speed": 2}

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodPost, "/api/v1/speed", body, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodPost, "/api/v1/speed", body, "garbage").Code)

	forged, err := IssueToken("other-key", "mallory", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodPost, "/api/v1/speed", body, forged).Code)

	expired, err := IssueToken(testKey, "tester", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodPost, "/api/v1/speed", body, expired).Code)

	rec := do(t, srv, http.MethodPost, "/api/v1/speed", body, token(t))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, srv.Eng.Speed())

	srv.AdminKey = ""
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodPost, "/api/v1/speed", body, "anything").Code)
}

func TestVerifyToken(t *testing.T) {
	tok := token(t)
	claims, err := VerifyToken(testKey, tok)
	require.NoError(t, err)
	assert.Equal(t, "tester", claims.Subject)
	assert.Equal(t, Issuer, claims.Issuer)

	_, err = IssueToken("", "x", time.Minute)
	assert.ErrorIs(t, err, ErrAdminDisabled)
	_, err = VerifyToken("", tok)
	assert.ErrorIs(t, err, ErrAdminDisabled)
}

func TestAdminCommandQueuesForNextFrame(t *testing.T) {
	srv := newTestServer(t)
	srv.Sim.Commands = agents.NewCommands(map[string]world.Vec3{"well": {X: 30}})
	a, err := srv.Sim.Spawn(agents.SpawnSpec{
		Name:      "Kusi-Rose",
		Archetype: agents.ArchDaughter,
		Position:  world.Vec3{X: 2},
		Owner:     srv.Sim.Player,
	})
	require.NoError(t, err)

	rec := do(t, srv, http.MethodPost, "/api/v1/command",
		CommandRequest{Agent: a.ID(), Command: "goto", CommandArgs: agents.CommandArgs{Label: "well"}}, token(t))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, agents.StateStay, a.StateName())

	srv.Eng.Advance(1)
	assert.Equal(t, agents.StateGoTo, a.StateName())

	rec = do(t, srv, http.MethodPost, "/api/v1/command", CommandRequest{Agent: a.ID(), Command: "dance"}, token(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodPost, "/api/v1/command", CommandRequest{Agent: 77, Command: "stay"}, token(t))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminValidation(t *testing.T) {
	srv := newTestServer(t)
	tok := token(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/stimulus", map[string]any{"kind": "whistle", "range": 5}, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodPost, "/api/v1/stimulus", map[string]any{"kind": "gunshot", "range": 0}, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodPost, "/api/v1/stimulus", map[string]any{"kind": "gunshot", "range": 15}, tok)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/damage", DamageRequest{Agent: engine.PlayerID, Amount: -1}, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodPost, "/api/v1/damage", DamageRequest{Agent: engine.PlayerID, Amount: 10}, tok)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/spawn", SpawnRequest{Archetype: "dragon"}, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodPost, "/api/v1/spawn", SpawnRequest{Name: "Rook", Archetype: agents.ArchRaiderGuard, Position: world.Vec3{Z: 100}}, tok)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/player", map[string]any{"position": world.Vec3{X: 4}}, tok)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = do(t, srv, http.MethodPost, "/api/v1/player", map[string]any{"teleport": true}, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	srv.Eng.Advance(1)
	st := srv.Sim.Status()
	assert.Equal(t, 90.0, st.PlayerHP)
	assert.Equal(t, 1, st.Agents)
	assert.Equal(t, 1, st.Stats.Stimuli)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
	assert.GreaterOrEqual(t, rl.RetryAfter("10.0.0.1"), 1)

	rl.Cleanup(-time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestRateLimitMiddleware(t *testing.T) {
	srv := newTestServer(t)
	srv.limiter = NewRateLimiter(60, 1)
	srv.routes()
	tok := token(t)

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/v1/speed", map[string]float64{"speed": 1}, tok).Code)
	rec := do(t, srv, http.MethodPost, "/api/v1/speed", map[string]float64{"speed": 1}, tok)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Reads are never limited.
	for range 5 {
		assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/v1/status", nil, "").Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", clientIP(req))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t)
	srv.CORSOrigins = []string{"https://watch.example"}
	srv.routes()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "https://watch.example")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://watch.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStreamReplaysThenFollows(t *testing.T) {
	srv := newTestServer(t)
	srv.Sim.QueueStimulus(stimulus.New(stimulus.Gunshot, world.Zero, 15, 0))
	srv.Eng.Advance(1)

	ts := httptest.NewServer(srv)
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream?after=0"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first engine.Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, engine.EventStimulus, first.Category)

	srv.Sim.QueueDamage(engine.PlayerID, 5)
	srv.Eng.Advance(1)

	var next engine.Event
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, engine.EventDamaged, next.Category)
	assert.Greater(t, next.Seq, first.Seq)
}
