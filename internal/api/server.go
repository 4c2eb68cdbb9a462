// Package api provides the HTTP API for watching and steering a session.
// GET endpoints are public (read-only observation).
// POST endpoints require an HS256 bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wct097/saintaveline/internal/agents"
	"github.com/wct097/saintaveline/internal/engine"
	"github.com/wct097/saintaveline/internal/persistence"
	"github.com/wct097/saintaveline/internal/stimulus"
	"github.com/wct097/saintaveline/internal/world"
)

const maxStreamConns = 8

// Server serves the session over HTTP.
type Server struct {
	Sim         *engine.Simulation
	Eng         *engine.Engine
	DB          *persistence.DB // Optional; enables /history
	Session     string
	Port        int
	AdminKey    string // HS256 secret for POST endpoints. Empty = POST disabled.
	CORSOrigins []string

	router  chi.Router
	limiter *RateLimiter
	log     *slog.Logger
	started time.Time
	streams chan struct{}
}

// NewServer builds the router.
func NewServer(sim *engine.Simulation, eng *engine.Engine) *Server {
	s := &Server{
		Sim:     sim,
		Eng:     eng,
		limiter: NewRateLimiter(120, 20),
		log:     slog.Default().With("component", "api"),
		started: time.Now(),
		streams: make(chan struct{}, maxStreamConns),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (GET, read-only).
		r.Get("/status", s.handleStatus)
		r.Get("/agents", s.handleAgents)
		r.Get("/agent/{id}", s.handleAgent)
		r.Get("/events", s.handleEvents)
		r.Get("/history", s.handleHistory)
		r.Get("/sessions", s.handleSessions)
		r.Get("/sessions/{id}", s.handleSession)
		r.Get("/stream", s.handleStream)

		// Admin endpoints (POST, bearer token, rate limited).
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware)
			r.Use(s.adminOnly)
			r.Use(middleware.AllowContentType("application/json"))
			r.Use(middleware.RequestSize(64 << 10))
			r.Post("/stimulus", s.handleStimulus)
			r.Post("/command", s.handleCommand)
			r.Post("/damage", s.handleDamage)
			r.Post("/speed", s.handleSpeed)
			r.Post("/player", s.handlePlayer)
			r.Post("/spawn", s.handleSpawn)
		})
	})
	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("HTTP API starting", "addr", srv.Addr, "admin_auth", s.AdminKey != "")

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.limiter.Cleanup(time.Hour)
			}
		}
	}()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// cors adds headers for configured frontend origins. Localhost dev servers
// are always allowed.
func (s *Server) cors(next http.Handler) http.Handler {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	for _, o := range s.CORSOrigins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Response wraps every JSON reply.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Success: status < 400, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	if status >= 500 {
		message = "internal server error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Error: message})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v >= 0 {
		return v
	}
	return def
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	engine.Status
	SimTime string  `json:"sim_time"`
	Speed   float64 `json:"speed"`
	Uptime  string  `json:"uptime"`
	Since   string  `json:"started"`
	Session string  `json:"session,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Status()
	resp := StatusResponse{
		Status:  st,
		Uptime:  humanize.RelTime(s.started, time.Now(), "", ""),
		Since:   humanize.Time(s.started),
		Session: s.Session,
	}
	if s.Eng != nil {
		resp.SimTime = engine.FrameTime(st.Frame, s.Eng.Interval)
		resp.Speed = s.Eng.Speed()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sim.Snapshots())
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	detail, ok := s.Sim.Agent(world.EntityID(id))
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	after := uint64(queryInt(r, "after", 0))
	limit := min(queryInt(r, "limit", 100), engine.MaxEvents)
	writeJSON(w, http.StatusOK, s.Sim.Events(after, limit))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil || s.Session == "" {
		writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	limit := min(queryInt(r, "limit", 100), 1000)
	rows, err := s.DB.RecentEvents(s.Session, r.URL.Query().Get("category"), limit)
	if err != nil {
		s.log.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	list, err := s.DB.Sessions(min(queryInt(r, "limit", 20), 200))
	if err != nil {
		s.log.Error("sessions query failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// SessionDetail is the body of GET /sessions/{id}. Agents is the roster saved
// when the session ended, so it is empty while a session is still running.
type SessionDetail struct {
	persistence.Session
	Current bool              `json:"current"`
	Events  map[string]int    `json:"events"`
	Agents  []agents.Snapshot `json:"agents"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}
	id := chi.URLParam(r, "id")
	sess, err := s.DB.GetSession(id)
	if errors.Is(err, persistence.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	detail := SessionDetail{Session: sess, Current: id == s.Session}
	if err == nil {
		detail.Events, err = s.DB.CountEvents(id)
	}
	if err == nil {
		detail.Agents, err = s.DB.LoadAgents(id)
	}
	if err != nil {
		s.log.Error("session query failed", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// StimulusRequest is the body of POST /stimulus.
type StimulusRequest struct {
	Kind     stimulus.Kind `json:"kind"`
	Position world.Vec3    `json:"position"`
	Range    float64       `json:"range"`
}

func (s *Server) handleStimulus(w http.ResponseWriter, r *http.Request) {
	var req StimulusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Range <= 0 {
		writeError(w, http.StatusBadRequest, "range must be positive")
		return
	}
	s.Sim.QueueStimulus(stimulus.New(req.Kind, req.Position, req.Range, 0))
	writeJSON(w, http.StatusAccepted, req)
}

// CommandRequest is the body of POST /command.
type CommandRequest struct {
	Agent   world.EntityID `json:"agent"`
	Command string         `json:"command"`
	agents.CommandArgs
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.knownCommand(req.Command) {
		writeError(w, http.StatusBadRequest, "unknown command")
		return
	}
	if _, ok := s.Sim.Agent(req.Agent); !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	s.Sim.QueueCommand(req.Agent, req.Command, req.CommandArgs)
	writeJSON(w, http.StatusAccepted, req)
}

func (s *Server) knownCommand(name string) bool {
	for _, n := range s.Sim.Commands.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// DamageRequest is the body of POST /damage.
type DamageRequest struct {
	Agent  world.EntityID `json:"agent"`
	Amount float64        `json:"amount"`
}

func (s *Server) handleDamage(w http.ResponseWriter, r *http.Request) {
	var req DamageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	s.Sim.QueueDamage(req.Agent, req.Amount)
	writeJSON(w, http.StatusAccepted, req)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.Eng == nil {
		writeError(w, http.StatusServiceUnavailable, "no engine")
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"speed": s.Eng.SetSpeed(req.Speed)})
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position world.Vec3 `json:"position"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.Sim.QueuePlayerMove(req.Position)
	writeJSON(w, http.StatusAccepted, req)
}

// SpawnRequest is the body of POST /spawn.
type SpawnRequest struct {
	Name      string     `json:"name"`
	Archetype string     `json:"archetype"`
	Position  world.Vec3 `json:"position"`
	Yaw       float64    `json:"yaw"`
	OwnedBy   bool       `json:"owned_by_player"`
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req SpawnRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := agents.LookupArchetype(req.Archetype); !ok {
		writeError(w, http.StatusBadRequest, "unknown archetype")
		return
	}
	spec := agents.SpawnSpec{Name: req.Name, Archetype: req.Archetype, Position: req.Position, Yaw: req.Yaw}
	if req.OwnedBy {
		spec.Owner = s.Sim.Player
	}
	s.Sim.QueueSpawn(spec)
	writeJSON(w, http.StatusAccepted, req)
}
