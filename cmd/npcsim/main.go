// Command npcsim runs an NPC behaviour session: a scenario roster in a
// generated arena, ticked at a fixed rate, journaled to SQLite and served
// over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wct097/saintaveline/internal/api"
	"github.com/wct097/saintaveline/internal/config"
	"github.com/wct097/saintaveline/internal/engine"
	"github.com/wct097/saintaveline/internal/persistence"
	"github.com/wct097/saintaveline/internal/world"
)

func main() {
	schema := flag.Bool("schema", false, "print the scenario JSON schema and exit")
	envFile := flag.String("env", ".env", "optional dotenv file")
	frames := flag.Int("frames", 0, "run this many frames headless and exit (0 = run until signalled)")
	token := flag.String("token", "", "print an admin token for this subject and exit")
	flag.Parse()

	if *schema {
		data, err := config.ScenarioSchema()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Stdout.Write(data)
		return
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if *token != "" {
		tok, err := api.IssueToken(cfg.AdminKey, *token, 24*time.Hour)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	level, _ := cfg.Level()
	logger, closeLog, err := config.NewLogger(config.Logging{Level: level, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg, *frames); err != nil {
		slog.Error("npcsim failed", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config, frames int) error {
	// ── Scenario ──────────────────────────────────────────────────────
	sc, err := config.LoadScenario(cfg.Scenario)
	if err != nil {
		return err
	}
	seed := sc.Seed
	if cfg.Seed != 0 {
		seed = cfg.Seed
	}
	slog.Info("scenario loaded", "name", sc.Name, "seed", seed, "agents", len(sc.Agents), "points", len(sc.Points))

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	reportPrevious(db)

	session, err := db.BeginSession(seed, sc.Name, time.Now())
	if err != nil {
		return err
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim := engine.NewSimulation(engine.Options{
		Seed:     seed,
		Points:   sc.Points,
		Logger:   slog.Default().With("session", session.ID),
		Renderer: cfg.Renderer,
	})

	// ── Journal ───────────────────────────────────────────────────────
	// Started before the roster spawns so their first states are recorded.
	journal := persistence.NewJournal(db, session.ID, cfg.JournalFlush)
	jctx, stopJournal := context.WithCancel(context.Background())
	defer stopJournal()
	waitJournal := journal.Start(jctx, sim)

	if err := sc.ApplyRelations(sim.Factions); err != nil {
		return err
	}
	sim.Player.Pose.Position = sc.Player

	arena := world.DefaultArenaConfig()
	if sc.Arena != nil {
		arena = *sc.Arena
	}
	if arena.Seed == 0 {
		arena.Seed = seed
	}
	cover := world.GenerateArena(arena, sc.KeepClear())
	sim.AddObstacles(cover)

	for i, entry := range sc.Agents {
		spec, err := entry.SpawnSpec(sim.Player)
		if err != nil {
			return fmt.Errorf("agent %d: %w", i, err)
		}
		if _, err := sim.Spawn(spec); err != nil {
			return fmt.Errorf("agent %d: %w", i, err)
		}
	}
	slog.Info("arena ready", "cover", len(cover), "agents", len(sim.Agents))
	if !cfg.Renderer {
		slog.Warn("no renderer attached; death fades will be skipped")
	}

	eng := engine.NewEngine(cfg.TickRate)
	eng.SetSpeed(cfg.Speed)
	eng.OnTick = sim.Tick

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if frames > 0 {
		eng.Advance(frames)
	} else {
		// ── HTTP API ──────────────────────────────────────────────────
		if cfg.AdminKey == "" {
			slog.Warn("NPCSIM_ADMIN_KEY not set; admin POST endpoints are disabled")
		}
		srv := api.NewServer(sim, eng)
		srv.DB = db
		srv.Session = session.ID
		srv.Port = cfg.APIPort
		srv.AdminKey = cfg.AdminKey
		srv.CORSOrigins = cfg.CORSOrigins
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				slog.Error("HTTP API stopped", "error", err)
				stop()
			}
		}()

		fmt.Printf("\n%s is live: %d agents, %d pieces of cover.\n", sc.Name, len(sim.Agents), len(cover))
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.APIPort)
		fmt.Println("Starting simulation... (Ctrl+C to stop)")
		eng.Run(ctx)
	}

	// ── Shutdown ──────────────────────────────────────────────────────
	stop()
	wg.Wait()
	stopJournal()
	waitJournal()

	st := sim.Status()
	var errs []error
	errs = append(errs, db.SaveAgents(session.ID, sim.Snapshots()))
	errs = append(errs, db.SaveMeta("last_session", session.ID))
	errs = append(errs, db.SaveMeta("last_frame", strconv.FormatUint(st.Frame, 10)))
	errs = append(errs, db.EndSession(session.ID, st.Frame, time.Now()))
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("final save: %w", err)
	}

	slog.Info("session saved",
		"session", session.ID,
		"label", session.Label,
		"frames", st.Frame,
		"events", journal.Written(),
		"deaths", st.Stats.Dead+st.Stats.Removed,
	)
	fmt.Printf("Session %s stopped at %s.\n", session.Label, engine.FrameTime(st.Frame, eng.Interval))
	return nil
}

// reportPrevious logs how the last recorded session ended.
func reportPrevious(db *persistence.DB) {
	id, err := db.GetMeta("last_session")
	if errors.Is(err, persistence.ErrNotFound) {
		return
	}
	if err != nil {
		slog.Warn("previous session unreadable", "error", err)
		return
	}
	prev, err := db.GetSession(id)
	if err != nil {
		slog.Warn("previous session unreadable", "session", id, "error", err)
		return
	}
	roster, err := db.LoadAgents(id)
	if err != nil {
		slog.Warn("previous roster unreadable", "session", id, "error", err)
		return
	}
	counts, err := db.CountEvents(id)
	if err != nil {
		slog.Warn("previous journal unreadable", "session", id, "error", err)
		return
	}
	standing := 0
	for _, a := range roster {
		if !a.Dead {
			standing++
		}
	}
	slog.Info("previous session",
		"label", prev.Label,
		"scenario", prev.Scenario,
		"frames", prev.Frames,
		"agents", len(roster),
		"standing", standing,
		"deaths", counts[engine.EventDied],
		"events", humanize.Comma(int64(sum(counts))),
	)
}

func sum(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
