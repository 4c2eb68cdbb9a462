// Command npcwatch follows a running npcsim session. It tails the event
// stream, triages the yard on a timer and, when given the admin key,
// sends the household to shelter while shots are fired.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wct097/saintaveline/internal/config"
	"github.com/wct097/saintaveline/internal/engine"
	"github.com/wct097/saintaveline/internal/watch"
)

func main() {
	cfg, err := config.WatchFromEnv(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger, _, err := config.NewLogger(config.Logging{Level: level, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("npcwatch starting", "api_url", cfg.APIURL, "interval", cfg.Interval, "steering", cfg.AdminKey != "")

	observer := watch.NewObserver(cfg.APIURL)
	if err := observer.WaitReady(ctx); err != nil {
		slog.Info("stopped before the simulation came up")
		return
	}

	var actor *watch.Actor
	if cfg.AdminKey != "" {
		actor, err = watch.NewActor(cfg.APIURL, cfg.AdminKey)
		if err != nil {
			slog.Error("steering disabled", "error", err)
		}
	}
	steward := watch.Steward{Shelter: cfg.Shelter, CalmCycles: cfg.Calm}
	mem := watch.LoadMemory(cfg.Memory)

	if cfg.Tail {
		go tail(ctx, cfg.APIURL)
	}

	// Run first cycle immediately.
	runCycle(ctx, observer, actor, steward, mem)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runCycle(ctx, observer, actor, steward, mem)
		case <-ctx.Done():
			if err := mem.Save(); err != nil {
				slog.Error("memory save failed", "error", err)
			}
			fmt.Println("npcwatch stopped.")
			return
		}
	}
}

// runCycle executes one observe → triage → decide → act cycle.
func runCycle(ctx context.Context, observer *watch.Observer, actor *watch.Actor, steward watch.Steward, mem *watch.CycleMemory) {
	snap, err := observer.Observe(ctx)
	if err != nil {
		slog.Error("observation failed", "error", err)
		return
	}
	health := watch.Triage(snap)
	slog.Info(watch.Summary(snap, health))

	decision := steward.Decide(snap, health, mem)
	record := watch.CycleRecord{Frame: health.Frame, Level: health.Level, Action: decision.Action, Rationale: decision.Rationale}
	defer func() {
		mem.Record(record)
		if err := mem.Save(); err != nil {
			slog.Warn("memory save failed", "error", err)
		}
	}()

	if decision.Action == watch.ActionNone {
		return
	}
	if actor == nil {
		slog.Info("would act (read-only)", "action", decision.Action, "orders", len(decision.Orders), "rationale", decision.Rationale)
		record.Action = watch.ActionNone
		return
	}
	n, err := actor.Act(ctx, decision)
	record.Orders = n
	if err != nil {
		slog.Error("orders failed", "action", decision.Action, "sent", n, "error", err)
		return
	}
	slog.Info("orders sent", "action", decision.Action, "orders", n, "rationale", decision.Rationale)
}

// tail prints the event stream, reconnecting with backoff when it drops.
func tail(ctx context.Context, apiURL string) {
	var last uint64
	backoff := time.Second
	for ctx.Err() == nil {
		err := watch.Tail(ctx, apiURL, last, func(e engine.Event) {
			last = e.Seq
			backoff = time.Second
			fmt.Println(watch.FormatEvent(e))
		})
		if ctx.Err() != nil {
			return
		}
		slog.Warn("event stream lost, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}
