// Package engine provides the fixed-step frame loop and the Simulation that
// hosts agents, their world and the lifecycle event stream.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Frame rates.
const (
	DefaultTickRate = 30   // Frames per second
	MaxSpeed        = 16.0 // Upper bound accepted by SetSpeed
)

// Engine drives the simulation forward at a fixed step. Speed scales how
// fast frames are produced in wall time; the step handed to OnTick never
// changes, so a run is reproducible for a given seed.
type Engine struct {
	Frame    uint64        // Current frame counter (monotonic)
	Interval time.Duration // Wall time between frames at speed 1

	// OnTick runs once per frame with the fixed step in seconds.
	OnTick func(frame uint64, dt float64)

	mu      sync.Mutex
	speed   float64
	running bool
	cancel  context.CancelFunc
}

// NewEngine creates an engine ticking rate frames per second.
func NewEngine(rate int) *Engine {
	if rate <= 0 {
		rate = DefaultTickRate
	}
	return &Engine{
		Interval: time.Second / time.Duration(rate),
		speed:    1.0,
	}
}

// Step is the fixed frame duration in seconds.
func (e *Engine) Step() float64 {
	return e.Interval.Seconds()
}

// Speed returns the current multiplier. 0 means paused.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the multiplier, clamped to [0, MaxSpeed].
func (e *Engine) SetSpeed(v float64) float64 {
	v = max(0, min(v, MaxSpeed))
	e.mu.Lock()
	e.speed = v
	e.mu.Unlock()
	slog.Info("engine speed changed", "speed", v)
	return v
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run blocks, producing frames until ctx is cancelled or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	slog.Info("engine started", "frame", e.Frame, "interval", e.Interval, "speed", e.Speed())

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopped", "frame", e.Frame, "time", FrameTime(e.Frame, e.Interval))
			return
		case <-timer.C:
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused; check again shortly.
			timer.Reset(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.step()

		target := time.Duration(float64(e.Interval) / speed)
		wait := target - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// Stop halts a running loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Advance runs n frames immediately, ignoring speed. Used by tests and
// headless batch runs.
func (e *Engine) Advance(n int) {
	for i := 0; i < n; i++ {
		e.step()
	}
}

func (e *Engine) step() {
	e.Frame++
	if e.OnTick != nil {
		e.OnTick(e.Frame, e.Step())
	}
}

// FrameTime renders a frame number as elapsed simulation time.
func FrameTime(frame uint64, interval time.Duration) string {
	d := time.Duration(frame) * interval
	minutes := int(d / time.Minute)
	seconds := d % time.Minute
	return fmt.Sprintf("%02d:%06.3f", minutes, seconds.Seconds())
}
