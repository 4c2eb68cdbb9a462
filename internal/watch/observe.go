// Package watch implements the session watcher.
// It observes the simulation via the API, triages what it sees, and
// optionally steers the household through the admin endpoints.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wct097/saintaveline/internal/agents"
	"github.com/wct097/saintaveline/internal/api"
	"github.com/wct097/saintaveline/internal/engine"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	Status api.StatusResponse `json:"status"`
	Agents []agents.Snapshot  `json:"agents"`
	Events []engine.Event     `json:"events"`
}

// Observer fetches session state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client

	lastSeq uint64
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches status, roster and the events since the previous call.
func (o *Observer) Observe(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON(ctx, "/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON(ctx, "/api/v1/agents", &snap.Agents); err != nil {
		return nil, fmt.Errorf("fetch agents: %w", err)
	}
	path := fmt.Sprintf("/api/v1/events?after=%d&limit=%d", o.lastSeq, engine.MaxEvents)
	if err := o.fetchJSON(ctx, path, &snap.Events); err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	if n := len(snap.Events); n > 0 {
		o.lastSeq = snap.Events[n-1].Seq
	}
	return snap, nil
}

// WaitReady polls the status endpoint with exponential backoff until it
// responds or ctx ends.
func (o *Observer) WaitReady(ctx context.Context) error {
	backoff := 500 * time.Millisecond
	const maxBackoff = 15 * time.Second

	for {
		var st api.StatusResponse
		err := o.fetchJSON(ctx, "/api/v1/status", &st)
		if err == nil {
			slog.Info("simulation API is ready", "frame", st.Frame)
			return nil
		}
		slog.Info("simulation not ready, retrying", "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// fetchJSON GETs a path and decodes the envelope's data into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, target); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}
