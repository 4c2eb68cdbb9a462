package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wct097/saintaveline/internal/agents"
	"github.com/wct097/saintaveline/internal/api"
	"github.com/wct097/saintaveline/internal/world"
)

// Actor sends orders through the admin API.
type Actor struct {
	BaseURL    string
	Token      string // Bearer token from api.IssueToken
	HTTPClient *http.Client
}

// NewActor creates an Actor signing its own short-lived token with adminKey.
func NewActor(baseURL, adminKey string) (*Actor, error) {
	tok, err := api.IssueToken(adminKey, "npcwatch", 12*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("issue watch token: %w", err)
	}
	return &Actor{
		BaseURL: baseURL,
		Token:   tok,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Act sends every order in d. It stops at the first failure.
func (a *Actor) Act(ctx context.Context, d Decision) (int, error) {
	for i, o := range d.Orders {
		req := api.CommandRequest{
			Agent:       world.EntityID(o.Agent),
			Command:     o.Command,
			CommandArgs: agents.CommandArgs{Label: o.Label},
		}
		if err := a.post(ctx, "/api/v1/command", req); err != nil {
			return i, fmt.Errorf("order %s to %s: %w", o.Name, o.Command, err)
		}
	}
	return len(d.Orders), nil
}

func (a *Actor) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.Token)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s failed (%d): %s", path, resp.StatusCode, string(respBody))
	}
	return nil
}
