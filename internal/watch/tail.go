package watch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/wct097/saintaveline/internal/engine"
)

// StreamURL converts an http(s) API base into the websocket stream URL.
func StreamURL(base string, after uint64) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/v1/stream"
	q := u.Query()
	q.Set("after", fmt.Sprint(after))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Tail streams events to fn until ctx ends or the connection drops.
func Tail(ctx context.Context, base string, after uint64, fn func(engine.Event)) error {
	target, err := StreamURL(base, after)
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		var e engine.Event
		if err := conn.ReadJSON(&e); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}
		fn(e)
	}
}

// FormatEvent renders one event as a log line.
func FormatEvent(e engine.Event) string {
	ts := fmt.Sprintf("%02d:%06.3f", int(e.Time)/60, e.Time-float64(int(e.Time)/60*60))
	who := ""
	if e.AgentName != "" {
		who = " " + e.AgentName
	}
	return fmt.Sprintf("#%s [%s] %-13s%s: %s", humanize.Comma(int64(e.Seq)), ts, e.Category, who, e.Description)
}

// Summary is a one-line account of a cycle.
func Summary(snap *Snapshot, h *Health) string {
	return fmt.Sprintf("%s frame %s (%s), %d hostiles (%d engaged), household %d (%d wounded), player %.0f HP, %s events dropped",
		h.Level,
		humanize.Comma(int64(h.Frame)),
		snap.Status.SimTime,
		h.Hostiles, h.Engaged,
		h.Household, h.Wounded,
		h.PlayerHP,
		humanize.Comma(int64(snap.Status.Dropped)),
	)
}
