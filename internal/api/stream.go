package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wct097/saintaveline/internal/engine"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleStream pushes every new event to the client as a JSON text frame.
// Clients may pass ?after=N to replay buffered history first.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	select {
	case s.streams <- struct{}{}:
		defer func() { <-s.streams }()
	default:
		writeError(w, http.StatusServiceUnavailable, "too many stream connections")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := s.Sim.Subscribe(256)
	defer cancel()

	var replay []engine.Event
	if r.URL.Query().Has("after") {
		replay = s.Sim.Events(uint64(queryInt(r, "after", 0)), engine.MaxEvents)
	}

	// Reader: only pongs and close frames are expected.
	done := make(chan struct{})
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var last uint64
	send := func(e engine.Event) bool {
		if e.Seq <= last {
			return true
		}
		last = e.Seq
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(e) == nil
	}
	for _, e := range replay {
		if !send(e) {
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case e, ok := <-events:
			if !ok || !send(e) {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
