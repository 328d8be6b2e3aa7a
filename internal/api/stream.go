package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/damage-control/internal/engine"
)

const (
	streamWriteWait = 5 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = 25 * time.Second
	streamCatchUp   = 50
)

// streamMessage is one frame on /api/v1/stream.
type streamMessage struct {
	Type    string `json:"type"` // "hello" or "tick"
	Payload any    `json:"payload"`
}

type helloPayload struct {
	Status engine.Status  `json:"status"`
	Recent []engine.Event `json:"recent"`
}

// handleStream upgrades to a WebSocket and pushes a hello frame followed by
// one frame per tick. Slow clients miss ticks rather than holding the
// simulation back.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if n := s.streamConns.Add(1); n > maxStreamConns {
		s.streamConns.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streamConns.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID, ch := s.Session.Subscribe()
	defer s.Session.Unsubscribe(subID)
	slog.Info("stream client connected", "sub_id", subID)

	hello := streamMessage{Type: "hello", Payload: helloPayload{
		Status: s.Session.Status(),
		Recent: s.Session.Recent(streamCatchUp),
	}}
	if err := writeFrame(conn, hello); err != nil {
		return
	}

	// Reader: only control frames and close are expected.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(1024)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()

	for {
		select {
		case rep, ok := <-ch:
			if !ok {
				return
			}
			if err := writeFrame(conn, streamMessage{Type: "tick", Payload: rep}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-closed:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, m streamMessage) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
