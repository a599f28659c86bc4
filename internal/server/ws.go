package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// wsWriteTimeout bounds a single frame write to a client.
const wsWriteTimeout = 5 * time.Second

// activeWordMessage is one frame of the active-word feed. Index is the
// currently highlighted word, or -1 when the highlight cleared.
type activeWordMessage struct {
	Index int `json:"index"`
}

// handleActiveWordWS handles GET /ws/active-word: a write-only WebSocket
// pushing one message per active-word change. A client that connects while
// a word is highlighted receives that word first.
func (s *Server) handleActiveWordWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Debug("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	s.metrics.WSClients.Add(r.Context(), 1)
	defer s.metrics.WSClients.Add(r.Context(), -1)

	sub := s.subscribe()
	defer s.unsubscribe(sub)

	// The feed is one-way; CloseRead surfaces client disconnects as
	// cancellation of the returned context.
	ctx := conn.CloseRead(r.Context())

	if idx, ok := s.playback.ActiveWord(); ok {
		if err := writeIndex(ctx, conn, idx); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case idx := <-sub:
			if err := writeIndex(ctx, conn, idx); err != nil {
				return
			}
		}
	}
}

// writeIndex sends one active-word frame.
func writeIndex(ctx context.Context, conn *websocket.Conn, idx int) error {
	data, err := json.Marshal(activeWordMessage{Index: idx})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
