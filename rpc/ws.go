package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"fairbet/native/round"
)

const wsWriteTimeout = 10 * time.Second

// handleRoundStream upgrades to a websocket and pushes round updates (phase
// changes and multiplier ticks) until the client disconnects. The current
// round view is sent first so late joiners know where the round stands.
func (s *Server) handleRoundStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	if err := s.streamRounds(r.Context(), conn); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamRounds(ctx context.Context, conn *websocket.Conn) error {
	updates, cancel := s.rounds.Subscribe()
	defer cancel()

	if view, err := s.rounds.CurrentRound(); err == nil {
		snapshot := round.Update{
			RoundID:        view.ID,
			Phase:          view.Status,
			Multiplier:     view.Multiplier,
			ServerSeedHash: view.ServerSeedHash,
			At:             time.Now().Unix(),
		}
		if err := writeRoundUpdate(ctx, conn, snapshot); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeRoundUpdate(ctx, conn, update); err != nil {
				return err
			}
		}
	}
}

func writeRoundUpdate(ctx context.Context, conn *websocket.Conn, update round.Update) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
