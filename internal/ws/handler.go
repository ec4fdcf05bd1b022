// Package ws streams live room snapshots to connected clients and relays
// their veto commands into the room actor.
package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/ascendancy-esports/tournament-backend/internal/engine"
	"github.com/ascendancy-esports/tournament-backend/internal/registry"
	"github.com/ascendancy-esports/tournament-backend/internal/room"
	"github.com/ascendancy-esports/tournament-backend/pkg/types"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

func Handler(reg *registry.Registry, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		reply := make(chan *room.Room, 1)
		reg.Inbox() <- registry.Get{Code: code, Reply: reply}
		rm := <-reply
		if rm == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Warn("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan room.Snapshot, 8)
		clientID := randID(6)

		rm.Inbox() <- room.Watch{ClientID: clientID, Outbox: out}
		defer func() { rm.Inbox() <- room.Unwatch{ClientID: clientID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case snap, ok := <-out:
					if !ok {
						return
					}
					msg := types.ServerMessage{Type: "RoomSnapshot", Snapshot: &snap}
					payload, _ := json.Marshal(msg)
					ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
					_ = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
				case <-rm.Done():
					return
				}
			}
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			stateReply := make(chan room.StateReply, 1)
			msg, ok := toRoomMsg(cm, stateReply)
			if !ok {
				writeError(r.Context(), conn, "unknown type")
				continue
			}

			rm.Inbox() <- msg
			select {
			case sr := <-stateReply:
				if sr.Err != nil {
					writeError(r.Context(), conn, sr.Err.Error())
				}
				// Success needs no direct reply: the broadcast snapshot
				// carries it.
			case <-rm.Done():
				writeError(r.Context(), conn, room.ErrRoomClosed.Error())
				return
			}
		}
	}
}

func toRoomMsg(m types.ClientMessage, reply chan room.StateReply) (room.Msg, bool) {
	switch m.Type {
	case "StartVeto":
		return room.StartVeto{Reply: reply}, true
	case "BanMap":
		return room.BanMap{TeamID: m.TeamID, MapID: m.MapID, Reply: reply}, true
	case "SelectSide":
		return room.SelectSide{TeamID: m.TeamID, Side: engine.Side(m.Side), Reply: reply}, true
	default:
		return nil, false
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(types.ServerMessage{Type: "Error", Error: msg})
	_ = conn.Write(ctx, websocket.MessageText, payload)
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
