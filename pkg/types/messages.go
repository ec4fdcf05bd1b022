// Package types defines the websocket wire protocol for room spectating.
package types

import "github.com/ascendancy-esports/tournament-backend/internal/room"

// ClientMessage is what a joined captain sends over the socket.
//
//	BanMap:     team_id + map_id
//	SelectSide: team_id + side ("attack" | "defend")
//	StartVeto:  no payload (admin trigger)
type ClientMessage struct {
	Type   string `json:"type"`
	TeamID string `json:"team_id,omitempty"`
	MapID  string `json:"map_id,omitempty"`
	Side   string `json:"side,omitempty"`
}

// ServerMessage is either a versioned room snapshot or an error frame.
type ServerMessage struct {
	Type     string         `json:"type"` // "RoomSnapshot" | "Error"
	Snapshot *room.Snapshot `json:"snapshot,omitempty"`
	Error    string         `json:"error,omitempty"`
}
