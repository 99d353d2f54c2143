package rooms

import (
	"encoding/json"

	"eigencore-server/internal/store"
)

// Event frame types pushed over the real-time channel.
const (
	EventRoomUpdate  = "room_update"
	EventGameStarted = "game_started"
	EventRoomClosed  = "room_closed"
	EventMessage     = "message"
)

// Event is one frame on a room's real-time channel. Seq increases strictly
// per room; a client that sees a gap refetches the room snapshot instead of
// waiting for a replay that will never come.
type Event struct {
	Type string          `json:"type"`
	Seq  uint64          `json:"seq"`
	Room *store.Snapshot `json:"room,omitempty"`
	From string          `json:"from,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}
