package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	// Cross-origin is already policed by the CORS layer; game clients
	// connect from arbitrary origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Websocket close codes mirrored from the HTTP error statuses.
const (
	wsCloseUnauthorized = 4001
	wsCloseForbidden    = 4003
	wsCloseNotFound     = 4004
)

// wsHandler is the real-time channel for one room member. Admission checks
// run against durable membership; the connection itself is ephemeral and
// only ever a delivery path.
func (a *API) wsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := a.tokens.Check(r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, err)
		return
	}

	snap, err := a.rooms.Get(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	code := snap.Code

	member, err := a.rooms.IsMember(r.Context(), code, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("ws upgrade failed")
		return
	}
	if !member {
		closeWith(socket, wsCloseForbidden, "not a room member")
		return
	}

	conn := newWSConn(socket, a.cfg.WriteWait, a.cfg.PingPeriod())
	go conn.writePump()

	a.registry.Register(code, userID, conn)
	isHost := snap.HostUserID == userID
	if isHost {
		a.rooms.HostConnected(code)
	}
	// Hand the fresh connection the current snapshot and sequence point so
	// the client need not race the next transition to learn them.
	if err := a.rooms.Sync(r.Context(), code, userID); err != nil {
		log.Debug().Err(err).Str("code", code).Msg("initial sync failed")
	}
	log.Info().Str("code", code).Str("user", userID.String()).Bool("host", isHost).
		Int("room_size", a.registry.RoomSize(code)).Msg("ws connected")

	defer func() {
		conn.Close()
		a.registry.Unregister(code, userID, conn)
		if isHost {
			a.rooms.HostDisconnected(code)
		}
		log.Info().Str("code", code).Str("user", userID.String()).Msg("ws disconnected")
	}()

	// Read side: anything the client sends is an opaque game-sync payload
	// relayed to the rest of the room. Silence past the pong window kills
	// the connection.
	socket.SetReadDeadline(time.Now().Add(a.cfg.PongWait))
	socket.SetPongHandler(func(string) error {
		socket.SetReadDeadline(time.Now().Add(a.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			return
		}
		socket.SetReadDeadline(time.Now().Add(a.cfg.PongWait))
		if !json.Valid(data) {
			log.Debug().Str("code", code).Str("user", userID.String()).Msg("dropping non-json frame")
			continue
		}
		a.rooms.Relay(code, userID, json.RawMessage(data))
	}
}

func closeWith(socket *websocket.Conn, code int, reason string) {
	socket.SetWriteDeadline(time.Now().Add(time.Second))
	socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	socket.Close()
}
