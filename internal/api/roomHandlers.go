package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type createRoomRequest struct {
	GameID     string          `json:"game_id"`
	MaxPlayers int             `json:"max_players"`
	Settings   json.RawMessage `json:"settings,omitempty"`
}

type joinRoomRequest struct {
	Code string `json:"code"`
}

func (a *API) createRoomHandler(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	if req.GameID == "" {
		writeBadRequest(w, "game_id is required")
		return
	}
	if req.MaxPlayers == 0 {
		req.MaxPlayers = a.cfg.DefaultMaxPlayers
	}
	if req.MaxPlayers < 1 || req.MaxPlayers > a.cfg.MaxMaxPlayers {
		writeBadRequest(w, "max_players out of range")
		return
	}

	snap, err := a.rooms.Create(r.Context(), userID, req.GameID, req.MaxPlayers, req.Settings)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) joinRoomHandler(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	if req.Code == "" {
		writeBadRequest(w, "code is required")
		return
	}

	snap, err := a.rooms.Join(r.Context(), req.Code, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) getRoomHandler(w http.ResponseWriter, r *http.Request, _ uuid.UUID) {
	snap, err := a.rooms.Get(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) startRoomHandler(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	snap, err := a.rooms.Start(r.Context(), mux.Vars(r)["code"], userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) leaveRoomHandler(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	snap, closed, err := a.rooms.Leave(r.Context(), mux.Vars(r)["code"], userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "closed": closed, "room": snap})
}
