package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"eigencore-server/internal/entities"
)

type putSaveRequest struct {
	Data    json.RawMessage `json:"data"`
	Version string          `json:"version,omitempty"`
}

type saveResponse struct {
	GameID    string          `json:"game_id"`
	SlotName  string          `json:"slot_name"`
	Data      json.RawMessage `json:"data"`
	Version   string          `json:"version,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toSaveResponse(s entities.GameSave) saveResponse {
	return saveResponse{
		GameID:    s.GameID,
		SlotName:  s.SlotName,
		Data:      json.RawMessage(s.Data),
		Version:   s.Version,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (a *API) listSavesHandler(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	list, err := a.saves.List(r.Context(), userID, mux.Vars(r)["game_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]saveResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSaveResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getSaveHandler(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	vars := mux.Vars(r)
	save, err := a.saves.Get(r.Context(), userID, vars["game_id"], vars["slot"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaveResponse(save))
}

func (a *API) putSaveHandler(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	var req putSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	if len(req.Data) == 0 {
		writeBadRequest(w, "data is required")
		return
	}

	vars := mux.Vars(r)
	save, err := a.saves.Put(r.Context(), userID, vars["game_id"], vars["slot"], req.Data, req.Version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaveResponse(save))
}

func (a *API) deleteSaveHandler(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	vars := mux.Vars(r)
	if err := a.saves.Delete(r.Context(), userID, vars["game_id"], vars["slot"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
