package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"eigencore-server/internal/auth"
	"eigencore-server/internal/saves"
	"eigencore-server/internal/store"
)

// errorBody is the wire envelope for every failure: a machine code plus a
// human message, never a bare string.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}

// writeError maps domain sentinels to distinct statuses and codes so
// clients can branch on them (a full room reads differently from a closed
// one).
func writeError(w http.ResponseWriter, err error) {
	code, status := "INTERNAL_ERROR", http.StatusInternalServerError

	switch {
	case errors.Is(err, store.ErrRoomNotFound):
		code, status = "ROOM_NOT_FOUND", http.StatusNotFound
	case errors.Is(err, store.ErrInvalidState):
		code, status = "ROOM_INVALID_STATE", http.StatusConflict
	case errors.Is(err, store.ErrRoomFull):
		code, status = "ROOM_FULL", http.StatusConflict
	case errors.Is(err, store.ErrPermissionDenied):
		code, status = "FORBIDDEN", http.StatusForbidden
	case errors.Is(err, store.ErrCodeSpaceExhausted):
		code, status = "RESOURCE_EXHAUSTED", http.StatusServiceUnavailable
	case errors.Is(err, auth.ErrUnauthorized):
		code, status = "UNAUTHORIZED", http.StatusUnauthorized
	case errors.Is(err, auth.ErrEmailTaken):
		code, status = "EMAIL_TAKEN", http.StatusConflict
	case errors.Is(err, saves.ErrSaveNotFound):
		code, status = "SAVE_NOT_FOUND", http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		code, status = "TIMEOUT", http.StatusGatewayTimeout
	default:
		log.Error().Err(err).Msg("internal error")
	}

	var body errorBody
	body.Error.Code = code
	body.Error.Message = err.Error()
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	var body errorBody
	body.Error.Code = "BAD_REQUEST"
	body.Error.Message = message
	writeJSON(w, http.StatusBadRequest, body)
}
