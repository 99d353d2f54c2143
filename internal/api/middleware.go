package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"eigencore-server/internal/auth"
)

type userHandler func(w http.ResponseWriter, r *http.Request, userID uuid.UUID)

// withUser resolves the bearer token to a user id and bounds the request
// with the configured timeout. Store operations that outlive the bound fail
// with a TIMEOUT response and are rolled back, never half-applied.
func (a *API) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.FromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, err)
			return
		}
		userID, err := a.tokens.Check(token)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), a.cfg.RequestTimeout)
		defer cancel()
		next(w, r.WithContext(ctx), userID)
	}
}
