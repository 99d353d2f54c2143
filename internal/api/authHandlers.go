package api

import (
	"encoding/json"
	"net/http"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type guestRequest struct {
	DisplayName string `json:"display_name"`
}

type authResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Token       string `json:"token"`
}

func (a *API) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	if req.Email == "" || len(req.Password) < 8 {
		writeBadRequest(w, "email and a password of at least 8 characters are required")
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Email
	}

	user, token, err := a.accounts.Register(req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		UserID:      user.ID.String(),
		DisplayName: user.DisplayName,
		Token:       token,
	})
}

func (a *API) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}

	user, token, err := a.accounts.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		UserID:      user.ID.String(),
		DisplayName: user.DisplayName,
		Token:       token,
	})
}

// guestHandler mints a throwaway account: name in, id and token out.
func (a *API) guestHandler(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	if req.DisplayName == "" {
		writeBadRequest(w, "display_name is required")
		return
	}

	user, token, err := a.accounts.Guest(req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		UserID:      user.ID.String(),
		DisplayName: user.DisplayName,
		Token:       token,
	})
}
