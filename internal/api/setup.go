package api

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"eigencore-server/internal/auth"
	"eigencore-server/internal/config"
	"eigencore-server/internal/registry"
	"eigencore-server/internal/rooms"
	"eigencore-server/internal/saves"
)

// API bundles the handlers with everything they call. Constructed once in
// main and never reached through globals, so tests can build private
// instances.
type API struct {
	cfg      config.Config
	tokens   *auth.Tokens
	accounts *auth.Accounts
	rooms    *rooms.Service
	registry *registry.Registry
	saves    *saves.Store
}

func New(cfg config.Config, tokens *auth.Tokens, accounts *auth.Accounts, roomSvc *rooms.Service, reg *registry.Registry, saveStore *saves.Store) *API {
	return &API{
		cfg:      cfg,
		tokens:   tokens,
		accounts: accounts,
		rooms:    roomSvc,
		registry: reg,
		saves:    saveStore,
	}
}

func (a *API) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", a.healthHandler).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/auth/register", a.registerHandler).Methods(http.MethodPost)
	v1.HandleFunc("/auth/login", a.loginHandler).Methods(http.MethodPost)
	v1.HandleFunc("/auth/guest", a.guestHandler).Methods(http.MethodPost)

	v1.HandleFunc("/rooms", a.withUser(a.createRoomHandler)).Methods(http.MethodPost)
	v1.HandleFunc("/rooms/join", a.withUser(a.joinRoomHandler)).Methods(http.MethodPost)
	v1.HandleFunc("/rooms/{code}", a.withUser(a.getRoomHandler)).Methods(http.MethodGet)
	v1.HandleFunc("/rooms/{code}/start", a.withUser(a.startRoomHandler)).Methods(http.MethodPost)
	v1.HandleFunc("/rooms/{code}/leave", a.withUser(a.leaveRoomHandler)).Methods(http.MethodPost)
	// The ws endpoint authenticates via query parameter; browsers cannot
	// set headers on a WebSocket handshake.
	v1.HandleFunc("/rooms/{code}/ws", a.wsHandler).Methods(http.MethodGet)

	v1.HandleFunc("/games/{game_id}/saves", a.withUser(a.listSavesHandler)).Methods(http.MethodGet)
	v1.HandleFunc("/games/{game_id}/saves/{slot}", a.withUser(a.getSaveHandler)).Methods(http.MethodGet)
	v1.HandleFunc("/games/{game_id}/saves/{slot}", a.withUser(a.putSaveHandler)).Methods(http.MethodPut)
	v1.HandleFunc("/games/{game_id}/saves/{slot}", a.withUser(a.deleteSaveHandler)).Methods(http.MethodDelete)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{a.cfg.CORSOrigin}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)
	return handlers.LoggingHandler(os.Stdout, cors(r))
}

// Serve blocks on the listener.
func (a *API) Serve() error {
	log.Info().Str("addr", a.cfg.Addr).Msg("listening")
	return http.ListenAndServe(a.cfg.Addr, a.Router())
}

func (a *API) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":              "healthy",
		"dropped_connections": a.registry.DroppedCount(),
	})
}
