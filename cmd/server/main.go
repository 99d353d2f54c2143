package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"eigencore-server/internal/api"
	"eigencore-server/internal/auth"
	"eigencore-server/internal/config"
	database "eigencore-server/internal/db"
	"eigencore-server/internal/registry"
	"eigencore-server/internal/rooms"
	"eigencore-server/internal/saves"
	"eigencore-server/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg := config.Load()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	accounts := auth.NewAccounts(db, tokens)
	roomStore := store.NewRoomStore(db, cfg.RoomCodeLength)
	reg := registry.New(cfg.BroadcastTimeout)
	roomSvc := rooms.NewService(roomStore, reg, cfg.HostGracePeriod, cfg.SweepInterval)
	saveStore := saves.NewStore(db)

	go roomSvc.RunSweeper(context.Background())

	srv := api.New(cfg, tokens, accounts, roomSvc, reg, saveStore)
	if err := srv.Serve(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
