package database

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"eigencore-server/internal/entities"
)

// Open connects to the sqlite database at path and migrates the schema.
// The returned handle is passed to the components that need it; nothing in
// this package keeps global state.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.User{},
		&entities.Room{},
		&entities.RoomMember{},
		&entities.GameSave{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	log.Info().Str("path", path).Msg("database ready")
	return db, nil
}
