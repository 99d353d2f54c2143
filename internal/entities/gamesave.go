package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GameSave is one named save slot for one user of one game. Data is opaque
// JSON supplied by the client.
type GameSave struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
	UserID    uuid.UUID      `gorm:"index:idx_save_slot,unique"`
	GameID    string         `gorm:"index:idx_save_slot,unique"`
	SlotName  string         `gorm:"index:idx_save_slot,unique"`
	Data      []byte
	// Version is the client's game version, kept so games can migrate old
	// saves on load.
	Version string
}
