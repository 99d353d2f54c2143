package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
	DisplayName  string
	Email        *string `gorm:"uniqueIndex"`
	PasswordHash string
	// Guest accounts have no email or password; they exist only to anchor
	// a stable user id behind a token.
	Guest bool
}
