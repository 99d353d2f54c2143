package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room lifecycle states. A code is unique among rooms in StateWaiting or
// StateInProgress; closed rooms keep their row for history and free the code.
const (
	StateWaiting    = "waiting"
	StateInProgress = "in_progress"
	StateClosed     = "closed"
)

const (
	RoleHost  = "host"
	RoleGuest = "guest"
)

type Room struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
	Code       string         `gorm:"index"`
	GameID     string         `gorm:"index"`
	HostUserID uuid.UUID
	State      string `gorm:"index"`
	MaxPlayers int
	// Settings is game-specific JSON; stored and relayed verbatim, never
	// parsed by the server.
	Settings  []byte
	StartedAt *time.Time
	ClosedAt  *time.Time
	Members   []RoomMember `gorm:"foreignKey:RoomID"`
}

type RoomMember struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;"`
	RoomID   uuid.UUID `gorm:"index"`
	UserID   uuid.UUID `gorm:"index"`
	Role     string
	JoinedAt time.Time
}
