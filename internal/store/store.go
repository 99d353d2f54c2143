package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"eigencore-server/internal/entities"
)

// Snapshot is the caller-facing view of a room, also used as the payload of
// room lifecycle broadcasts.
type Snapshot struct {
	Code       string          `json:"code"`
	GameID     string          `json:"game_id"`
	HostUserID uuid.UUID       `json:"host_user_id"`
	State      string          `json:"state"`
	MaxPlayers int             `json:"max_players"`
	Players    []Member        `json:"players"`
	Settings   json.RawMessage `json:"settings,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	ClosedAt   *time.Time      `json:"closed_at,omitempty"`
}

type Member struct {
	UserID   uuid.UUID `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// RoomStore is the durable side of the room subsystem. Every mutation runs
// in a transaction that re-reads the room row, so two racing calls against
// the same code cannot both commit a conflicting change.
type RoomStore struct {
	db         *gorm.DB
	cache      *snapshotCache
	codeLength int
}

const cacheSize = 1024

func NewRoomStore(db *gorm.DB, codeLength int) *RoomStore {
	return &RoomStore{
		db:         db,
		cache:      newSnapshotCache(cacheSize),
		codeLength: codeLength,
	}
}

// CreateRoom allocates a fresh code, inserts the room and the host's
// membership atomically, and returns the initial snapshot.
func (s *RoomStore) CreateRoom(ctx context.Context, hostUserID uuid.UUID, gameID string, maxPlayers int, settings []byte) (Snapshot, error) {
	var snap Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code := ""
		for attempt := 0; attempt < maxCodeAttempts; attempt++ {
			candidate, err := newCode(s.codeLength)
			if err != nil {
				return fmt.Errorf("generate code: %w", err)
			}
			var count int64
			err = tx.Model(&entities.Room{}).
				Where("code = ? AND state <> ?", candidate, entities.StateClosed).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count == 0 {
				code = candidate
				break
			}
		}
		if code == "" {
			return ErrCodeSpaceExhausted
		}

		room := entities.Room{
			ID:         uuid.New(),
			Code:       code,
			GameID:     gameID,
			HostUserID: hostUserID,
			State:      entities.StateWaiting,
			MaxPlayers: maxPlayers,
			Settings:   settings,
		}
		if err := tx.Create(&room).Error; err != nil {
			return err
		}

		member := entities.RoomMember{
			ID:       uuid.New(),
			RoomID:   room.ID,
			UserID:   hostUserID,
			Role:     entities.RoleHost,
			JoinedAt: time.Now(),
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}

		var err error
		snap, err = s.snapshot(tx, room)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}

	log.Info().Str("code", snap.Code).Str("host", hostUserID.String()).Msg("room created")
	s.cache.put(snap.Code, snap)
	return snap, nil
}

// JoinRoom adds userID as a guest. Re-joining a room the user is already in
// returns the current snapshot without touching membership; joined reports
// whether a new membership row was created.
func (s *RoomStore) JoinRoom(ctx context.Context, code string, userID uuid.UUID) (snap Snapshot, joined bool, err error) {
	code = normalize(code)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := activeRoom(tx, code)
		if err != nil {
			return err
		}

		var members []entities.RoomMember
		if err := tx.Where("room_id = ?", room.ID).Find(&members).Error; err != nil {
			return err
		}
		for _, m := range members {
			if m.UserID == userID {
				snap, err = s.snapshot(tx, room)
				return err
			}
		}

		if room.State != entities.StateWaiting {
			return ErrInvalidState
		}
		if len(members) >= room.MaxPlayers {
			return ErrRoomFull
		}

		member := entities.RoomMember{
			ID:       uuid.New(),
			RoomID:   room.ID,
			UserID:   userID,
			Role:     entities.RoleGuest,
			JoinedAt: time.Now(),
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		joined = true

		snap, err = s.snapshot(tx, room)
		return err
	})
	if err != nil {
		return Snapshot{}, false, err
	}

	s.cache.put(code, snap)
	return snap, joined, nil
}

// StartRoom transitions waiting -> in_progress. Host only.
func (s *RoomStore) StartRoom(ctx context.Context, code string, requestingUserID uuid.UUID) (Snapshot, error) {
	code = normalize(code)
	var snap Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := activeRoom(tx, code)
		if err != nil {
			return err
		}
		if room.HostUserID != requestingUserID {
			return ErrPermissionDenied
		}
		if room.State != entities.StateWaiting {
			return ErrInvalidState
		}

		now := time.Now()
		room.State = entities.StateInProgress
		room.StartedAt = &now
		if err := tx.Model(&entities.Room{}).Where("id = ?", room.ID).
			Updates(map[string]interface{}{"state": room.State, "started_at": now}).Error; err != nil {
			return err
		}

		snap, err = s.snapshot(tx, room)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}

	log.Info().Str("code", code).Msg("room started")
	s.cache.put(code, snap)
	return snap, nil
}

// CloseRoom transitions any active room to closed. Closing an already
// closed code is a no-op success; a code that never existed is NotFound.
// transitioned reports whether this call performed the close.
func (s *RoomStore) CloseRoom(ctx context.Context, code string) (snap Snapshot, transitioned bool, err error) {
	code = normalize(code)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := activeRoom(tx, code)
		if errors.Is(err, ErrRoomNotFound) {
			var closed entities.Room
			lookupErr := tx.Where("code = ? AND state = ?", code, entities.StateClosed).
				Order("closed_at DESC").First(&closed).Error
			if lookupErr != nil {
				return ErrRoomNotFound
			}
			snap, err = s.snapshot(tx, closed)
			return err
		}
		if err != nil {
			return err
		}

		now := time.Now()
		room.State = entities.StateClosed
		room.ClosedAt = &now
		transitioned = true
		if err := tx.Model(&entities.Room{}).Where("id = ?", room.ID).
			Updates(map[string]interface{}{"state": room.State, "closed_at": now}).Error; err != nil {
			return err
		}

		snap, err = s.snapshot(tx, room)
		return err
	})
	if err != nil {
		return Snapshot{}, false, err
	}

	if transitioned {
		log.Info().Str("code", code).Msg("room closed")
	}
	s.cache.drop(code)
	return snap, transitioned, nil
}

// LeaveRoom removes a guest membership. When the leaver is the host the
// whole room closes instead; closed reports which happened. A caller who is
// not a member gets ErrPermissionDenied and the room is untouched.
func (s *RoomStore) LeaveRoom(ctx context.Context, code string, userID uuid.UUID) (snap Snapshot, closed bool, err error) {
	code = normalize(code)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := activeRoom(tx, code)
		if err != nil {
			return err
		}

		if room.HostUserID == userID {
			now := time.Now()
			room.State = entities.StateClosed
			room.ClosedAt = &now
			closed = true
			if err := tx.Model(&entities.Room{}).Where("id = ?", room.ID).
				Updates(map[string]interface{}{"state": room.State, "closed_at": now}).Error; err != nil {
				return err
			}
		} else {
			res := tx.Where("room_id = ? AND user_id = ?", room.ID, userID).
				Delete(&entities.RoomMember{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrPermissionDenied
			}
		}

		snap, err = s.snapshot(tx, room)
		return err
	})
	if err != nil {
		return Snapshot{}, false, err
	}

	if closed {
		s.cache.drop(code)
	} else {
		s.cache.put(code, snap)
	}
	return snap, closed, nil
}

// GetRoom returns the snapshot of the active room with the given code.
func (s *RoomStore) GetRoom(ctx context.Context, code string) (Snapshot, error) {
	code = normalize(code)
	if snap, ok := s.cache.get(code); ok {
		return snap, nil
	}

	var snap Snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := activeRoom(tx, code)
		if err != nil {
			return err
		}
		snap, err = s.snapshot(tx, room)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}

	s.cache.put(code, snap)
	return snap, nil
}

// IsMember reports whether userID holds a membership in the active room.
func (s *RoomStore) IsMember(ctx context.Context, code string, userID uuid.UUID) (bool, error) {
	snap, err := s.GetRoom(ctx, code)
	if err != nil {
		return false, err
	}
	for _, m := range snap.Players {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// ActiveRoomCodeOf returns the code of the active room userID currently
// belongs to, or "" if none.
func (s *RoomStore) ActiveRoomCodeOf(ctx context.Context, userID uuid.UUID) (string, error) {
	var room entities.Room
	err := s.db.WithContext(ctx).
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ? AND rooms.state <> ?", userID, entities.StateClosed).
		First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return room.Code, nil
}

// StaleWaitingRooms lists codes of waiting rooms created before cutoff,
// the candidate set for the host-grace sweeper.
func (s *RoomStore) StaleWaitingRooms(ctx context.Context, cutoff time.Time) ([]string, error) {
	var codes []string
	err := s.db.WithContext(ctx).Model(&entities.Room{}).
		Where("state = ? AND created_at < ?", entities.StateWaiting, cutoff).
		Pluck("code", &codes).Error
	return codes, err
}

func activeRoom(tx *gorm.DB, code string) (entities.Room, error) {
	var room entities.Room
	err := tx.Where("code = ? AND state <> ?", code, entities.StateClosed).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Room{}, ErrRoomNotFound
	}
	return room, err
}

func (s *RoomStore) snapshot(tx *gorm.DB, room entities.Room) (Snapshot, error) {
	var members []entities.RoomMember
	err := tx.Where("room_id = ?", room.ID).Order("joined_at ASC").Find(&members).Error
	if err != nil {
		return Snapshot{}, err
	}

	players := make([]Member, 0, len(members))
	for _, m := range members {
		players = append(players, Member{UserID: m.UserID, Role: m.Role, JoinedAt: m.JoinedAt})
	}

	return Snapshot{
		Code:       room.Code,
		GameID:     room.GameID,
		HostUserID: room.HostUserID,
		State:      room.State,
		MaxPlayers: room.MaxPlayers,
		Players:    players,
		Settings:   json.RawMessage(room.Settings),
		CreatedAt:  room.CreatedAt,
		StartedAt:  room.StartedAt,
		ClosedAt:   room.ClosedAt,
	}, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
