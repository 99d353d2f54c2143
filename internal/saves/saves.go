// Package saves stores per-user, per-game save slots. Slot data is opaque
// JSON owned entirely by the game client.
package saves

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"eigencore-server/internal/entities"
)

var ErrSaveNotFound = errors.New("save slot not found")

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) List(ctx context.Context, userID uuid.UUID, gameID string) ([]entities.GameSave, error) {
	var out []entities.GameSave
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		Order("slot_name ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) Get(ctx context.Context, userID uuid.UUID, gameID, slot string) (entities.GameSave, error) {
	var save entities.GameSave
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND game_id = ? AND slot_name = ?", userID, gameID, slot).
		First(&save).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.GameSave{}, ErrSaveNotFound
	}
	return save, err
}

// Put creates the slot or overwrites its contents.
func (s *Store) Put(ctx context.Context, userID uuid.UUID, gameID, slot string, data []byte, version string) (entities.GameSave, error) {
	var save entities.GameSave
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND game_id = ? AND slot_name = ?", userID, gameID, slot).
			First(&save).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			save = entities.GameSave{
				ID:       uuid.New(),
				UserID:   userID,
				GameID:   gameID,
				SlotName: slot,
				Data:     data,
				Version:  version,
			}
			return tx.Create(&save).Error
		}
		if err != nil {
			return err
		}
		save.Data = data
		save.Version = version
		return tx.Save(&save).Error
	})
	return save, err
}

func (s *Store) Delete(ctx context.Context, userID uuid.UUID, gameID, slot string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND game_id = ? AND slot_name = ?", userID, gameID, slot).
		Delete(&entities.GameSave{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSaveNotFound
	}
	return nil
}
