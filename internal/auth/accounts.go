package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"eigencore-server/internal/entities"
)

var ErrEmailTaken = errors.New("email already registered")

// Accounts handles registration and login. Token issuance is delegated to
// Tokens so the two concerns stay separable.
type Accounts struct {
	db     *gorm.DB
	tokens *Tokens
}

func NewAccounts(db *gorm.DB, tokens *Tokens) *Accounts {
	return &Accounts{db: db, tokens: tokens}
}

func (a *Accounts) Register(email, password, displayName string) (entities.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return entities.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	user := entities.User{
		ID:           uuid.New(),
		DisplayName:  displayName,
		Email:        &email,
		PasswordHash: string(hash),
	}
	// The unique index on email is the source of truth; no pre-check, so two
	// racing registrations cannot both slip past it.
	if err := a.db.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return entities.User{}, "", ErrEmailTaken
		}
		return entities.User{}, "", err
	}

	token, err := a.tokens.Generate(user.ID)
	return user, token, err
}

// isUniqueViolation matches a duplicate-key failure from the sqlite driver.
// gorm only maps these to ErrDuplicatedKey with TranslateError enabled, so
// the driver message is matched as well.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (a *Accounts) Login(email, password string) (entities.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user entities.User
	if err := a.db.Where("email = ?", email).First(&user).Error; err != nil {
		return entities.User{}, "", ErrUnauthorized
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return entities.User{}, "", ErrUnauthorized
	}

	token, err := a.tokens.Generate(user.ID)
	return user, token, err
}

// Guest mints a throwaway account for a display name, the lightest way into
// a room code.
func (a *Accounts) Guest(displayName string) (entities.User, string, error) {
	user := entities.User{
		ID:          uuid.New(),
		DisplayName: displayName,
		Guest:       true,
	}
	if err := a.db.Create(&user).Error; err != nil {
		return entities.User{}, "", err
	}

	token, err := a.tokens.Generate(user.ID)
	return user, token, err
}

func (a *Accounts) GetUser(id uuid.UUID) (entities.User, error) {
	var user entities.User
	err := a.db.First(&user, "id = ?", id).Error
	return user, err
}
