package auth

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"eigencore-server/internal/entities"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&entities.User{}))
	return db
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	userID := uuid.New()

	token, err := tokens.Generate(userID)
	require.NoError(t, err)

	got, err := tokens.Check(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestCheckRejectsGarbage(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	_, err := tokens.Check("not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCheckRejectsWrongSecret(t *testing.T) {
	issued, err := NewTokens("secret-a", time.Hour).Generate(uuid.New())
	require.NoError(t, err)

	_, err = NewTokens("secret-b", time.Hour).Check(issued)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCheckRejectsExpired(t *testing.T) {
	tokens := NewTokens("test-secret", -time.Minute)
	issued, err := tokens.Generate(uuid.New())
	require.NoError(t, err)

	_, err = tokens.Check(issued)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestFromHeader(t *testing.T) {
	token, err := FromHeader("Bearer abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	_, err = FromHeader("abc123")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = FromHeader("")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRegisterAndLogin(t *testing.T) {
	accounts := NewAccounts(testDB(t), NewTokens("test-secret", time.Hour))

	user, token, err := accounts.Register("Player@Example.com", "hunter2hunter2", "Player One")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "Player One", user.DisplayName)
	assert.False(t, user.Guest)

	// Email is normalized, so login with a different casing works.
	logged, token2, err := accounts.Login("player@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.NotEmpty(t, token2)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	accounts := NewAccounts(testDB(t), NewTokens("test-secret", time.Hour))

	_, _, err := accounts.Register("dup@example.com", "hunter2hunter2", "A")
	require.NoError(t, err)

	_, _, err = accounts.Register("dup@example.com", "otherpassword", "B")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, _, err = accounts.Register("DUP@example.com", "otherpassword", "C")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginWrongPassword(t *testing.T) {
	accounts := NewAccounts(testDB(t), NewTokens("test-secret", time.Hour))

	_, _, err := accounts.Register("u@example.com", "correct-horse", "U")
	require.NoError(t, err)

	_, _, err = accounts.Login("u@example.com", "wrong-horse")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, _, err = accounts.Login("nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGuestAlwaysFresh(t *testing.T) {
	accounts := NewAccounts(testDB(t), NewTokens("test-secret", time.Hour))

	a, tokenA, err := accounts.Guest("Zoe")
	require.NoError(t, err)
	b, tokenB, err := accounts.Guest("Zoe")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, tokenA, tokenB)
	assert.True(t, a.Guest)
}
