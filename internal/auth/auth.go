package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthorized covers every credential failure: bad token, expired token,
// wrong password, unknown account. Callers never learn which.
var ErrUnauthorized = errors.New("unauthorized")

// Tokens issues and verifies the bearer tokens the rest of the server treats
// as an opaque credential-to-user-id function.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

func (t *Tokens) Generate(userID uuid.UUID) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256,
		jwt.MapClaims{
			"sub": userID.String(),
			"exp": time.Now().Add(t.ttl).Unix(),
		})
	return token.SignedString(t.secret)
}

// Check resolves a token string to the user id it was issued for.
func (t *Tokens) Check(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, ErrUnauthorized
	}

	idStr, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, ErrUnauthorized
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, ErrUnauthorized
	}
	return id, nil
}

// FromHeader extracts the token from an "Authorization: Bearer x" value.
func FromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrUnauthorized
	}
	return strings.TrimPrefix(header, prefix), nil
}
