package auth

import (
	"direct-chat/errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "direct-chat"

// Claims is the payload of an access token. The user id travels as "id".
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 access tokens with one shared key.
type TokenManager struct {
	key      []byte
	duration time.Duration
	now      func() time.Time
}

func NewTokenManager(key string, duration time.Duration) *TokenManager {
	return &TokenManager{key: []byte(key), duration: duration, now: time.Now}
}

func (m *TokenManager) Duration() time.Duration {
	return m.duration
}

func (m *TokenManager) Generate(userID string) (string, error) {
	now := m.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrTokenGeneration, err)
	}
	return signed, nil
}

// Validate checks signature, algorithm and expiry, and returns the user id.
func (m *TokenManager) Validate(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return "", fmt.Errorf("%w: invalid token claims", errors.ErrUnauthorized)
	}
	return claims.UserID, nil
}
