// Package auth issues and verifies the HS256 tokens that authorize
// chat socket connections. Tokens carry the viewer's identity and role;
// the socket endpoint verifies them at upgrade time.
package auth

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token fails verification.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("auth: token has expired")
)

// Role is the viewer role carried in the token.
type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
	RoleAdmin   Role = "admin"
)

// Claims are the custom chat token claims.
type Claims struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

// Config holds token settings.
type Config struct {
	SecretKey string
	TokenTTL  time.Duration
	Issuer    string
}

// DefaultConfig reads the signing secret from JWT_SECRET, with a
// development fallback.
func DefaultConfig() Config {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "learnerd-dev-secret"
	}
	return Config{
		SecretKey: secret,
		TokenTTL:  time.Hour,
		Issuer:    "learnerd-chat",
	}
}

// Manager mints and verifies chat tokens.
type Manager struct {
	config Config
}

// NewManager creates a Manager with the given configuration.
func NewManager(config Config) *Manager {
	return &Manager{config: config}
}

// Generate mints a token for the given user and role.
func (m *Manager) Generate(userID, fullName string, role Role) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		FullName: fullName,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

// Validate verifies a token and returns its claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.SecretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenSource supplies the current auth token for connection setup.
// Injected explicitly so connection lifecycle stays testable without
// ambient global state.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns the same token on every call.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token(context.Context) (string, error) {
	return string(s), nil
}

// RoleTokenSource mints a fresh token per call, keyed by viewer role.
// Re-minting on each activation gives transparent token rotation.
type RoleTokenSource struct {
	Manager  *Manager
	UserID   string
	FullName string
	Role     Role
}

// Token implements TokenSource.
func (s *RoleTokenSource) Token(context.Context) (string, error) {
	return s.Manager.Generate(s.UserID, s.FullName, s.Role)
}
