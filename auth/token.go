package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chat-notify/domain"
)

// Claims is what the gateway hands back when a client opens its event
// stream: enough to bind the connection to a user without a store read.
type Claims struct {
	UserID      domain.UserID      `json:"user_id"`
	WorkspaceID domain.WorkspaceID `json:"ws_id"`
	jwt.RegisteredClaims
}

// TokenManager signs and validates connection tokens. The secret comes
// from configuration, never from source.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Generate creates a signed token for a user, HS256.
func (m *TokenManager) Generate(user domain.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:      user.ID,
		WorkspaceID: user.WorkspaceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "chat-notify",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses the token and checks signature and expiry.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
