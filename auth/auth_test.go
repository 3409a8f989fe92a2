package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-notify/domain"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MonMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	// Wrong password never matches
	match, err = ComparePassword("MauvaisMDP", hash)
	req.NoError(err)
	req.False(match)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"Jean Dupont", "test@example.com", "ComplexPass123!"}, false},
		{"Invalid email", RegisterRequest{"Jean Dupont", "notanemail", "ComplexPass123!"}, true},
		{"Missing name", RegisterRequest{"", "test@example.com", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"Jean Dupont", "test@example.com", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"Jean Dupont", "test@example.com", "NoDigitPassword!"}, true},
		{"Missing special char", RegisterRequest{"Jean Dupont", "test@example.com", "NoSpecialChar1234"}, true},
		{"Missing uppercase", RegisterRequest{"Jean Dupont", "test@example.com", "nouppercase12345!"}, true},
		{"Password too long (edge case)", RegisterRequest{"Jean Dupont", "test@example.com", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("unit-test-secret", time.Hour)
	user := domain.User{ID: 42, WorkspaceID: 3}

	token, err := manager.Generate(user)
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := manager.Validate(token)
	req.NoError(err)
	req.Equal(domain.UserID(42), claims.UserID)
	req.Equal(domain.WorkspaceID(3), claims.WorkspaceID)
	req.Equal("chat-notify", claims.Issuer)
}

func TestTokenRejectedWithWrongSecret(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("secret-a", time.Hour)
	other := NewTokenManager("secret-b", time.Hour)

	token, err := manager.Generate(domain.User{ID: 1})
	req.NoError(err)

	_, err = other.Validate(token)
	req.Error(err)
}

func TestExpiredTokenRejected(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("unit-test-secret", -time.Minute)

	token, err := manager.Generate(domain.User{ID: 1})
	req.NoError(err)

	_, err = manager.Validate(token)
	req.Error(err)
}
