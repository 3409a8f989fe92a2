package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-notify/auth"
	"chat-notify/domain"
	"chat-notify/errors"
	"chat-notify/mocks"
)

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager("test-secret", 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens, slog.Default())

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		request := auth.RegisterRequest{
			FullName: "Alice Kaputo",
			Email:    "alice@example.com",
			Password: "ComplexPass123!",
		}

		// Expect CreateUser to be called with a hashed password (not the plain one)
		mockRepo.EXPECT().
			CreateUser(domain.DefaultWorkspaceID, request.FullName, request.Email, gomock.Not(request.Password)).
			Return(domain.User{ID: 7, WorkspaceID: domain.DefaultWorkspaceID, Email: request.Email}, nil).
			Times(1)

		user, token, err := svc.Register(request, domain.DefaultWorkspaceID)

		req.NoError(err)
		req.Equal(domain.UserID(7), user.ID)
		req.NotEmpty(token)

		claims, err := svc.VerifyToken(token)
		req.NoError(err)
		req.Equal(domain.UserID(7), claims.UserID)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)
		request := auth.RegisterRequest{
			FullName: "Bob",
			Email:    "bob@example.com",
			Password: "simplesimplesimple",
		}

		// Repository should NEVER be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, token, err := svc.Register(request, domain.DefaultWorkspaceID)

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)
	})

	t.Run("should fail when email is already taken", func(t *testing.T) {
		req := require.New(t)
		request := auth.RegisterRequest{
			FullName: "Alice Again",
			Email:    "alice@example.com",
			Password: "ComplexPass123!",
		}

		mockRepo.EXPECT().
			CreateUser(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(domain.User{}, errors.ErrEmailTaken).
			Times(1)

		_, _, err := svc.Register(request, domain.DefaultWorkspaceID)

		req.ErrorIs(err, errors.ErrEmailTaken)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenManager("test-secret", 24*time.Hour)
	svc := NewAuthService(mockRepo, tokens, slog.Default())

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"
		password := "Secret123456!"

		hashedPassword, err := auth.HashPassword(password)
		req.NoError(err)
		storedUser := domain.User{
			ID:           9,
			WorkspaceID:  domain.DefaultWorkspaceID,
			Email:        email,
			PasswordHash: hashedPassword,
		}

		mockRepo.EXPECT().
			GetUserByEmail(email).
			Return(storedUser, nil).
			Times(1)

		user, token, err := svc.Login(email, password)

		req.NoError(err)
		req.Equal(storedUser.ID, user.ID)
		req.NotEmpty(token)
	})

	t.Run("should fail with wrong password", func(t *testing.T) {
		req := require.New(t)
		email := "user@example.com"

		hashedPassword, err := auth.HashPassword("Secret123456!")
		req.NoError(err)

		mockRepo.EXPECT().
			GetUserByEmail(email).
			Return(domain.User{ID: 9, Email: email, PasswordHash: hashedPassword}, nil).
			Times(1)

		_, token, err := svc.Login(email, "WrongPass123!")

		req.ErrorIs(err, errors.ErrBadCredentials)
		req.Empty(token)
	})

	t.Run("should not reveal whether the account exists", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByEmail("ghost@example.com").
			Return(domain.User{}, errors.ErrUserNotFound).
			Times(1)

		_, _, err := svc.Login("ghost@example.com", "Whatever123!")

		req.ErrorIs(err, errors.ErrBadCredentials)
	})
}
