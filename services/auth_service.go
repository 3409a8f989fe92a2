package services

import (
	stderrors "errors"
	"log/slog"

	"chat-notify/auth"
	"chat-notify/domain"
	"chat-notify/errors"
	"chat-notify/repositories"
)

type IAuthService interface {
	Register(req auth.RegisterRequest, workspaceID domain.WorkspaceID) (domain.User, string, error)
	Login(email, password string) (domain.User, string, error)
	VerifyToken(token string) (*auth.Claims, error)
}

// AuthService handles signup and signin. It is a collaborator of the
// notification engine, not part of it: the engine only needs the
// verified claims when a connection is opened.
type AuthService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenManager
	log    *slog.Logger
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.TokenManager, log *slog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, log: log}
}

func (s *AuthService) Register(req auth.RegisterRequest, workspaceID domain.WorkspaceID) (domain.User, string, error) {
	if err := auth.ValidateRegister(req); err != nil {
		return domain.User{}, "", err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return domain.User{}, "", err
	}

	user, err := s.users.CreateUser(workspaceID, req.FullName, req.Email, hash)
	if err != nil {
		return domain.User{}, "", err
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return domain.User{}, "", err
	}

	s.log.Info("User registered", "user", user.ID, "workspace", workspaceID)
	return user, token, nil
}

func (s *AuthService) Login(email, password string) (domain.User, string, error) {
	user, err := s.users.GetUserByEmail(email)
	if stderrors.Is(err, errors.ErrUserNotFound) {
		return domain.User{}, "", errors.ErrBadCredentials
	}
	if err != nil {
		return domain.User{}, "", err
	}

	ok, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil {
		return domain.User{}, "", err
	}
	if !ok {
		return domain.User{}, "", errors.ErrBadCredentials
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

func (s *AuthService) VerifyToken(token string) (*auth.Claims, error) {
	return s.tokens.Validate(token)
}
