package repositories

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-notify/domain"
	"chat-notify/errors"
)

func Test_EnsureDefaults_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewUserRepository(db, slog.Default())

	req.NoError(repo.EnsureDefaults())
	req.NoError(repo.EnsureDefaults())

	ws, err := repo.GetWorkspace(domain.DefaultWorkspaceID)
	req.NoError(err)
	req.Equal("none", ws.Name)

	super, err := repo.GetUser(domain.SuperUserID)
	req.NoError(err)
	req.Equal("super", super.FullName)
	req.Equal(domain.DefaultWorkspaceID, super.WorkspaceID)
}

func Test_CreateUser_Enforces_Email_Uniqueness(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewUserRepository(db, slog.Default())
	req.NoError(repo.EnsureDefaults())

	user, err := repo.CreateUser(domain.DefaultWorkspaceID, "Alice", "alice@none", "hash-a")
	req.NoError(err)
	req.NotZero(user.ID)

	_, err = repo.CreateUser(domain.DefaultWorkspaceID, "Alice Again", "alice@none", "hash-b")
	req.ErrorIs(err, errors.ErrEmailTaken)
}

func Test_CreateUser_Requires_Existing_Workspace(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewUserRepository(db, slog.Default())
	req.NoError(repo.EnsureDefaults())

	_, err := repo.CreateUser(domain.WorkspaceID(99), "Bob", "bob@none", "hash")
	req.ErrorIs(err, errors.ErrWorkspaceNotFound)
}

func Test_GetUserByEmail_Restores_Password_Hash(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewUserRepository(db, slog.Default())
	req.NoError(repo.EnsureDefaults())

	created, err := repo.CreateUser(domain.DefaultWorkspaceID, "Clara", "clara@none", "argon-hash")
	req.NoError(err)

	fetched, err := repo.GetUserByEmail("clara@none")
	req.NoError(err)
	req.Equal(created.ID, fetched.ID)
	req.Equal("argon-hash", fetched.PasswordHash)

	_, err = repo.GetUserByEmail("nobody@none")
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func Test_CreateWorkspace_Assigns_Increasing_Ids(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewUserRepository(db, slog.Default())
	req.NoError(repo.EnsureDefaults())

	first, err := repo.CreateWorkspace("acme", domain.SuperUserID)
	req.NoError(err)
	second, err := repo.CreateWorkspace("globex", domain.SuperUserID)
	req.NoError(err)
	req.Greater(second.ID, first.ID)

	fetched, err := repo.GetWorkspace(first.ID)
	req.NoError(err)
	req.Equal("acme", fetched.Name)
}
