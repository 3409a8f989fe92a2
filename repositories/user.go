//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-notify/domain"
	"chat-notify/errors"
)

// Account key layout:
//
//	user:{id:%012d}   -> user record (JSON)
//	useremail:{email} -> user id (email uniqueness)
//	ws:{id:%012d}     -> workspace record (JSON)
//	wsname:{name}     -> workspace id (name uniqueness)
//	id:user, id:ws    -> last assigned ids
const (
	userKeyFmt      = "user:%012d"
	userEmailKeyFmt = "useremail:%s"
	wsKeyFmt        = "ws:%012d"
	wsNameKeyFmt    = "wsname:%s"
	userIDCounter   = "id:user"
	wsIDCounter     = "id:ws"
)

type IUserRepository interface {
	CreateUser(workspaceID domain.WorkspaceID, fullName, email, passwordHash string) (domain.User, error)
	GetUser(id domain.UserID) (domain.User, error)
	GetUserByEmail(email string) (domain.User, error)
	CreateWorkspace(name string, ownerID domain.UserID) (domain.Workspace, error)
	GetWorkspace(id domain.WorkspaceID) (domain.Workspace, error)
}

// UserRepository persists accounts. Account mutations are not chat
// mutations and append no change events.
type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

// EnsureDefaults creates the bootstrap "none" workspace and "super"
// user, both with id 0. Idempotent; called once at startup.
func (r *UserRepository) EnsureDefaults() error {
	return r.db.Update(func(txn *badger.Txn) error {
		wsKey := []byte(fmt.Sprintf(wsKeyFmt, domain.DefaultWorkspaceID))
		_, err := txn.Get(wsKey)
		if err == nil {
			return nil
		}
		if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		now := time.Now().UTC()
		ws := domain.Workspace{
			ID:        domain.DefaultWorkspaceID,
			Name:      "none",
			OwnerID:   domain.SuperUserID,
			CreatedAt: now,
		}
		super := domain.User{
			ID:          domain.SuperUserID,
			WorkspaceID: domain.DefaultWorkspaceID,
			FullName:    "super",
			Email:       "super@none",
			CreatedAt:   now,
		}
		if err := putJSON(txn, wsKey, ws); err != nil {
			return err
		}
		if err := txn.Set([]byte(fmt.Sprintf(wsNameKeyFmt, ws.Name)), idBytes(uint64(ws.ID))); err != nil {
			return err
		}
		if err := putJSON(txn, []byte(fmt.Sprintf(userKeyFmt, super.ID)), super); err != nil {
			return err
		}
		return txn.Set([]byte(fmt.Sprintf(userEmailKeyFmt, super.Email)), idBytes(uint64(super.ID)))
	})
}

// CreateUser enforces email uniqueness. Workspace membership is fixed
// at creation and never changes afterwards.
func (r *UserRepository) CreateUser(workspaceID domain.WorkspaceID, fullName, email, passwordHash string) (domain.User, error) {
	var created domain.User
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := getWorkspace(txn, workspaceID); err != nil {
			return err
		}

		emailKey := []byte(fmt.Sprintf(userEmailKeyFmt, email))
		_, err := txn.Get(emailKey)
		if err == nil {
			return errors.ErrEmailTaken
		}
		if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		id, err := nextCounter(txn, []byte(userIDCounter))
		if err != nil {
			return err
		}
		created = domain.User{
			ID:           domain.UserID(id),
			WorkspaceID:  workspaceID,
			FullName:     fullName,
			Email:        email,
			PasswordHash: passwordHash,
			CreatedAt:    time.Now().UTC(),
		}
		if err := putUser(txn, created); err != nil {
			return err
		}
		return txn.Set(emailKey, idBytes(id))
	})
	if err != nil {
		return domain.User{}, err
	}
	return created, nil
}

func (r *UserRepository) GetUser(id domain.UserID) (domain.User, error) {
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	return user, err
}

func (r *UserRepository) GetUserByEmail(email string) (domain.User, error) {
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(fmt.Sprintf(userEmailKeyFmt, email)))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		var id uint64
		if err := item.Value(func(v []byte) error {
			parsed, err := strconv.ParseUint(string(v), 10, 64)
			id = parsed
			return err
		}); err != nil {
			return err
		}
		user, err = getUser(txn, domain.UserID(id))
		return err
	})
	return user, err
}

func (r *UserRepository) CreateWorkspace(name string, ownerID domain.UserID) (domain.Workspace, error) {
	var created domain.Workspace
	err := r.db.Update(func(txn *badger.Txn) error {
		nameKey := []byte(fmt.Sprintf(wsNameKeyFmt, name))
		_, err := txn.Get(nameKey)
		if err == nil {
			return errors.ErrChatNameTaken
		}
		if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		id, err := nextCounter(txn, []byte(wsIDCounter))
		if err != nil {
			return err
		}
		created = domain.Workspace{
			ID:        domain.WorkspaceID(id),
			Name:      name,
			OwnerID:   ownerID,
			CreatedAt: time.Now().UTC(),
		}
		if err := putJSON(txn, []byte(fmt.Sprintf(wsKeyFmt, created.ID)), created); err != nil {
			return err
		}
		return txn.Set(nameKey, idBytes(id))
	})
	if err != nil {
		return domain.Workspace{}, err
	}
	return created, nil
}

func (r *UserRepository) GetWorkspace(id domain.WorkspaceID) (domain.Workspace, error) {
	var ws domain.Workspace
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		ws, err = getWorkspace(txn, id)
		return err
	})
	return ws, err
}

func getUser(txn *badger.Txn, id domain.UserID) (domain.User, error) {
	item, err := txn.Get([]byte(fmt.Sprintf(userKeyFmt, id)))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	var shadow storedUser
	err = item.Value(func(v []byte) error {
		return json.Unmarshal(v, &shadow)
	})
	user := shadow.User
	user.PasswordHash = shadow.PasswordHash
	return user, err
}

// storedUser works around the json:"-" on the domain hash field: the
// hash must survive the round trip so signin can verify it.
type storedUser struct {
	domain.User
	PasswordHash string `json:"password_hash"`
}

func putUser(txn *badger.Txn, user domain.User) error {
	raw, err := json.Marshal(storedUser{User: user, PasswordHash: user.PasswordHash})
	if err != nil {
		return err
	}
	return txn.Set([]byte(fmt.Sprintf(userKeyFmt, user.ID)), raw)
}

func getWorkspace(txn *badger.Txn, id domain.WorkspaceID) (domain.Workspace, error) {
	item, err := txn.Get([]byte(fmt.Sprintf(wsKeyFmt, id)))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Workspace{}, errors.ErrWorkspaceNotFound
	}
	if err != nil {
		return domain.Workspace{}, err
	}
	var ws domain.Workspace
	err = item.Value(func(v []byte) error {
		return json.Unmarshal(v, &ws)
	})
	return ws, err
}

func putJSON(txn *badger.Txn, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, raw)
}

func idBytes(id uint64) []byte {
	return []byte(strconv.FormatUint(id, 10))
}
