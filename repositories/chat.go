//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"chat-notify/domain"
	"chat-notify/domain/event"
	"chat-notify/errors"
)

// Chat key layout:
//
//	chat:{id:%012d}                       -> chat record (JSON)
//	chatname:{ws:%012d}:{name}            -> chat id (name uniqueness per workspace)
//	member:{user:%012d}:{chat:%012d}      -> "" (membership index for catch-up)
//	id:chat                               -> last assigned chat id
const (
	chatKeyFmt      = "chat:%012d"
	chatNameKeyFmt  = "chatname:%012d:%s"
	memberKeyFmt    = "member:%012d:%012d"
	memberPrefixFmt = "member:%012d:"
	chatIDCounter   = "id:chat"
)

type IChatRepository interface {
	Create(ctx context.Context, chat domain.Chat) (domain.Chat, error)
	Get(chatID domain.ChatID) (domain.Chat, error)
	ChatsOf(userID domain.UserID) ([]domain.ChatID, error)
	Rename(ctx context.Context, chatID domain.ChatID, newName string) (domain.Chat, error)
	AddMembers(ctx context.Context, chatID domain.ChatID, userIDs []domain.UserID) (domain.Chat, error)
	RemoveMembers(ctx context.Context, chatID domain.ChatID, userIDs []domain.UserID) (domain.Chat, error)
	Delete(ctx context.Context, chatID domain.ChatID) error
}

// ChatRepository persists chats and appends the matching change event
// in the same transaction as every row mutation.
type ChatRepository struct {
	db     *badger.DB
	events *EventLog
	log    *slog.Logger
}

func NewChatRepository(db *badger.DB, events *EventLog, log *slog.Logger) *ChatRepository {
	return &ChatRepository{db: db, events: events, log: log}
}

// Create assigns the chat id, claims the name for named kinds and
// appends chat_created.
func (r *ChatRepository) Create(ctx context.Context, chat domain.Chat) (domain.Chat, error) {
	if err := chat.Validate(); err != nil {
		return domain.Chat{}, err
	}

	var created domain.Chat
	_, err := r.events.Update(ctx, func(txn *badger.Txn) ([]event.ChangeEvent, error) {
		id, err := nextCounter(txn, []byte(chatIDCounter))
		if err != nil {
			return nil, err
		}
		chat.ID = domain.ChatID(id)
		chat.CreatedAt = time.Now().UTC()

		if chat.Kind.Named() {
			if err := claimChatName(txn, chat); err != nil {
				return nil, err
			}
		}
		if err := putChat(txn, chat); err != nil {
			return nil, err
		}
		for _, uid := range chat.Members {
			if err := txn.Set(memberKey(uid, chat.ID), nil); err != nil {
				return nil, err
			}
		}

		created = chat
		return []event.ChangeEvent{
			event.New(chat.ID, event.ChatCreated, event.ChatPayload{Chat: chat}),
		}, nil
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return created, nil
}

func (r *ChatRepository) Get(chatID domain.ChatID) (domain.Chat, error) {
	var chat domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		chat, err = getChat(txn, chatID)
		return err
	})
	return chat, err
}

// ChatsOf scans the membership index for the user's current chats.
func (r *ChatRepository) ChatsOf(userID domain.UserID) ([]domain.ChatID, error) {
	var ids []domain.ChatID
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(fmt.Sprintf(memberPrefixFmt, userID))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw := string(it.Item().Key()[len(prefix):])
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return err
			}
			ids = append(ids, domain.ChatID(id))
		}
		return nil
	})
	return ids, err
}

// Rename changes a chat's name and appends name_changed with the member
// snapshot. Single chats carry no name and cannot be renamed.
func (r *ChatRepository) Rename(ctx context.Context, chatID domain.ChatID, newName string) (domain.Chat, error) {
	var renamed domain.Chat
	_, err := r.events.Update(ctx, func(txn *badger.Txn) ([]event.ChangeEvent, error) {
		chat, err := getChat(txn, chatID)
		if err != nil {
			return nil, err
		}
		if !chat.Kind.Named() {
			return nil, errors.ErrSingleChatNamed
		}
		if newName == "" {
			return nil, errors.ErrUnnamedChat
		}
		if chat.Name == newName {
			renamed = chat
			return nil, nil
		}

		oldName := chat.Name
		if err := txn.Delete(chatNameKey(chat.WorkspaceID, oldName)); err != nil {
			return nil, err
		}
		chat.Name = newName
		if err := claimChatName(txn, chat); err != nil {
			return nil, err
		}
		if err := putChat(txn, chat); err != nil {
			return nil, err
		}

		renamed = chat
		return []event.ChangeEvent{
			event.New(chat.ID, event.NameChanged, event.NamePayload{
				OldName: oldName,
				NewName: newName,
				Members: chat.Members,
			}),
		}, nil
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return renamed, nil
}

// AddMembers appends member_added carrying the previous and the new
// member sets. Adding only existing members is a no-op with no event.
func (r *ChatRepository) AddMembers(ctx context.Context, chatID domain.ChatID, userIDs []domain.UserID) (domain.Chat, error) {
	var updated domain.Chat
	_, err := r.events.Update(ctx, func(txn *badger.Txn) ([]event.ChangeEvent, error) {
		chat, err := getChat(txn, chatID)
		if err != nil {
			return nil, err
		}
		if chat.Kind == domain.KindSingle {
			return nil, errors.ErrSingleChatMembers
		}

		added := lo.Filter(lo.Uniq(userIDs), func(id domain.UserID, _ int) bool {
			return !chat.HasMember(id)
		})
		if len(added) == 0 {
			updated = chat
			return nil, nil
		}

		prev := chat.Members
		chat.Members = append(append([]domain.UserID{}, prev...), added...)
		if err := putChat(txn, chat); err != nil {
			return nil, err
		}
		for _, uid := range added {
			if err := txn.Set(memberKey(uid, chat.ID), nil); err != nil {
				return nil, err
			}
		}

		updated = chat
		return []event.ChangeEvent{
			event.New(chat.ID, event.MemberAdded, event.MemberPayload{
				Chat:        chat,
				PrevMembers: prev,
				Added:       added,
			}),
		}, nil
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return updated, nil
}

// RemoveMembers appends member_removed; the payload keeps the previous
// set so leavers still receive the removal notice. The member set can
// never become empty.
func (r *ChatRepository) RemoveMembers(ctx context.Context, chatID domain.ChatID, userIDs []domain.UserID) (domain.Chat, error) {
	var updated domain.Chat
	_, err := r.events.Update(ctx, func(txn *badger.Txn) ([]event.ChangeEvent, error) {
		chat, err := getChat(txn, chatID)
		if err != nil {
			return nil, err
		}
		if chat.Kind == domain.KindSingle {
			return nil, errors.ErrSingleChatMembers
		}

		removed := lo.Filter(lo.Uniq(userIDs), func(id domain.UserID, _ int) bool {
			return chat.HasMember(id)
		})
		if len(removed) == 0 {
			updated = chat
			return nil, nil
		}

		prev := chat.Members
		remaining := lo.Without(prev, removed...)
		if len(remaining) == 0 {
			return nil, errors.ErrEmptyMembers
		}

		chat.Members = remaining
		if err := putChat(txn, chat); err != nil {
			return nil, err
		}
		for _, uid := range removed {
			if err := txn.Delete(memberKey(uid, chat.ID)); err != nil {
				return nil, err
			}
		}

		updated = chat
		return []event.ChangeEvent{
			event.New(chat.ID, event.MemberRemoved, event.MemberPayload{
				Chat:        chat,
				PrevMembers: prev,
				Removed:     removed,
			}),
		}, nil
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return updated, nil
}

// Delete removes the chat row and its indexes and appends chat_deleted.
// Already-appended events stay in the log for catch-up until compaction.
func (r *ChatRepository) Delete(ctx context.Context, chatID domain.ChatID) error {
	_, err := r.events.Update(ctx, func(txn *badger.Txn) ([]event.ChangeEvent, error) {
		chat, err := getChat(txn, chatID)
		if err != nil {
			return nil, err
		}
		if err := txn.Delete([]byte(fmt.Sprintf(chatKeyFmt, chat.ID))); err != nil {
			return nil, err
		}
		if chat.Kind.Named() {
			if err := txn.Delete(chatNameKey(chat.WorkspaceID, chat.Name)); err != nil {
				return nil, err
			}
		}
		for _, uid := range chat.Members {
			if err := txn.Delete(memberKey(uid, chat.ID)); err != nil {
				return nil, err
			}
		}
		return []event.ChangeEvent{
			event.New(chat.ID, event.ChatDeleted, event.ChatPayload{Chat: chat}),
		}, nil
	})
	return err
}

func getChat(txn *badger.Txn, chatID domain.ChatID) (domain.Chat, error) {
	item, err := txn.Get([]byte(fmt.Sprintf(chatKeyFmt, chatID)))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Chat{}, errors.ErrChatNotFound
	}
	if err != nil {
		return domain.Chat{}, err
	}
	var chat domain.Chat
	err = item.Value(func(v []byte) error {
		return json.Unmarshal(v, &chat)
	})
	return chat, err
}

func putChat(txn *badger.Txn, chat domain.Chat) error {
	raw, err := json.Marshal(chat)
	if err != nil {
		return err
	}
	return txn.Set([]byte(fmt.Sprintf(chatKeyFmt, chat.ID)), raw)
}

func claimChatName(txn *badger.Txn, chat domain.Chat) error {
	key := chatNameKey(chat.WorkspaceID, chat.Name)
	_, err := txn.Get(key)
	if err == nil {
		return errors.ErrChatNameTaken
	}
	if !stderrors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return txn.Set(key, []byte(strconv.FormatInt(int64(chat.ID), 10)))
}

func chatNameKey(ws domain.WorkspaceID, name string) []byte {
	return []byte(fmt.Sprintf(chatNameKeyFmt, ws, name))
}

func memberKey(user domain.UserID, chat domain.ChatID) []byte {
	return []byte(fmt.Sprintf(memberKeyFmt, user, chat))
}
