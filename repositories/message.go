//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-notify/domain"
	"chat-notify/domain/event"
	"chat-notify/errors"
)

// Message key layout:
//
//	msg:{chat:%012d}:{id:%012d} -> message record (JSON)
//	id:msg                      -> last assigned message id
//
// Ids are monotonic, so keys under one chat prefix sort chronologically.
const (
	msgKeyFmt    = "msg:%012d:%012d"
	msgPrefixFmt = "msg:%012d:"
	msgIDCounter = "id:msg"
)

type IMessageRepository interface {
	Store(ctx context.Context, chatID domain.ChatID, senderID domain.UserID, content string, files []string) (domain.Message, error)
	GetMessages(chatID domain.ChatID, cursor *string) ([]domain.Message, *string, error)
}

// MessageRepository persists messages and appends message_added in the
// same transaction. The sender-membership invariant is checked inside
// that transaction, against the chat row it commits with.
type MessageRepository struct {
	db            *badger.DB
	events        *EventLog
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, events *EventLog, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, events: events, log: log, limitMessages: limitMessages}
}

func (m *MessageRepository) Store(ctx context.Context, chatID domain.ChatID,
	senderID domain.UserID, content string, files []string) (domain.Message, error) {

	var stored domain.Message
	_, err := m.events.Update(ctx, func(txn *badger.Txn) ([]event.ChangeEvent, error) {
		chat, err := getChat(txn, chatID)
		if err != nil {
			return nil, err
		}
		if !chat.HasMember(senderID) {
			return nil, errors.ErrNotAMember
		}

		id, err := nextCounter(txn, []byte(msgIDCounter))
		if err != nil {
			return nil, err
		}
		msg := domain.Message{
			ID:        domain.MessageID(id),
			ChatID:    chatID,
			SenderID:  senderID,
			Content:   content,
			Files:     files,
			CreatedAt: time.Now().UTC(),
		}

		raw, err := json.Marshal(msg)
		if err != nil {
			return nil, err
		}
		key := []byte(fmt.Sprintf(msgKeyFmt, msg.ChatID, msg.ID))
		if err := txn.Set(key, raw); err != nil {
			return nil, err
		}

		stored = msg
		return []event.ChangeEvent{
			event.New(chatID, event.MessageAdded, event.MessagePayload{
				Message: msg,
				Members: chat.Members,
			}),
		}, nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	return stored, nil
}

// GetMessages pages backwards through a chat's history, newest first.
// The returned cursor resumes the scan on the next call; nil cursor
// starts from the most recent message.
func (m *MessageRepository) GetMessages(chatID domain.ChatID, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message

	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf(msgPrefixFmt, chatID)
		prefix := []byte(prefixStr)

		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible id, then walk backwards.
			seekKey = append(prefix, []byte("999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			err := it.Item().Value(func(v []byte) error {
				var msg domain.Message
				if err := json.Unmarshal(v, &msg); err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if len(messages) == 0 {
		return messages, nil, nil
	}
	next := msgCursor(messages[len(messages)-1].ID)
	return messages, &next, nil
}

// msgCursor formats a message id the way it appears in the key suffix.
func msgCursor(id domain.MessageID) string {
	return fmt.Sprintf("%012d", id)
}
