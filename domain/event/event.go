// Package event defines the change events produced by chat mutations.
// Every mutation on chats or messages yields exactly one ChangeEvent,
// appended in the same transaction as the row change. Events are
// immutable; payloads capture the member set at the time of the event
// so later membership changes cannot alter who a past event was for.
package event

import (
	"time"

	"github.com/google/uuid"

	"chat-notify/domain"
)

type Kind string

const (
	ChatCreated   Kind = "chat_created"
	ChatUpdated   Kind = "chat_updated"
	ChatDeleted   Kind = "chat_deleted"
	MemberAdded   Kind = "member_added"
	MemberRemoved Kind = "member_removed"
	NameChanged   Kind = "name_changed"
	MessageAdded  Kind = "message_added"
)

// Payload is the kind-specific part of a ChangeEvent.
type Payload interface {
	isPayload()
}

// ChatPayload carries a full chat snapshot.
// Used for chat_created, chat_updated and chat_deleted.
type ChatPayload struct {
	Chat domain.Chat `json:"chat"`
}

// MemberPayload carries the chat state after a membership change plus
// the previous member set, so recipients can be derived without any
// store access.
type MemberPayload struct {
	Chat        domain.Chat     `json:"chat"`
	PrevMembers []domain.UserID `json:"prev_members"`
	Added       []domain.UserID `json:"added_user_ids,omitempty"`
	Removed     []domain.UserID `json:"removed_user_ids,omitempty"`
}

type NamePayload struct {
	OldName string          `json:"old_name"`
	NewName string          `json:"new_name"`
	Members []domain.UserID `json:"members"`
}

type MessagePayload struct {
	Message domain.Message  `json:"message"`
	Members []domain.UserID `json:"members"`
}

func (ChatPayload) isPayload()    {}
func (MemberPayload) isPayload()  {}
func (NamePayload) isPayload()    {}
func (MessagePayload) isPayload() {}

// ChangeEvent is one entry of the per-chat ordered change log.
// Seq is strictly increasing and gap-free within a chat; GlobalSeq
// orders commits across all chats for the log tail.
type ChangeEvent struct {
	ID         uuid.UUID
	ChatID     domain.ChatID
	Seq        uint64
	GlobalSeq  uint64
	Kind       Kind
	OccurredAt time.Time
	Payload    Payload
}

// New builds an unsequenced event draft. Seq and GlobalSeq are assigned
// by the log at append time, within the same transaction as the mutation.
func New(chatID domain.ChatID, kind Kind, payload Payload) ChangeEvent {
	return ChangeEvent{
		ID:         uuid.New(),
		ChatID:     chatID,
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}
