package domain

import (
	"time"

	"github.com/samber/lo"

	"chat-notify/errors"
)

type ChatID int64

type ChatKind string

const (
	KindSingle         ChatKind = "single"
	KindGroup          ChatKind = "group"
	KindPrivateChannel ChatKind = "private_channel"
	KindPublicChannel  ChatKind = "public_channel"
)

// Named reports whether chats of this kind carry a name.
// A name is required and unique per workspace for named kinds.
func (k ChatKind) Named() bool {
	return k == KindGroup || k == KindPrivateChannel || k == KindPublicChannel
}

// Chat holds a member set that is order-irrelevant but never empty.
// A single chat has exactly two members and no name.
type Chat struct {
	ID          ChatID      `json:"id"`
	WorkspaceID WorkspaceID `json:"ws_id"`
	Name        string      `json:"name,omitempty"`
	Kind        ChatKind    `json:"kind"`
	Members     []UserID    `json:"members"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (c Chat) HasMember(id UserID) bool {
	return lo.Contains(c.Members, id)
}

// Validate enforces the member set and naming invariants for the chat kind.
func (c Chat) Validate() error {
	if len(c.Members) == 0 {
		return errors.ErrEmptyMembers
	}
	if len(lo.Uniq(c.Members)) != len(c.Members) {
		return errors.ErrDuplicateMembers
	}
	switch c.Kind {
	case KindSingle:
		if len(c.Members) != 2 {
			return errors.ErrSingleChatMembers
		}
		if c.Name != "" {
			return errors.ErrSingleChatNamed
		}
	case KindGroup, KindPrivateChannel, KindPublicChannel:
		if c.Name == "" {
			return errors.ErrUnnamedChat
		}
	default:
		return errors.ErrUnknownChatKind
	}
	return nil
}
