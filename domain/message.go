// Package domain contains core concepts of the chat system.
// This file defines Message entities and related rules.
// Messages are immutable and validated by the domain.
package domain

import "time"

type MessageID int64

// Message is immutable once created. Files holds opaque attachment
// references; the attachment store itself lives outside this system.
type Message struct {
	ID        MessageID `json:"id"`
	ChatID    ChatID    `json:"chat_id"`
	SenderID  UserID    `json:"sender_id"`
	Content   string    `json:"content"`
	Files     []string  `json:"files,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
