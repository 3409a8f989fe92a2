package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"chat-notify/domain"
	"chat-notify/domain/event"
	"chat-notify/errors"
)

func Test_Store_Message_Appends_MessageAdded(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	eventLog := NewEventLog(db, slog.Default())
	chats := NewChatRepository(db, eventLog, slog.Default())
	messages := NewMessageRepository(db, eventLog, slog.Default(), nil)
	ctx := context.Background()

	chat, err := chats.Create(ctx, domain.Chat{
		Kind: domain.KindGroup, Name: "room", Members: []domain.UserID{1, 2},
	})
	req.NoError(err)

	msg, err := messages.Store(ctx, chat.ID, 1, "hello there", nil)
	req.NoError(err)
	req.NotZero(msg.ID)

	events, err := eventLog.ReadFrom(chat.ID, 1, 0)
	req.NoError(err)
	req.Len(events, 1)
	req.Equal(event.MessageAdded, events[0].Kind)

	payload, ok := events[0].Payload.(event.MessagePayload)
	req.True(ok)
	req.Equal(msg.ID, payload.Message.ID)
	req.Equal("hello there", payload.Message.Content)
	req.ElementsMatch(chat.Members, payload.Members)
}

func Test_Store_Message_Requires_Membership(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	eventLog := NewEventLog(db, slog.Default())
	chats := NewChatRepository(db, eventLog, slog.Default())
	messages := NewMessageRepository(db, eventLog, slog.Default(), nil)
	ctx := context.Background()

	chat, err := chats.Create(ctx, domain.Chat{
		Kind: domain.KindGroup, Name: "room", Members: []domain.UserID{1, 2},
	})
	req.NoError(err)

	_, err = messages.Store(ctx, chat.ID, 42, "intruder", nil)
	req.ErrorIs(err, errors.ErrNotAMember)

	// A failed send leaves no trace in the log.
	events, err := eventLog.ReadFrom(chat.ID, 1, 0)
	req.NoError(err)
	req.Empty(events)
}

func Test_GetMessages_Pages_Backwards(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	eventLog := NewEventLog(db, slog.Default())
	chats := NewChatRepository(db, eventLog, slog.Default())
	messages := NewMessageRepository(db, eventLog, slog.Default(), lo.ToPtr(2))
	ctx := context.Background()

	chat, err := chats.Create(ctx, domain.Chat{
		Kind: domain.KindGroup, Name: "room", Members: []domain.UserID{1},
	})
	req.NoError(err)

	for i := 1; i <= 5; i++ {
		_, err := messages.Store(ctx, chat.ID, 1, fmt.Sprintf("message %d", i), nil)
		req.NoError(err)
	}

	// First page: the two newest, newest first.
	page, cursor, err := messages.GetMessages(chat.ID, nil)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("message 5", page[0].Content)
	req.Equal("message 4", page[1].Content)
	req.NotNil(cursor)

	// Second page resumes exactly where the first stopped.
	page, cursor, err = messages.GetMessages(chat.ID, cursor)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal("message 3", page[0].Content)
	req.Equal("message 2", page[1].Content)

	page, cursor, err = messages.GetMessages(chat.ID, cursor)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("message 1", page[0].Content)
	req.Equal(msgCursor(page[0].ID), *cursor)

	// Past the oldest message the page is empty and the cursor gone.
	page, cursor, err = messages.GetMessages(chat.ID, cursor)
	req.NoError(err)
	req.Empty(page)
	req.Nil(cursor)
}
