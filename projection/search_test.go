package projection

import (
	"context"
	"log/slog"
	"testing"

	"github.com/blugelabs/bluge"
	"github.com/stretchr/testify/require"

	"chat-notify/domain"
	"chat-notify/domain/event"
)

func newTestIndex(t *testing.T) *SearchIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewSearchIndex(writer, slog.Default())
}

func messageEvent(chatID domain.ChatID, msgID domain.MessageID, sender domain.UserID, content string) event.ChangeEvent {
	return event.New(chatID, event.MessageAdded, event.MessagePayload{
		Message: domain.Message{ID: msgID, ChatID: chatID, SenderID: sender, Content: content},
		Members: []domain.UserID{sender},
	})
}

func Test_Search_Finds_Indexed_Messages_Per_Chat(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)
	ctx := context.Background()

	req.NoError(index.Consume(ctx, messageEvent(1, 1, 10, "deploy finished without errors")))
	req.NoError(index.Consume(ctx, messageEvent(1, 2, 11, "lunch anyone")))
	req.NoError(index.Consume(ctx, messageEvent(2, 3, 10, "deploy broke production")))

	hits, err := index.Search(ctx, 1, "deploy", 10)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(domain.MessageID(1), hits[0].MessageID)
	req.Equal(domain.ChatID(1), hits[0].ChatID)
	req.Equal(domain.UserID(10), hits[0].SenderID)
	req.Equal("deploy finished without errors", hits[0].Content)

	// The same terms in another chat stay invisible here.
	hits, err = index.Search(ctx, 2, "deploy", 10)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(domain.MessageID(3), hits[0].MessageID)
}

func Test_Consume_Ignores_Non_Message_Events(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)
	ctx := context.Background()

	e := event.New(1, event.ChatCreated, event.ChatPayload{
		Chat: domain.Chat{ID: 1, Kind: domain.KindGroup, Name: "room", Members: []domain.UserID{1}},
	})
	req.NoError(index.Consume(ctx, e))

	hits, err := index.Search(ctx, 1, "room", 10)
	req.NoError(err)
	req.Empty(hits)
}
