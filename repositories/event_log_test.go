package repositories

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chat-notify/domain"
	"chat-notify/domain/event"
	"chat-notify/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func appendChatEvent(t *testing.T, log *EventLog, chatID domain.ChatID) event.ChangeEvent {
	t.Helper()
	events, err := log.Update(context.Background(), func(txn *badger.Txn) ([]event.ChangeEvent, error) {
		chat := domain.Chat{ID: chatID, Kind: domain.KindGroup, Name: "room", Members: []domain.UserID{1, 2}}
		return []event.ChangeEvent{
			event.New(chatID, event.ChatUpdated, event.ChatPayload{Chat: chat}),
		}, nil
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0]
}

func Test_Append_Assigns_GapFree_Sequences(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	eventLog := NewEventLog(db, slog.Default())

	chatID := domain.ChatID(7)
	for i := 0; i < 5; i++ {
		appendChatEvent(t, eventLog, chatID)
	}

	events, err := eventLog.ReadFrom(chatID, 0, 0)
	req.NoError(err)
	req.Len(events, 5)
	for i, e := range events {
		req.Equal(uint64(i+1), e.Seq)
		req.Equal(chatID, e.ChatID)
	}
}

func Test_Append_Concurrent_Writers_Keep_Order(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	eventLog := NewEventLog(db, slog.Default())

	const writers = 4
	const perWriter = 5
	chatID := domain.ChatID(3)

	errs := make(chan error, writers*perWriter)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				var err error
				// A loser of every retry round reports transient; retry it
				// here the way a caller would.
				for {
					_, err = eventLog.Update(context.Background(), func(txn *badger.Txn) ([]event.ChangeEvent, error) {
						chat := domain.Chat{ID: chatID, Kind: domain.KindGroup, Name: "room", Members: []domain.UserID{1, 2}}
						return []event.ChangeEvent{
							event.New(chatID, event.ChatUpdated, event.ChatPayload{Chat: chat}),
						}, nil
					})
					if !errors.Transient(err) {
						break
					}
				}
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	events, err := eventLog.ReadFrom(chatID, 0, 0)
	req.NoError(err)
	req.Len(events, writers*perWriter)

	// Sequences must be strictly increasing and gap free regardless of
	// which writer won each conflict retry.
	for i, e := range events {
		req.Equal(uint64(i+1), e.Seq)
	}
}

func Test_ReadFrom_Resumes_After_Position(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	eventLog := NewEventLog(db, slog.Default())

	chatID := domain.ChatID(1)
	for i := 0; i < 5; i++ {
		appendChatEvent(t, eventLog, chatID)
	}

	events, err := eventLog.ReadFrom(chatID, 2, 0)
	req.NoError(err)
	req.Len(events, 3)
	req.Equal(uint64(3), events[0].Seq)
	req.Equal(uint64(5), events[2].Seq)

	// Reading past the head returns nothing, not an error.
	events, err = eventLog.ReadFrom(chatID, 5, 0)
	req.NoError(err)
	req.Empty(events)
}

func Test_ReadLog_Follows_Commit_Order_Across_Chats(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	eventLog := NewEventLog(db, slog.Default())

	appendChatEvent(t, eventLog, 1)
	appendChatEvent(t, eventLog, 2)
	appendChatEvent(t, eventLog, 1)

	head, err := eventLog.Head()
	req.NoError(err)
	req.Equal(uint64(3), head)

	events, err := eventLog.ReadLog(0, 0)
	req.NoError(err)
	req.Len(events, 3)
	req.Equal(domain.ChatID(1), events[0].ChatID)
	req.Equal(domain.ChatID(2), events[1].ChatID)
	req.Equal(domain.ChatID(1), events[2].ChatID)
	for i, e := range events {
		req.Equal(uint64(i+1), e.GlobalSeq)
	}

	batch, err := eventLog.ReadLog(1, 1)
	req.NoError(err)
	req.Len(batch, 1)
	req.Equal(uint64(2), batch[0].GlobalSeq)
}

func Test_Compaction_Raises_Horizon(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	eventLog := NewEventLog(db, slog.Default())

	chatID := domain.ChatID(9)
	for i := 0; i < 4; i++ {
		appendChatEvent(t, eventLog, chatID)
	}

	horizon, err := eventLog.Horizon(chatID)
	req.NoError(err)
	req.Equal(uint64(1), horizon)

	// Everything appended so far is older than a future cutoff.
	removed, err := eventLog.CompactBefore(chatID, time.Now().Add(time.Hour))
	req.NoError(err)
	req.Equal(4, removed)

	horizon, err = eventLog.Horizon(chatID)
	req.NoError(err)
	req.Equal(uint64(5), horizon)

	// A reader positioned before the horizon cannot catch up anymore.
	_, err = eventLog.ReadFrom(chatID, 0, 0)
	req.ErrorIs(err, errors.ErrCatchupHorizonExceeded)

	// A reader at the horizon edge is still fine.
	events, err := eventLog.ReadFrom(chatID, 4, 0)
	req.NoError(err)
	req.Empty(events)

	// New appends continue the old numbering, never reuse it.
	e := appendChatEvent(t, eventLog, chatID)
	req.Equal(uint64(5), e.Seq)
}

func Test_Mutation_Failure_Appends_Nothing(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	eventLog := NewEventLog(db, slog.Default())

	chatID := domain.ChatID(4)
	_, err := eventLog.Update(context.Background(), func(txn *badger.Txn) ([]event.ChangeEvent, error) {
		if err := txn.Set([]byte("chat:000000000004"), []byte("{}")); err != nil {
			return nil, err
		}
		return []event.ChangeEvent{
			event.New(chatID, event.ChatCreated, event.ChatPayload{}),
		}, errors.ErrChatNotFound
	})
	req.ErrorIs(err, errors.ErrChatNotFound)

	// Neither the row nor the event survive a failed transaction.
	events, readErr := eventLog.ReadFrom(chatID, 0, 0)
	req.NoError(readErr)
	req.Empty(events)

	head, headErr := eventLog.Head()
	req.NoError(headErr)
	req.Zero(head)
}

func Test_Append_Signals_Wake_Channel(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	eventLog := NewEventLog(db, slog.Default())

	appendChatEvent(t, eventLog, 1)

	select {
	case <-eventLog.WakeCh():
	case <-time.After(time.Second):
		req.Fail("append should have signaled the wake channel")
	}
}
