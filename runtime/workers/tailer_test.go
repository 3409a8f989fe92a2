package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-notify/domain"
	"chat-notify/domain/event"
	"chat-notify/mocks"
)

func globalEvent(chatID domain.ChatID, globalSeq uint64) event.ChangeEvent {
	e := event.New(chatID, event.MessageAdded, event.MessagePayload{
		Members: []domain.UserID{1},
	})
	e.Seq = globalSeq
	e.GlobalSeq = globalSeq
	return e
}

func TestTailer_Routes_By_Chat_To_A_Stable_Shard(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := mocks.NewMockIEventLog(ctrl)
	wake := make(chan struct{}, 1)
	shards := []chan event.ChangeEvent{
		make(chan event.ChangeEvent, 8),
		make(chan event.ChangeEvent, 8),
	}

	// Chats 2 and 4 are even, chat 3 is odd.
	batch := []event.ChangeEvent{
		globalEvent(2, 1),
		globalEvent(3, 2),
		globalEvent(4, 3),
	}
	events.EXPECT().ReadLog(uint64(0), 8).Return(batch, nil)
	events.EXPECT().ReadLog(uint64(3), 8).Return(nil, nil).AnyTimes()

	tailer := NewTailer(events, wake, shards, 0, 8, time.Hour, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = tailer.Run(ctx)
		close(done)
	}()

	expectEvent := func(shard chan event.ChangeEvent, chatID domain.ChatID) {
		select {
		case e := <-shard:
			req.Equal(chatID, e.ChatID)
		case <-time.After(2 * time.Second):
			req.Fail("event never reached its shard")
		}
	}
	expectEvent(shards[0], 2)
	expectEvent(shards[1], 3)
	expectEvent(shards[0], 4)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("tailer did not stop on cancel")
	}
}

func TestTailer_Wakes_On_Append_Signal(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := mocks.NewMockIEventLog(ctrl)
	wake := make(chan struct{}, 1)
	shards := []chan event.ChangeEvent{make(chan event.ChangeEvent, 8)}

	// First drain finds nothing; after the wake signal one event appears.
	first := events.EXPECT().ReadLog(uint64(0), 8).Return(nil, nil)
	events.EXPECT().ReadLog(uint64(0), 8).
		Return([]event.ChangeEvent{globalEvent(1, 1)}, nil).
		After(first)
	events.EXPECT().ReadLog(uint64(1), 8).Return(nil, nil).AnyTimes()

	// Poll interval far away: only the wake signal can trigger the read.
	tailer := NewTailer(events, wake, shards, 0, 8, time.Hour, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tailer.Run(ctx)

	wake <- struct{}{}

	select {
	case e := <-shards[0]:
		req.Equal(uint64(1), e.GlobalSeq)
	case <-time.After(2 * time.Second):
		req.Fail("wake signal did not trigger a drain")
	}
}
