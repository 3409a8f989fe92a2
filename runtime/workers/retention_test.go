package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-notify/domain"
)

type fakeCompactor struct {
	mu      sync.Mutex
	chats   []domain.ChatID
	cutoffs map[domain.ChatID]time.Time
}

func (f *fakeCompactor) Chats() ([]domain.ChatID, error) {
	return f.chats, nil
}

func (f *fakeCompactor) CompactBefore(chatID domain.ChatID, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cutoffs == nil {
		f.cutoffs = make(map[domain.ChatID]time.Time)
	}
	f.cutoffs[chatID] = cutoff
	return 1, nil
}

func TestRetention_Sweeps_Every_Chat_With_Window_Cutoff(t *testing.T) {
	req := require.New(t)
	compactor := &fakeCompactor{chats: []domain.ChatID{1, 2, 3}}

	window := time.Hour
	retention := NewRetention(compactor, window, 20*time.Millisecond, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	req.NoError(retention.Run(ctx))

	compactor.mu.Lock()
	defer compactor.mu.Unlock()
	req.Len(compactor.cutoffs, 3)
	for _, cutoff := range compactor.cutoffs {
		// The cutoff trails now by the retention window.
		req.WithinDuration(time.Now().UTC().Add(-window), cutoff, time.Second)
	}
}
