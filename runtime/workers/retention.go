package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-notify/domain"
)

// Compactor is the narrow slice of the event log that retention needs.
type Compactor interface {
	Chats() ([]domain.ChatID, error)
	CompactBefore(chatID domain.ChatID, cutoff time.Time) (int, error)
}

// Retention periodically trims events older than the catch-up window.
// Clients parked longer than that get ErrCatchupHorizonExceeded on
// reconnect and must resynchronize instead of replaying.
type Retention struct {
	log      *slog.Logger
	events   Compactor
	window   time.Duration
	interval time.Duration
}

func NewRetention(events Compactor, window, interval time.Duration, log *slog.Logger) *Retention {
	return &Retention{log: log, events: events, window: window, interval: interval}
}

func (r *Retention) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Debug("Context done, stopping retention")
			return nil
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Retention) sweep() {
	chats, err := r.events.Chats()
	if err != nil {
		r.log.Error("Retention sweep failed to list chats", "error", err)
		return
	}

	cutoff := time.Now().UTC().Add(-r.window)
	total := 0
	for _, chatID := range chats {
		removed, err := r.events.CompactBefore(chatID, cutoff)
		if err != nil {
			r.log.Error("Compaction failed", "chat", chatID, "error", err)
			continue
		}
		total += removed
	}
	if total > 0 {
		r.log.Info("Retention sweep done", "chats", len(chats), "removed", total)
	}
}
