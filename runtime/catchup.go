package runtime

import (
	"context"
	"log/slog"
	"sort"

	"chat-notify/contract"
	"chat-notify/domain"
	"chat-notify/domain/event"
)

// CatchupReader replays the events a reconnecting client missed,
// straight from the durable log. Used once per connection, before it
// switches to live dispatch.
type CatchupReader struct {
	events contract.IEventLog
	chats  contract.IMemberDirectory
	log    *slog.Logger
}

func NewCatchupReader(events contract.IEventLog, chats contract.IMemberDirectory, log *slog.Logger) *CatchupReader {
	return &CatchupReader{events: events, chats: chats, log: log}
}

// CatchUp returns, for every chat the user is currently a member of,
// the events after the client's last seen seq, each chat in ascending
// seq order. Chats without a recorded position start from the beginning
// of retained history, which for a compacted chat is the horizon, not
// seq 0. An explicitly supplied position older than the retained
// history yields errors.ErrCatchupHorizonExceeded: the client must
// resync chat state instead of replaying a gap.
func (r *CatchupReader) CatchUp(ctx context.Context, userID domain.UserID, lastSeen map[domain.ChatID]uint64) ([]event.ChangeEvent, error) {
	chatIDs, err := r.chats.ChatsOf(userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(chatIDs, func(i, j int) bool { return chatIDs[i] < chatIDs[j] })

	var missed []event.ChangeEvent
	for _, chatID := range chatIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		after, tracked := lastSeen[chatID]
		if !tracked {
			horizon, err := r.events.Horizon(chatID)
			if err != nil {
				return nil, err
			}
			// Horizon is the first retained seq; reading after horizon-1
			// yields all of it.
			after = horizon - 1
		}
		events, err := r.events.ReadFrom(chatID, after, 0)
		if err != nil {
			return nil, err
		}
		missed = append(missed, events...)
	}

	r.log.Debug("Catch-up read complete",
		"user", userID, "chats", len(chatIDs), "events", len(missed))
	return missed, nil
}
