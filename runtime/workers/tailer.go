package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-notify/contract"
	"chat-notify/domain/event"
)

// Tailer follows the change log in commit order and routes every event
// to a dispatch shard chosen by chat id, so one chat's events always
// land on the same shard and per-chat order survives the fan-out.
//
// It wakes on the log's append signal and also polls, in case a signal
// was coalesced away. The tail has no timeout of its own: it runs until
// the engine shuts down.
type Tailer struct {
	log          *slog.Logger
	events       contract.IEventLog
	wake         <-chan struct{}
	shards       []chan event.ChangeEvent
	cursor       uint64
	batchSize    int
	pollInterval time.Duration
}

func NewTailer(events contract.IEventLog, wake <-chan struct{},
	shards []chan event.ChangeEvent, startAfter uint64,
	batchSize int, pollInterval time.Duration, log *slog.Logger) *Tailer {
	return &Tailer{
		log:          log,
		events:       events,
		wake:         wake,
		shards:       shards,
		cursor:       startAfter,
		batchSize:    batchSize,
		pollInterval: pollInterval,
	}
}

func (t *Tailer) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		if err := t.drain(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			t.log.Debug("Context done, stopping log tail")
			return nil
		case <-t.wake:
		case <-ticker.C:
		}
	}
}

// drain reads batches until the durable head is reached, routing each
// event to its shard. Routing blocks when a shard channel is full: the
// log tail is the single producer and must not reorder, so backpressure
// here is absorbed by the queue, never by dropping events.
func (t *Tailer) drain(ctx context.Context) error {
	for {
		batch, err := t.events.ReadLog(t.cursor, t.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		for _, e := range batch {
			shard := t.shards[int(uint64(e.ChatID)%uint64(len(t.shards)))]
			select {
			case <-ctx.Done():
				return nil
			case shard <- e:
			}
			t.cursor = e.GlobalSeq
		}
	}
}
