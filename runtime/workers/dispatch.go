package workers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"chat-notify/contract"
	"chat-notify/domain/event"
	"chat-notify/errors"
	"chat-notify/observability"
)

// Dispatch consumes one shard of the tailed log, resolves recipients
// from the event payload and fans the event out to their live
// connections, plus the permanent sinks (projections, telemetry).
//
// A recipient with no live connection needs nothing here: the event is
// already durable in the log and catch-up serves it on reconnect.
type Dispatch struct {
	log         *slog.Logger
	events      chan event.ChangeEvent
	registry    contract.IRegistry
	sinks       []contract.EventSink
	sinkTimeout time.Duration
	stats       *observability.NotifyStats
}

func NewDispatch(events chan event.ChangeEvent, registry contract.IRegistry,
	sinks []contract.EventSink, sinkTimeout time.Duration,
	stats *observability.NotifyStats, log *slog.Logger) *Dispatch {
	return &Dispatch{
		log:         log,
		events:      events,
		registry:    registry,
		sinks:       sinks,
		sinkTimeout: sinkTimeout,
		stats:       stats,
	}
}

func (d *Dispatch) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("Context done, stopping dispatch shard")
			return nil
		case e := <-d.events:
			d.Fanout(ctx, e)
		}
	}
}

// Fanout enqueues the event onto every recipient connection. An
// overflowing connection is unsubscribed on the spot; nothing blocks
// and no other recipient is affected.
func (d *Dispatch) Fanout(ctx context.Context, e event.ChangeEvent) {
	d.stats.EventsDispatched.Add(1)

	for _, userID := range event.Recipients(e) {
		for _, sub := range d.registry.ConnectionsFor(userID) {
			err := sub.Enqueue(e)
			switch {
			case err == nil:
				d.stats.EventsEnqueued.Add(1)
			case stderrors.Is(err, errors.ErrConsumerOverflow):
				d.registry.Unsubscribe(sub.ID())
				d.stats.ConnectionsDropped.Add(1)
			case stderrors.Is(err, errors.ErrConnectionClosed):
				d.registry.Unsubscribe(sub.ID())
			default:
				d.log.Warn("Enqueue failed", "connection", sub.ID(), "error", err)
			}
		}
	}

	for _, sink := range d.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
		if err := sink.Consume(sinkCtx, e); err != nil {
			d.stats.SinkErrors.Add(1)
			d.log.Warn("Sink failed", "event", e.ID, "error", err)
		}
		cancel()
	}
}
