// Package observability aggregates engine counters for telemetry.
package observability

import "sync/atomic"

// NotifyStats counts what the dispatcher does. All fields are atomics:
// shards update them concurrently and the telemetry worker reads them
// without coordination.
type NotifyStats struct {
	EventsDispatched   atomic.Uint64
	EventsEnqueued     atomic.Uint64
	ConnectionsDropped atomic.Uint64
	SinkErrors         atomic.Uint64
	CatchupReads       atomic.Uint64
}

// Snapshot is a point-in-time copy for logging.
type Snapshot struct {
	EventsDispatched   uint64
	EventsEnqueued     uint64
	ConnectionsDropped uint64
	SinkErrors         uint64
	CatchupReads       uint64
}

func (s *NotifyStats) Snapshot() Snapshot {
	return Snapshot{
		EventsDispatched:   s.EventsDispatched.Load(),
		EventsEnqueued:     s.EventsEnqueued.Load(),
		ConnectionsDropped: s.ConnectionsDropped.Load(),
		SinkErrors:         s.SinkErrors.Load(),
		CatchupReads:       s.CatchupReads.Load(),
	}
}
