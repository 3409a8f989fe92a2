// Package runtime hosts the live side of the notification engine:
// the subscriber registry, client connections, catch-up reads and the
// engine wiring them to the change log. It contains no domain rules.
package runtime

import (
	"sync"

	"github.com/google/uuid"

	"chat-notify/contract"
	"chat-notify/domain"
)

type connSet map[uuid.UUID]contract.Subscriber

// Registry tracks which users currently have live connections.
// State is process-local and rebuilt from scratch on restart; it is
// never the source of truth for what a user has received.
//
// Reads happen on every dispatch step, mutations only on connect and
// disconnect, hence the RWMutex.
type Registry struct {
	mu     sync.RWMutex
	byConn map[uuid.UUID]contract.Subscriber
	byUser map[domain.UserID]connSet
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[uuid.UUID]contract.Subscriber),
		byUser: make(map[domain.UserID]connSet),
	}
}

// Subscribe registers a live connection for its user. A user may hold
// several simultaneous connections (multi-device); every event for the
// user fans out to all of them.
func (r *Registry) Subscribe(sub contract.Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byConn[sub.ID()] = sub

	if _, ok := r.byUser[sub.UserID()]; !ok {
		r.byUser[sub.UserID()] = make(connSet)
	}
	r.byUser[sub.UserID()][sub.ID()] = sub
}

// Unsubscribe removes one connection. Empty per-user sets are deleted
// to keep the map from leaking over churn.
func (r *Registry) Unsubscribe(connectionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byConn[connectionID]
	if !ok {
		return
	}
	delete(r.byConn, connectionID)

	if conns, ok := r.byUser[sub.UserID()]; ok {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(r.byUser, sub.UserID())
		}
	}
}

// ConnectionsFor snapshots the user's live connections. The returned
// slice is the caller's; no lock is held while it enqueues.
func (r *Registry) ConnectionsFor(userID domain.UserID) []contract.Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	out := make([]contract.Subscriber, 0, len(conns))
	for _, sub := range conns {
		out = append(out, sub)
	}
	return out
}

// Len reports the number of live connections, for telemetry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
