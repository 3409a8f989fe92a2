package runtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"chat-notify/contract"
	"chat-notify/domain"
	"chat-notify/domain/event"
	"chat-notify/errors"
)

// State follows the connection lifecycle:
// Connecting -> CatchingUp -> Live -> (Disconnected | Overflowed).
// Overflowed drops straight to Disconnected; the client reconnects and
// catches up again. There is no way back from Live to CatchingUp
// without a full reconnect, so catch-up and live events never interleave.
type State int32

const (
	StateConnecting State = iota
	StateCatchingUp
	StateLive
	StateOverflowed
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateCatchingUp:
		return "catching_up"
	case StateLive:
		return "live"
	case StateOverflowed:
		return "overflowed"
	default:
		return "disconnected"
	}
}

// Connection is one live client attachment. The dispatcher enqueues
// onto its bounded outbound queue and a single pump goroutine drains it
// towards the gateway, deduplicating by per-chat sequence so that
// redelivery of an already pushed event is a no-op.
type Connection struct {
	id     uuid.UUID
	userID domain.UserID
	out    chan event.ChangeEvent
	pusher contract.Pusher
	log    *slog.Logger

	state  atomic.Int32
	once   sync.Once
	closed chan struct{}
	onDrop func(connectionID uuid.UUID)

	mu       sync.Mutex
	lastSent map[domain.ChatID]uint64
}

func NewConnection(userID domain.UserID, queueSize int, pusher contract.Pusher,
	onDrop func(connectionID uuid.UUID), log *slog.Logger) *Connection {
	c := &Connection{
		id:       uuid.New(),
		userID:   userID,
		out:      make(chan event.ChangeEvent, queueSize),
		pusher:   pusher,
		closed:   make(chan struct{}),
		onDrop:   onDrop,
		lastSent: make(map[domain.ChatID]uint64),
		log:      log,
	}
	c.state.Store(int32(StateConnecting))
	return c
}

func (c *Connection) ID() uuid.UUID         { return c.id }
func (c *Connection) UserID() domain.UserID { return c.userID }
func (c *Connection) State() State          { return State(c.state.Load()) }

func (c *Connection) setState(s State) { c.state.Store(int32(s)) }

// goLive moves CatchingUp to Live. Fails when the connection
// overflowed or closed in between, so a dead connection is never
// handed out as live.
func (c *Connection) goLive() bool {
	return c.state.CompareAndSwap(int32(StateCatchingUp), int32(StateLive))
}

// Enqueue never blocks. A full queue overflows this connection only:
// it is dropped and must reconnect, while delivery to every other
// recipient proceeds untouched.
func (c *Connection) Enqueue(e event.ChangeEvent) error {
	switch c.State() {
	case StateCatchingUp, StateLive:
	default:
		return errors.ErrConnectionClosed
	}

	select {
	case c.out <- e:
		return nil
	default:
		c.setState(StateOverflowed)
		c.log.Warn("Outbound queue full, dropping connection",
			"connection", c.id, "user", c.userID, "queue", cap(c.out))
		c.Close()
		return errors.ErrConsumerOverflow
	}
}

// Close detaches the connection. Idempotent; also invoked on overflow.
func (c *Connection) Close() {
	c.once.Do(func() {
		if c.State() != StateOverflowed {
			c.setState(StateDisconnected)
		}
		close(c.closed)
		if c.onDrop != nil {
			c.onDrop(c.id)
		}
	})
}

// Pump drains the outbound queue towards the gateway until the
// connection or ctx ends. Started once the connection goes Live;
// everything enqueued during catch-up is replayed here, with the
// duplicate filter discarding what catch-up already pushed.
func (c *Connection) Pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case <-c.closed:
			return
		case e := <-c.out:
			if err := c.deliver(ctx, e); err != nil {
				c.log.Warn("Push failed, dropping connection",
					"connection", c.id, "user", c.userID, "error", err)
				c.Close()
				return
			}
		}
	}
}

// deliver pushes one event unless its seq was already sent for that
// chat. Stable event ids plus this filter make redelivery harmless.
func (c *Connection) deliver(ctx context.Context, e event.ChangeEvent) error {
	c.mu.Lock()
	if e.Seq <= c.lastSent[e.ChatID] {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.pusher.Push(ctx, c.id, e); err != nil {
		return err
	}

	c.mu.Lock()
	c.lastSent[e.ChatID] = e.Seq
	c.mu.Unlock()
	return nil
}

// LastSent reports the newest sequence pushed for a chat, zero when
// nothing was sent yet.
func (c *Connection) LastSent(chatID domain.ChatID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSent[chatID]
}
