package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-notify/auth"
	"chat-notify/contract"
	"chat-notify/domain"
	"chat-notify/domain/event"
	"chat-notify/errors"
	"chat-notify/observability"
	"chat-notify/repositories"
	"chat-notify/runtime/workers"
)

// Options sizes the engine. Everything has a working default via the
// config layer; zero values here are a programming error.
type Options struct {
	Shards            int
	ShardBuffer       int
	OutboundQueueSize int
	TailBatchSize     int
	PollInterval      time.Duration
	SinkTimeout       time.Duration
	CatchupTimeout    time.Duration
	RetentionWindow   time.Duration
	RetentionInterval time.Duration
	TelemetryInterval time.Duration
}

// Engine owns the live half of the notification pipeline: it tails the
// change log, fans events out to subscribed connections and serves
// catch-up to reconnecting clients. Mutations never go through the
// engine; they go through the repositories, which append to the log
// the engine tails.
type Engine struct {
	mu         sync.Mutex
	log        *slog.Logger
	events     *repositories.EventLog
	chats      contract.IMemberDirectory
	registry   *Registry
	catchup    *CatchupReader
	tokens     *auth.TokenManager
	supervisor contract.ISupervisor
	stats      *observability.NotifyStats
	sinks      []contract.EventSink
	opts       Options

	runCtx context.Context
}

func NewEngine(events *repositories.EventLog, chats contract.IMemberDirectory,
	tokens *auth.TokenManager, supervisor contract.ISupervisor, opts Options, log *slog.Logger) *Engine {
	registry := NewRegistry()
	return &Engine{
		log:        log,
		events:     events,
		chats:      chats,
		registry:   registry,
		catchup:    NewCatchupReader(events, chats, log),
		tokens:     tokens,
		supervisor: supervisor,
		stats:      &observability.NotifyStats{},
		opts:       opts,
	}
}

// Add registers permanent sinks fed with every dispatched event.
// Must be called before Start.
func (e *Engine) Add(sinks ...contract.EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, sinks...)
}

func (e *Engine) Registry() contract.IRegistry      { return e.registry }
func (e *Engine) Stats() *observability.NotifyStats { return e.stats }

// Start builds the worker set and runs it under supervision. It blocks
// until ctx is canceled or Stop is called. Live dispatch begins at the
// current durable head; older history stays reachable through catch-up.
func (e *Engine) Start(ctx context.Context) error {
	head, err := e.events.Head()
	if err != nil {
		return err
	}

	shards := make([]chan event.ChangeEvent, e.opts.Shards)
	for i := range shards {
		shards[i] = make(chan event.ChangeEvent, e.opts.ShardBuffer)
	}

	e.mu.Lock()
	e.runCtx = ctx
	e.supervisor.Add(workers.NewTailer(
		e.events, e.events.WakeCh(), shards, head,
		e.opts.TailBatchSize, e.opts.PollInterval, e.log))
	for _, shard := range shards {
		e.supervisor.Add(workers.NewDispatch(
			shard, e.registry, e.sinks, e.opts.SinkTimeout, e.stats, e.log))
	}
	e.supervisor.Add(workers.NewRetention(
		e.events, e.opts.RetentionWindow, e.opts.RetentionInterval, e.log))
	e.supervisor.Add(workers.NewTelemetry(
		e.stats, e.registry, e.opts.TelemetryInterval, e.log))
	e.mu.Unlock()

	e.log.Info("Starting notification engine",
		"shards", e.opts.Shards, "head", head)
	e.supervisor.Run(ctx)
	return nil
}

func (e *Engine) Stop() {
	e.log.Info("Requesting engine shutdown")
	e.supervisor.Stop()
}

// Connect attaches a client: subscribe first so live events start
// queueing, then replay missed history, then go live. The pump drains
// the queue only after catch-up finished and its duplicate filter
// discards whatever both paths delivered, so the client observes one
// gap-free, duplicate-free sequence per chat for any interleaving.
func (e *Engine) Connect(ctx context.Context, userID domain.UserID,
	lastSeen map[domain.ChatID]uint64, pusher contract.Pusher) (*Connection, error) {

	conn := NewConnection(userID, e.opts.OutboundQueueSize, pusher,
		e.registry.Unsubscribe, e.log)

	// Buffer live events from the instant of subscription: anything
	// newer than the catch-up read lands in the queue, anything older
	// is covered by the read itself.
	conn.setState(StateCatchingUp)
	e.registry.Subscribe(conn)

	catchupCtx, cancel := context.WithTimeout(ctx, e.opts.CatchupTimeout)
	defer cancel()

	e.stats.CatchupReads.Add(1)
	missed, err := e.catchup.CatchUp(catchupCtx, userID, lastSeen)
	if err != nil {
		conn.Close()
		return nil, err
	}
	for _, evt := range missed {
		if err := conn.deliver(catchupCtx, evt); err != nil {
			conn.Close()
			return nil, err
		}
	}

	// Atomic transition: an overflow landing after the catch-up read
	// must fail the connect, not be overwritten by going live.
	if !conn.goLive() {
		if conn.State() == StateOverflowed {
			return nil, errors.ErrConsumerOverflow
		}
		return nil, errors.ErrConnectionClosed
	}

	e.mu.Lock()
	pumpCtx := e.runCtx
	e.mu.Unlock()
	if pumpCtx == nil {
		pumpCtx = ctx
	}
	go conn.Pump(pumpCtx)

	e.log.Debug("Connection live",
		"connection", conn.ID(), "user", userID, "caught_up", len(missed))
	return conn, nil
}

// ConnectWithToken verifies a connection token and attaches the user it
// names. This is the gateway entry point; Connect stays available for
// callers that already authenticated.
func (e *Engine) ConnectWithToken(ctx context.Context, token string,
	lastSeen map[domain.ChatID]uint64, pusher contract.Pusher) (*Connection, error) {

	claims, err := e.tokens.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	return e.Connect(ctx, claims.UserID, lastSeen, pusher)
}

// Disconnect detaches a connection; the gateway calls this when the
// underlying transport closes.
func (e *Engine) Disconnect(conn *Connection) {
	conn.Close()
}
