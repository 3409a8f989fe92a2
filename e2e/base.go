package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"chat-notify/auth"
	"chat-notify/domain"
	"chat-notify/domain/event"
	"chat-notify/projection"
	"chat-notify/repositories"
	"chat-notify/runtime"
	"chat-notify/runtime/workers"
	"chat-notify/services"
)

// BaseEngineSuite boots the whole stack in-process: store, services,
// search projection and the running engine. Scenario suites embed it.
type BaseEngineSuite struct {
	suite.Suite
	Config Config

	db     *badger.DB
	writer *bluge.Writer
	cancel context.CancelFunc

	EventLog *repositories.EventLog
	Users    *repositories.UserRepository
	Chats    *repositories.ChatRepository
	Search   *projection.SearchIndex
	Auth     *services.AuthService
	ChatSvc  *services.ChatService
	Engine   *runtime.Engine
}

func (s *BaseEngineSuite) SetupSuite() {
	cfg, err := LoadConfig()
	s.Require().NoError(err)
	s.Config = cfg

	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
	s.db = db

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(s.T().TempDir()))
	s.Require().NoError(err)
	s.writer = writer

	s.EventLog = repositories.NewEventLog(db, log)
	s.Users = repositories.NewUserRepository(db, log)
	s.Chats = repositories.NewChatRepository(db, s.EventLog, log)
	messages := repositories.NewMessageRepository(db, s.EventLog, log, nil)
	s.Require().NoError(s.Users.EnsureDefaults())

	tokens := auth.NewTokenManager("e2e-secret", time.Hour)
	s.Auth = services.NewAuthService(s.Users, tokens, log)
	s.ChatSvc = services.NewChatService(s.Chats, messages, s.Users, log)
	s.Search = projection.NewSearchIndex(writer, log)

	s.Engine = runtime.NewEngine(s.EventLog, s.Chats, tokens, workers.NewSupervisor(log), runtime.Options{
		Shards:            cfg.DispatchShards,
		ShardBuffer:       64,
		OutboundQueueSize: cfg.OutboundQueueSize,
		TailBatchSize:     32,
		PollInterval:      cfg.PollInterval,
		SinkTimeout:       time.Second,
		CatchupTimeout:    5 * time.Second,
		RetentionWindow:   time.Hour,
		RetentionInterval: time.Hour,
		TelemetryInterval: time.Hour,
	}, log)
	s.Engine.Add(s.Search)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		_ = s.Engine.Start(ctx)
	}()
	time.Sleep(100 * time.Millisecond)
}

func (s *BaseEngineSuite) TearDownSuite() {
	s.Engine.Stop()
	s.cancel()
	_ = s.writer.Close()
	_ = s.db.Close()
}

// Client couples a connection with the channel its pushes land on.
type Client struct {
	Conn   *runtime.Connection
	Events chan event.ChangeEvent
}

type channelPusher struct {
	events chan event.ChangeEvent
	debug  bool
}

func (p *channelPusher) Push(_ context.Context, _ uuid.UUID, e event.ChangeEvent) error {
	if p.debug {
		fmt.Printf("pushed: chat=%d seq=%d kind=%s\n", e.ChatID, e.Seq, e.Kind)
	}
	p.events <- e
	return nil
}

// ConnectClient attaches a live client for the user, replaying history
// after the given per-chat positions first.
func (s *BaseEngineSuite) ConnectClient(userID domain.UserID, lastSeen map[domain.ChatID]uint64) *Client {
	events := make(chan event.ChangeEvent, 128)
	conn, err := s.Engine.Connect(context.Background(),
		userID, lastSeen, &channelPusher{events: events, debug: s.Config.DebugEvents})
	s.Require().NoError(err)
	return &Client{Conn: conn, Events: events}
}

// WaitEvent blocks until the client receives an event of the kind.
func (s *BaseEngineSuite) WaitEvent(client *Client, kind event.Kind) event.ChangeEvent {
	deadline := time.After(s.Config.DeliveryTimeout)
	for {
		select {
		case e := <-client.Events:
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			s.Require().Failf("event never arrived", "kind %s", kind)
			return event.ChangeEvent{}
		}
	}
}

// NextEvent blocks until the client receives any event.
func (s *BaseEngineSuite) NextEvent(client *Client) event.ChangeEvent {
	select {
	case e := <-client.Events:
		return e
	case <-time.After(s.Config.DeliveryTimeout):
		s.Require().Fail("no event arrived")
		return event.ChangeEvent{}
	}
}

// ExpectSilence asserts the client receives nothing for a short while.
func (s *BaseEngineSuite) ExpectSilence(client *Client) {
	select {
	case e := <-client.Events:
		s.Require().Failf("unexpected delivery", "chat=%d seq=%d kind=%s", e.ChatID, e.Seq, e.Kind)
	case <-time.After(200 * time.Millisecond):
	}
}
