//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"chat-notify/domain"
	"chat-notify/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink consumes every dispatched event, independently of routing.
// Used for projections and telemetry, never for client delivery.
type EventSink interface {
	Consume(ctx context.Context, e event.ChangeEvent) error
}

// Subscriber is one live client connection as the dispatcher sees it.
// Enqueue never blocks: a full outbound queue returns
// errors.ErrConsumerOverflow and the connection is dropped.
type Subscriber interface {
	ID() uuid.UUID
	UserID() domain.UserID
	Enqueue(e event.ChangeEvent) error
}

type IRegistry interface {
	Subscribe(sub Subscriber)
	Unsubscribe(connectionID uuid.UUID)
	ConnectionsFor(userID domain.UserID) []Subscriber
}

// Pusher is the transport gateway boundary. It serializes the event to
// the end-client's wire protocol; fire and forget from our side.
type Pusher interface {
	Push(ctx context.Context, connectionID uuid.UUID, e event.ChangeEvent) error
}

type IEventLog interface {
	ReadFrom(chatID domain.ChatID, afterSeq uint64, limit int) ([]event.ChangeEvent, error)
	ReadLog(afterGlobalSeq uint64, limit int) ([]event.ChangeEvent, error)
	Head() (uint64, error)
	Horizon(chatID domain.ChatID) (uint64, error)
}

// IMemberDirectory answers which chats a user currently belongs to.
// Backed by the chat repository; used by catch-up only.
type IMemberDirectory interface {
	ChatsOf(userID domain.UserID) ([]domain.ChatID, error)
	Get(chatID domain.ChatID) (domain.Chat, error)
}
