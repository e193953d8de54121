//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"direct-chat/domain"
	"direct-chat/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName returns the type name of the worker for logging.
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

// EventSink is the handle of one live connection.
// Emit must not block the caller for long: slow connections drop frames.
type EventSink interface {
	ID() string
	Emit(name event.Name, payload any) error
}

// PresenceEntry binds an online user to its live connection.
type PresenceEntry struct {
	UserID string
	Sink   EventSink
	Info   domain.DisplayInfo
}

type IPresenceRegistry interface {
	Join(userID string, sink EventSink, info domain.DisplayInfo) (PresenceEntry, bool)
	Leave(handle string) (PresenceEntry, bool)
	Lookup(userID string) (EventSink, bool)
	Snapshot() []domain.DisplayInfo
	SetStatus(userID, status string) (domain.DisplayInfo, bool)
	SetStatusFor(handle, status string) (domain.DisplayInfo, bool)
	Count() int
}

// IUserDirectory resolves display information for an authenticated user.
type IUserDirectory interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}
