//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"duochat/domain"
)

// ConnID is the opaque handle of one live connection. It is owned by the
// event bus; nothing else creates or interprets it.
type ConnID string

// EventBus is the abstract pub/sub transport between the server and its
// connected clients. Implementations deliver best effort, in order, to
// currently connected peers only.
type EventBus interface {
	EmitAll(event string, payload any)
	EmitTo(conn ConnID, event string, payload any)
	EmitAllExcept(conn ConnID, event string, payload any)
	// Close force-closes a connection, e.g. after a failed handshake.
	Close(conn ConnID)
}

// ISessionRegistry maps live connections to their bound identity.
type ISessionRegistry interface {
	Register(conn ConnID, identity domain.Identity)
	Unregister(conn ConnID)
	IdentityOf(conn ConnID) (domain.Identity, bool)
	OnlineIdentities() []domain.Identity
}

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
