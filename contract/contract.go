//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"encoding/json"
	"reflect"

	"wavelength/domain/chat"
	"wavelength/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// initialization or lifecycle events, avoiding the need for manual naming
// in the Worker interface.
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

// EventSink receives domain events for one consumer: a live websocket
// connection, a projection, or an observability tap.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks live connections, their owners, and the rooms they view.
// All mutation happens through the coordinator; the registry itself never
// broadcasts.
type IRegistry interface {
	Register(connID, userID string, sink EventSink) (first bool)
	Unregister(connID string) (userID string, last bool, rooms []chat.ConversationID, ok bool)
	Join(connID string, conversationID chat.ConversationID) (userID string, firstOfUser, ok bool)
	Leave(connID string, conversationID chat.ConversationID)
	SinksForConversation(conversationID chat.ConversationID) []EventSink
	SinksForConversations(conversationIDs []chat.ConversationID, excludeUserID string) []EventSink
	RoomsOf(connID string) []chat.ConversationID
	RoomsOfUser(userID string) []chat.ConversationID
	ConnectionCount(userID string) int
}

// ICoordinator is the single entry point the transport layer talks to.
// Every method handles one inbound event to completion under a single lock;
// none of them block on I/O while holding coordinator state.
type ICoordinator interface {
	Connect(connID, userID string, sink EventSink)
	Disconnect(connID string)
	Join(connID string, conversationID chat.ConversationID)
	Leave(connID string, conversationID chat.ConversationID)
	StartTyping(conversationID chat.ConversationID, userID, displayName string)
	StopTyping(conversationID chat.ConversationID, userID string)
	Relay(conversationID chat.ConversationID, senderID string, payload json.RawMessage)
	OnlineSnapshot() []string
}
