// Package event defines the events the real-time layer emits.
// Domain events flow to connected clients and permanent sinks;
// technical events feed telemetry only.
package event

import (
	"encoding/json"
	"time"

	"wavelength/domain/chat"
)

type Kind string

const (
	KindMessageNew     Kind = "message:new"
	KindUserTyping     Kind = "user:typing"
	KindUserStopTyping Kind = "user:stopTyping"
	KindUserOnline     Kind = "user:online"
	KindUserOffline    Kind = "user:offline"
	KindOnlineSnapshot Kind = "users:online"
)

type DomainEvent interface {
	EventKind() Kind
}

// MessageRelayed carries an already-durably-written message to live room
// members. The payload stays opaque to the relay; only the durable write
// path ever inspects message content.
type MessageRelayed struct {
	ConversationID chat.ConversationID
	SenderID       string
	Payload        json.RawMessage
	At             time.Time
}

func (m MessageRelayed) EventKind() Kind { return KindMessageNew }

type TypingStarted struct {
	ConversationID chat.ConversationID
	UserID         string
	DisplayName    string
}

func (t TypingStarted) EventKind() Kind { return KindUserTyping }

type TypingStopped struct {
	ConversationID chat.ConversationID
	UserID         string
	DisplayName    string
}

func (t TypingStopped) EventKind() Kind { return KindUserStopTyping }

type UserOnline struct {
	UserID string
}

func (u UserOnline) EventKind() Kind { return KindUserOnline }

type UserOffline struct {
	UserID string
}

func (u UserOffline) EventKind() Kind { return KindUserOffline }

// OnlineSnapshot hydrates a newly connected client with the current
// online user set.
type OnlineSnapshot struct {
	UserIDs []string
}

func (o OnlineSnapshot) EventKind() Kind { return KindOnlineSnapshot }
