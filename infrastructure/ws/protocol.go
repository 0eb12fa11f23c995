// Package ws is the socket transport: one JSON envelope per frame,
// tagged with an event name the browser client switches on.
package ws

import (
	"encoding/json"
	"fmt"

	"wavelength/domain/event"
)

// Inbound event names, sent by clients.
const (
	EventConversationJoin  = "conversation:join"
	EventConversationLeave = "conversation:leave"
	EventTypingStart       = "typing:start"
	EventTypingStop        = "typing:stop"
	EventMessageSend       = "message:send"
)

const EventError = "error"

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type SendMessagePayload struct {
	ConversationID   string `json:"conversationId"`
	Content          string `json:"content"`
	Type             string `json:"type,omitempty"`
	ReplyToMessageID string `json:"replyToMessageId,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type typingData struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	DisplayName    string `json:"displayName,omitempty"`
}

type presenceData struct {
	UserID string `json:"userId"`
}

type snapshotData struct {
	UserIDs []string `json:"userIds"`
}

// EncodeDomainEvent turns a domain event into its outbound wire frame.
func EncodeDomainEvent(e event.DomainEvent) (Envelope, error) {
	var data any
	switch evt := e.(type) {
	case event.MessageRelayed:
		return Envelope{Event: string(evt.EventKind()), Data: evt.Payload}, nil
	case event.TypingStarted:
		data = typingData{
			ConversationID: string(evt.ConversationID),
			UserID:         evt.UserID,
			DisplayName:    evt.DisplayName,
		}
	case event.TypingStopped:
		data = typingData{
			ConversationID: string(evt.ConversationID),
			UserID:         evt.UserID,
			DisplayName:    evt.DisplayName,
		}
	case event.UserOnline:
		data = presenceData{UserID: evt.UserID}
	case event.UserOffline:
		data = presenceData{UserID: evt.UserID}
	case event.OnlineSnapshot:
		data = snapshotData{UserIDs: evt.UserIDs}
	default:
		return Envelope{}, fmt.Errorf("no wire encoding for event %q", e.EventKind())
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: string(e.EventKind()), Data: raw}, nil
}
