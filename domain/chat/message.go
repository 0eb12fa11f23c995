// Package chat contains core concepts of the conversation system.
// This file defines Message entities and related rules.
// No runtime, network, or UI logic should be added here.
package chat

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	TypeText   MessageType = "TEXT"
	TypeImage  MessageType = "IMAGE"
	TypeVideo  MessageType = "VIDEO"
	TypeFile   MessageType = "FILE"
	TypeAudio  MessageType = "AUDIO"
	TypeSystem MessageType = "SYSTEM"
	TypeEmoji  MessageType = "EMOJI"
	TypeReply  MessageType = "REPLY"
)

// Sender is the denormalized author view carried with every message,
// so receiving clients can render without an extra profile lookup.
type Sender struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// ReplyRef points at the message being replied to.
type ReplyRef struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Sender  Sender `json:"sender"`
}

// Message represents an immutable chat event. The real-time layer forwards
// messages as opaque payloads; only the durable write path builds them.
type Message struct {
	ID             uuid.UUID      `json:"id"`
	ConversationID ConversationID `json:"conversationId"`
	Sender         Sender         `json:"sender"`
	Content        string         `json:"content"`
	Type           MessageType    `json:"type"`
	ReplyTo        *ReplyRef      `json:"replyTo,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}
