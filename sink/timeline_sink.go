// Package sink contains permanent event consumers fed by the fan-out
// worker, as opposed to websocket sessions which come and go.
package sink

import (
	"context"
	"encoding/json"
	"sync"

	"wavelength/domain/chat"
	"wavelength/domain/event"
)

// Timeline keeps an in-memory per-conversation view of relayed messages.
// It backs the terminal client display and gives tests a black-box way to
// observe what actually got delivered.
type Timeline struct {
	mu       sync.Mutex
	messages map[chat.ConversationID][]chat.Message
}

func NewTimeline() *Timeline {
	return &Timeline{messages: make(map[chat.ConversationID][]chat.Message)}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.MessageRelayed)
	if !ok {
		return nil
	}
	var message chat.Message
	if err := json.Unmarshal(evt.Payload, &message); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages[evt.ConversationID] = append(t.messages[evt.ConversationID], message)
	return nil
}

// MessagesIn returns a copy of the timeline for one conversation.
func (t *Timeline) MessagesIn(conversationID chat.ConversationID) []chat.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]chat.Message(nil), t.messages[conversationID]...)
}
