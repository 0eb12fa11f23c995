package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"wavelength/domain/event"
)

func TestEncodeDomainEvent_MessagePayloadPassesThroughOpaque(t *testing.T) {
	req := require.New(t)

	raw := json.RawMessage(`{"id":"m1","content":"hi","sender":{"id":"alice"}}`)
	envelope, err := EncodeDomainEvent(event.MessageRelayed{
		ConversationID: "room-1",
		SenderID:       "alice",
		Payload:        raw,
	})

	req.NoError(err)
	req.Equal("message:new", envelope.Event)
	// The relay never re-encodes the message body
	req.JSONEq(string(raw), string(envelope.Data))
}

func TestEncodeDomainEvent_TypingCarriesDisplayName(t *testing.T) {
	req := require.New(t)

	envelope, err := EncodeDomainEvent(event.TypingStarted{
		ConversationID: "room-1",
		UserID:         "alice",
		DisplayName:    "Alice",
	})

	req.NoError(err)
	req.Equal("user:typing", envelope.Event)
	req.JSONEq(`{"conversationId":"room-1","userId":"alice","displayName":"Alice"}`, string(envelope.Data))
}

func TestEncodeDomainEvent_PresenceEvents(t *testing.T) {
	req := require.New(t)

	online, err := EncodeDomainEvent(event.UserOnline{UserID: "bob"})
	req.NoError(err)
	req.Equal("user:online", online.Event)
	req.JSONEq(`{"userId":"bob"}`, string(online.Data))

	snapshot, err := EncodeDomainEvent(event.OnlineSnapshot{UserIDs: []string{"alice", "bob"}})
	req.NoError(err)
	req.Equal("users:online", snapshot.Event)
	req.JSONEq(`{"userIds":["alice","bob"]}`, string(snapshot.Data))
}

func TestEnvelope_InboundRoundTrip(t *testing.T) {
	req := require.New(t)

	frame := []byte(`{"event":"message:send","data":{"conversationId":"room-1","content":"hello"}}`)
	var envelope Envelope
	req.NoError(json.Unmarshal(frame, &envelope))
	req.Equal(EventMessageSend, envelope.Event)

	var payload SendMessagePayload
	req.NoError(json.Unmarshal(envelope.Data, &payload))
	req.Equal("room-1", payload.ConversationID)
	req.Equal("hello", payload.Content)
}
