package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"wavelength/auth"
	"wavelength/domain/chat"
	wlerrors "wavelength/errors"
	"wavelength/mocks"
)

const testSecret = "handler-test-secret"

type handlerFixture struct {
	coordinator   *mocks.MockICoordinator
	messages      *mocks.MockIMessageService
	conversations *mocks.MockIConversationRepository
	server        *httptest.Server
	tokens        *auth.TokenManager
}

func setupHandler(t *testing.T) handlerFixture {
	ctrl := gomock.NewController(t)
	coordinator := mocks.NewMockICoordinator(ctrl)
	messages := mocks.NewMockIMessageService(ctrl)
	conversations := mocks.NewMockIConversationRepository(ctrl)
	tokens := auth.NewTokenManager(testSecret, time.Hour)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(log, coordinator, messages, conversations, tokens,
		time.Minute, time.Minute, time.Second)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	return handlerFixture{
		coordinator:   coordinator,
		messages:      messages,
		conversations: conversations,
		server:        server,
		tokens:        tokens,
	}
}

func (f handlerFixture) dial(t *testing.T, userID string) *websocket.Conn {
	req := require.New(t)
	token, err := f.tokens.GenerateToken(userID, userID, strings.ToUpper(userID))
	req.NoError(err)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHandleWebSocket_MissingTokenRejectedBeforeUpgrade(t *testing.T) {
	req := require.New(t)
	fixture := setupHandler(t)

	url := "ws" + strings.TrimPrefix(fixture.server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)

	req.Error(err)
	req.Equal(401, resp.StatusCode)
}

func TestJoin_NonMemberNeverReachesCoordinator(t *testing.T) {
	req := require.New(t)
	fixture := setupHandler(t)
	fixture.coordinator.EXPECT().Connect(gomock.Any(), "alice", gomock.Any())
	fixture.coordinator.EXPECT().Disconnect(gomock.Any()).AnyTimes()

	// Given alice is authenticated but not a member of room-1
	fixture.conversations.EXPECT().
		GetMember(chat.ConversationID("room-1"), "alice").
		Return(chat.Member{}, wlerrors.ErrNotAMember)
	// No Join expectation: an unauthorized join must never subscribe

	conn := fixture.dial(t, "alice")
	raw, err := json.Marshal(ConversationPayload{ConversationID: "room-1"})
	req.NoError(err)
	req.NoError(conn.WriteJSON(Envelope{Event: EventConversationJoin, Data: raw}))

	// Then the only thing alice gets back is an error envelope
	var envelope Envelope
	req.NoError(conn.ReadJSON(&envelope))
	req.Equal(EventError, envelope.Event)
	var payload ErrorPayload
	req.NoError(json.Unmarshal(envelope.Data, &payload))
	req.Contains(payload.Message, "not a member")
}

func TestJoin_MemberIsSubscribed(t *testing.T) {
	req := require.New(t)
	fixture := setupHandler(t)
	joined := make(chan struct{})
	fixture.coordinator.EXPECT().Connect(gomock.Any(), "alice", gomock.Any())
	fixture.coordinator.EXPECT().Disconnect(gomock.Any()).AnyTimes()
	fixture.conversations.EXPECT().
		GetMember(chat.ConversationID("room-1"), "alice").
		Return(chat.Member{ConversationID: "room-1", UserID: "alice"}, nil)
	fixture.coordinator.EXPECT().
		Join(gomock.Any(), chat.ConversationID("room-1")).
		Do(func(string, chat.ConversationID) { close(joined) })

	conn := fixture.dial(t, "alice")
	raw, err := json.Marshal(ConversationPayload{ConversationID: "room-1"})
	req.NoError(err)
	req.NoError(conn.WriteJSON(Envelope{Event: EventConversationJoin, Data: raw}))

	select {
	case <-joined:
	case <-time.After(2 * time.Second):
		req.Fail("join never reached the coordinator")
	}
}
