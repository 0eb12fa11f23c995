package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"wavelength/auth"
	"wavelength/contract"
	"wavelength/domain/chat"
	wlerrors "wavelength/errors"
	"wavelength/infrastructure/storage"
	"wavelength/observability"
	"wavelength/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated HTTP requests to websocket sessions and
// pumps inbound frames into the coordinator. Message sends go through the
// message service first, so relaying only happens after the durable write;
// room joins are gated on durable conversation membership, so knowing a
// conversation id is never enough to listen in on it.
type Handler struct {
	log           *slog.Logger
	coordinator   contract.ICoordinator
	messages      services.IMessageService
	conversations storage.IConversationRepository
	tokens        *auth.TokenManager
	pingInterval  time.Duration
	readTimeout   time.Duration
	writeTimeout  time.Duration
}

func NewHandler(
	log *slog.Logger,
	coordinator contract.ICoordinator,
	messages services.IMessageService,
	conversations storage.IConversationRepository,
	tokens *auth.TokenManager,
	pingInterval, readTimeout, writeTimeout time.Duration,
) *Handler {
	return &Handler{
		log:           log,
		coordinator:   coordinator,
		messages:      messages,
		conversations: conversations,
		tokens:        tokens,
		pingInterval:  pingInterval,
		readTimeout:   readTimeout,
		writeTimeout:  writeTimeout,
	}
}

// HandleWebSocket authenticates via the "token" query parameter before
// upgrading. Browsers cannot set headers on websocket handshakes, hence
// the query parameter.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		observability.AuthFailures.WithLabelValues("missing_token").Inc()
		http.Error(w, "missing authentication token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.ValidateToken(tokenString)
	if err != nil {
		observability.AuthFailures.WithLabelValues("invalid_token").Inc()
		h.log.Warn("handshake rejected",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		http.Error(w, "invalid authentication token", http.StatusUnauthorized)
		return
	}
	observability.AuthSuccess.Inc()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	connID := uuid.NewString()
	session := NewClientSession(connID, claims.UserID, conn, h.log, h.writeTimeout)
	session.StartPing(h.pingInterval)

	_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	h.coordinator.Connect(connID, claims.UserID, session)
	defer func() {
		h.coordinator.Disconnect(connID)
		_ = session.Close(websocket.CloseNormalClosure, "session ended")
	}()

	h.readLoop(r, session, claims)
}

func (h *Handler) readLoop(r *http.Request, session *ClientSession, claims *auth.CustomClaims) {
	for {
		_, raw, err := session.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, net.ErrClosed) {
				h.log.Debug("read error",
					slog.String("conn_id", session.ConnID),
					slog.Any("error", err))
			}
			return
		}
		_ = session.conn.SetReadDeadline(time.Now().Add(h.readTimeout))

		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			h.writeError(session, wlerrors.ErrInvalidPayload)
			continue
		}
		if err := h.dispatch(r, session, claims, envelope); err != nil {
			h.writeError(session, err)
		}
	}
}

func (h *Handler) dispatch(r *http.Request, session *ClientSession, claims *auth.CustomClaims, envelope Envelope) error {
	switch envelope.Event {
	case EventConversationJoin:
		var payload ConversationPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.ConversationID == "" {
			return wlerrors.ErrInvalidPayload
		}
		conversationID := chat.ConversationID(payload.ConversationID)
		if _, err := h.conversations.GetMember(conversationID, claims.UserID); err != nil {
			return err
		}
		h.coordinator.Join(session.ConnID, conversationID)
		return nil

	case EventConversationLeave:
		var payload ConversationPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.ConversationID == "" {
			return wlerrors.ErrInvalidPayload
		}
		h.coordinator.Leave(session.ConnID, chat.ConversationID(payload.ConversationID))
		return nil

	case EventTypingStart:
		var payload ConversationPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.ConversationID == "" {
			return wlerrors.ErrInvalidPayload
		}
		h.coordinator.StartTyping(chat.ConversationID(payload.ConversationID), claims.UserID, claims.DisplayName)
		return nil

	case EventTypingStop:
		var payload ConversationPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.ConversationID == "" {
			return wlerrors.ErrInvalidPayload
		}
		h.coordinator.StopTyping(chat.ConversationID(payload.ConversationID), claims.UserID)
		return nil

	case EventMessageSend:
		var payload SendMessagePayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return wlerrors.ErrInvalidPayload
		}
		cmd := chat.SendMessageCommand{
			ConversationID:   payload.ConversationID,
			SenderID:         claims.UserID,
			Content:          payload.Content,
			Type:             chat.MessageType(payload.Type),
			ReplyToMessageID: payload.ReplyToMessageID,
		}
		sender := chat.Sender{
			ID:          claims.UserID,
			Username:    claims.Username,
			DisplayName: claims.DisplayName,
		}
		_, err := h.messages.SendMessage(r.Context(), cmd, sender)
		return err

	default:
		return wlerrors.ErrUnknownEvent
	}
}

func (h *Handler) writeError(session *ClientSession, err error) {
	raw, marshalErr := json.Marshal(ErrorPayload{Message: err.Error()})
	if marshalErr != nil {
		return
	}
	if writeErr := session.SafeWriteJSON(Envelope{Event: EventError, Data: raw}); writeErr != nil {
		h.log.Debug("failed to report error to client",
			slog.String("conn_id", session.ConnID),
			slog.Any("error", writeErr))
	}
}
