// Package api exposes the durable chat operations over HTTP JSON. The
// realtime socket carries events; everything request/response shaped
// (history, conversation management, search) lives here.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"wavelength/auth"
	"wavelength/contract"
	"wavelength/domain/chat"
	wlerrors "wavelength/errors"
	"wavelength/infrastructure/storage"
	"wavelength/services"
)

const defaultPageSize = 50

type Server struct {
	log           *slog.Logger
	messages      services.IMessageService
	conversations services.IConversationService
	coordinator   contract.ICoordinator
	presence      storage.IPresenceRepository
	tokens        *auth.TokenManager
	httpServer    *http.Server
}

func NewServer(
	log *slog.Logger,
	messages services.IMessageService,
	conversations services.IConversationService,
	coordinator contract.ICoordinator,
	presence storage.IPresenceRepository,
	tokens *auth.TokenManager,
	port int,
) *Server {
	s := &Server{
		log:           log,
		messages:      messages,
		conversations: conversations,
		coordinator:   coordinator,
		presence:      presence,
		tokens:        tokens,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/conversations", s.authenticated(s.handleCreateConversation))
	mux.HandleFunc("GET /api/conversations", s.authenticated(s.handleListConversations))
	mux.HandleFunc("GET /api/conversations/{id}/members", s.authenticated(s.handleListMembers))
	mux.HandleFunc("POST /api/conversations/{id}/messages", s.authenticated(s.handleSendMessage))
	mux.HandleFunc("GET /api/conversations/{id}/messages", s.authenticated(s.handleGetMessages))
	mux.HandleFunc("POST /api/conversations/{id}/read", s.authenticated(s.handleMarkRead))
	mux.HandleFunc("GET /api/conversations/{id}/search", s.authenticated(s.handleSearch))
	mux.HandleFunc("GET /api/users/{id}/presence", s.authenticated(s.handleUserPresence))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error {
	s.log.Info("http api listening", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type authedHandler func(w http.ResponseWriter, r *http.Request, claims *auth.CustomClaims)

// authenticated enforces a Bearer token and hands validated claims to the
// wrapped handler.
func (s *Server) authenticated(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			s.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		claims, err := s.tokens.ValidateToken(tokenString)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		next(w, r, claims)
	}
}

type createConversationRequest struct {
	Type      string   `json:"type"`
	MemberIDs []string `json:"memberIds"`
	Name      string   `json:"name"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request, claims *auth.CustomClaims) {
	var request createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, wlerrors.ErrInvalidPayload)
		return
	}
	conversation, err := s.conversations.Create(chat.CreateConversationCommand{
		Type:      chat.ConversationType(request.Type),
		CreatorID: claims.UserID,
		MemberIDs: request.MemberIDs,
		Name:      request.Name,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, conversation)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request, claims *auth.CustomClaims) {
	summaries, err := s.conversations.ListFor(claims.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversations": summaries})
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request, claims *auth.CustomClaims) {
	conversationID := chat.ConversationID(r.PathValue("id"))
	members, err := s.conversations.Members(conversationID, claims.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

type sendMessageRequest struct {
	Content          string `json:"content"`
	Type             string `json:"type"`
	ReplyToMessageID string `json:"replyToMessageId"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, claims *auth.CustomClaims) {
	var request sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, wlerrors.ErrInvalidPayload)
		return
	}
	cmd := chat.SendMessageCommand{
		ConversationID:   r.PathValue("id"),
		SenderID:         claims.UserID,
		Content:          request.Content,
		Type:             chat.MessageType(request.Type),
		ReplyToMessageID: request.ReplyToMessageID,
	}
	sender := chat.Sender{
		ID:          claims.UserID,
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
	}
	message, err := s.messages.SendMessage(r.Context(), cmd, sender)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, message)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request, claims *auth.CustomClaims) {
	cmd := chat.GetMessagesCommand{
		ConversationID: r.PathValue("id"),
		UserID:         claims.UserID,
		Limit:          queryLimit(r, defaultPageSize),
	}
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		cmd.Cursor = &cursor
	}
	messages, nextCursor, err := s.messages.GetMessages(cmd)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	response := map[string]any{"messages": messages}
	if nextCursor != nil {
		response["nextCursor"] = *nextCursor
	}
	s.writeJSON(w, http.StatusOK, response)
}

type markReadRequest struct {
	MessageID string `json:"messageId"`
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, claims *auth.CustomClaims) {
	var request markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, wlerrors.ErrInvalidPayload)
		return
	}
	err := s.messages.MarkAsRead(chat.MarkReadCommand{
		ConversationID: r.PathValue("id"),
		UserID:         claims.UserID,
		MessageID:      request.MessageID,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, claims *auth.CustomClaims) {
	hits, err := s.messages.Search(r.Context(), chat.SearchMessagesCommand{
		UserID:         claims.UserID,
		ConversationID: r.PathValue("id"),
		Terms:          r.URL.Query().Get("q"),
		Limit:          queryLimit(r, 20),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

// handleUserPresence reports live online status plus the journaled
// last-seen timestamp for one user.
func (s *Server) handleUserPresence(w http.ResponseWriter, r *http.Request, _ *auth.CustomClaims) {
	userID := r.PathValue("id")

	online := false
	for _, id := range s.coordinator.OnlineSnapshot() {
		if id == userID {
			online = true
			break
		}
	}

	response := map[string]any{"userId": userID, "online": online}
	lastSeen, found, err := s.presence.GetLastSeen(userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if found {
		response["lastSeenAt"] = lastSeen.Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, response)
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return limit
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("failed to encode response", slog.Any("error", err))
	}
}

// writeDomainError maps service errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, wlerrors.ErrNotAMember):
		s.writeError(w, http.StatusForbidden, err)
	case errors.Is(err, wlerrors.ErrConversationMissing), errors.Is(err, wlerrors.ErrMessageMissing):
		s.writeError(w, http.StatusNotFound, err)
	case errors.As(err, &validationErrors), errors.Is(err, wlerrors.ErrInvalidPayload), errors.Is(err, wlerrors.ErrEmptyContent):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		s.log.Error("request failed", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
