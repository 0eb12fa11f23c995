//go:generate go run go.uber.org/mock/mockgen -source=message_service.go -destination=../mocks/mock_message_service.go -package=mocks
package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"wavelength/contract"
	"wavelength/domain/chat"
	"wavelength/infrastructure/storage"
	"wavelength/observability"
)

type IMessageService interface {
	SendMessage(ctx context.Context, cmd chat.SendMessageCommand, sender chat.Sender) (chat.Message, error)
	GetMessages(cmd chat.GetMessagesCommand) ([]chat.Message, *string, error)
	MarkAsRead(cmd chat.MarkReadCommand) error
	Search(ctx context.Context, cmd chat.SearchMessagesCommand) ([]storage.SearchHit, error)
}

// MessageService owns the durable write path. The real-time layer only
// relays a message after this service has confirmed the write; a storage
// failure therefore means nobody receives the message.
type MessageService struct {
	log           *slog.Logger
	validate      *validator.Validate
	messages      storage.IMessageRepository
	conversations storage.IConversationRepository
	index         *storage.SearchIndex
	coordinator   contract.ICoordinator
	monitoring    *observability.MonitoringManager
}

func NewMessageService(
	log *slog.Logger,
	messages storage.IMessageRepository,
	conversations storage.IConversationRepository,
	index *storage.SearchIndex,
	coordinator contract.ICoordinator,
	monitoring *observability.MonitoringManager,
) *MessageService {
	return &MessageService{
		log:           log,
		validate:      validator.New(),
		messages:      messages,
		conversations: conversations,
		index:         index,
		coordinator:   coordinator,
		monitoring:    monitoring,
	}
}

// SendMessage validates, checks membership, persists, updates read state,
// and only then hands the message to the coordinator for fan-out.
func (s *MessageService) SendMessage(ctx context.Context, cmd chat.SendMessageCommand, sender chat.Sender) (chat.Message, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return chat.Message{}, err
	}
	conversationID := cmd.Conversation()

	if _, err := s.conversations.GetMember(conversationID, cmd.SenderID); err != nil {
		return chat.Message{}, err
	}

	messageType := cmd.Type
	if messageType == "" {
		messageType = chat.TypeText
	}

	message := chat.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        cmd.Content,
		Type:           messageType,
		CreatedAt:      time.Now().UTC(),
	}
	if cmd.ReplyToMessageID != "" {
		message.ReplyTo = &chat.ReplyRef{ID: cmd.ReplyToMessageID}
	}

	if err := s.messages.StoreMessage(message); err != nil {
		s.log.Error("message write failed, relay aborted",
			slog.String("conversation_id", string(conversationID)),
			slog.Any("error", err))
		return chat.Message{}, err
	}

	if err := s.conversations.SetLastMessage(conversationID, message.ID.String(), message.CreatedAt); err != nil {
		s.log.Warn("failed to advance conversation last message", slog.Any("error", err))
	}
	// The sender has obviously read their own message.
	if err := s.conversations.SetLastRead(conversationID, cmd.SenderID, message.ID.String()); err != nil {
		s.log.Warn("failed to advance sender read state", slog.Any("error", err))
	}
	if err := s.index.IndexMessage(message); err != nil {
		s.log.Warn("failed to index message", slog.Any("error", err))
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return chat.Message{}, err
	}
	s.coordinator.Relay(conversationID, cmd.SenderID, payload)
	s.monitoring.IncrMessagesRelayed()
	return message, nil
}

func (s *MessageService) GetMessages(cmd chat.GetMessagesCommand) ([]chat.Message, *string, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, nil, err
	}
	conversationID := cmd.Conversation()
	if _, err := s.conversations.GetMember(conversationID, cmd.UserID); err != nil {
		return nil, nil, err
	}
	return s.messages.GetMessages(conversationID, cmd.Cursor, cmd.Limit)
}

func (s *MessageService) MarkAsRead(cmd chat.MarkReadCommand) error {
	if err := s.validate.Struct(cmd); err != nil {
		return err
	}
	return s.conversations.SetLastRead(cmd.Conversation(), cmd.UserID, cmd.MessageID)
}

func (s *MessageService) Search(ctx context.Context, cmd chat.SearchMessagesCommand) ([]storage.SearchHit, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, err
	}
	conversationID := cmd.Conversation()
	if _, err := s.conversations.GetMember(conversationID, cmd.UserID); err != nil {
		return nil, err
	}
	return s.index.Search(ctx, conversationID, cmd.Terms, cmd.Limit)
}
