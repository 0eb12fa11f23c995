//go:generate go run go.uber.org/mock/mockgen -source=conversation_service.go -destination=../mocks/mock_conversation_service.go -package=mocks
package services

import (
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"wavelength/domain/chat"
	"wavelength/infrastructure/storage"
)

// ConversationSummary is a conversation augmented with the caller's
// read state, the shape the conversation list endpoint returns.
type ConversationSummary struct {
	chat.Conversation
	Unread bool `json:"unread"`
}

type IConversationService interface {
	Create(cmd chat.CreateConversationCommand) (chat.Conversation, error)
	ListFor(userID string) ([]ConversationSummary, error)
	Members(conversationID chat.ConversationID, userID string) ([]chat.Member, error)
}

type ConversationService struct {
	log           *slog.Logger
	validate      *validator.Validate
	conversations storage.IConversationRepository
}

func NewConversationService(log *slog.Logger, conversations storage.IConversationRepository) *ConversationService {
	return &ConversationService{
		log:           log,
		validate:      validator.New(),
		conversations: conversations,
	}
}

// Create builds a conversation with its membership rows. Direct
// conversations are deduplicated: asking for a direct chat that already
// exists returns the existing one instead of creating a twin.
func (s *ConversationService) Create(cmd chat.CreateConversationCommand) (chat.Conversation, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return chat.Conversation{}, err
	}

	memberIDs := lo.Uniq(append([]string{cmd.CreatorID}, cmd.MemberIDs...))

	conversationType := cmd.Type
	if conversationType == "" {
		if len(memberIDs) == 2 {
			conversationType = chat.Direct
		} else {
			conversationType = chat.Group
		}
	}

	if conversationType == chat.Direct && len(memberIDs) == 2 {
		existing, err := s.conversations.FindDirect(memberIDs[0], memberIDs[1])
		if err != nil {
			return chat.Conversation{}, err
		}
		if existing != nil {
			return *existing, nil
		}
	}

	now := time.Now().UTC()
	conversation := chat.Conversation{
		ID:          chat.ConversationID(uuid.NewString()),
		Type:        conversationType,
		Name:        cmd.Name,
		CreatorID:   cmd.CreatorID,
		MemberCount: len(memberIDs),
		CreatedAt:   now,
	}

	members := lo.Map(memberIDs, func(userID string, _ int) chat.Member {
		role := chat.RoleMember
		if userID == cmd.CreatorID && conversationType == chat.Group {
			role = chat.RoleAdmin
		}
		return chat.Member{
			ConversationID: conversation.ID,
			UserID:         userID,
			Role:           role,
			JoinedAt:       now,
		}
	})

	if err := s.conversations.CreateConversation(conversation, members); err != nil {
		return chat.Conversation{}, err
	}
	s.log.Info("conversation created",
		slog.String("conversation_id", string(conversation.ID)),
		slog.String("type", string(conversationType)),
		slog.Int("members", len(members)))
	return conversation, nil
}

// ListFor returns the caller's conversations, flagging the ones with
// messages the caller has not read yet.
func (s *ConversationService) ListFor(userID string) ([]ConversationSummary, error) {
	conversations, err := s.conversations.ListConversationsOf(userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, conversation := range conversations {
		member, err := s.conversations.GetMember(conversation.ID, userID)
		if err != nil {
			// The reverse index can outlive a membership the user gave up.
			continue
		}
		unread := conversation.LastMessageID != "" &&
			conversation.LastMessageID != member.LastReadMessageID
		summaries = append(summaries, ConversationSummary{Conversation: conversation, Unread: unread})
	}
	return summaries, nil
}

// Members lists the active members of a conversation the caller belongs to.
func (s *ConversationService) Members(conversationID chat.ConversationID, userID string) ([]chat.Member, error) {
	if _, err := s.conversations.GetMember(conversationID, userID); err != nil {
		return nil, err
	}
	return s.conversations.ListMembers(conversationID)
}
