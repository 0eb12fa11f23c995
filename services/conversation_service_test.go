package services_test

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"wavelength/domain/chat"
	"wavelength/mocks"
	"wavelength/services"
)

func setupConversationService(t *testing.T) (*services.ConversationService, *mocks.MockIConversationRepository) {
	ctrl := gomock.NewController(t)
	conversations := mocks.NewMockIConversationRepository(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return services.NewConversationService(log, conversations), conversations
}

func TestCreateConversation_DirectDedup(t *testing.T) {
	req := require.New(t)
	service, conversations := setupConversationService(t)

	existing := chat.Conversation{ID: "existing-direct", Type: chat.Direct}
	conversations.EXPECT().FindDirect("alice", "bob").Return(&existing, nil)
	// No CreateConversation expectation: asking twice must not create a twin

	got, err := service.Create(chat.CreateConversationCommand{
		CreatorID: "alice",
		MemberIDs: []string{"bob"},
	})
	req.NoError(err)
	req.Equal(existing.ID, got.ID)
}

func TestCreateConversation_GroupAssignsCreatorAdmin(t *testing.T) {
	req := require.New(t)
	service, conversations := setupConversationService(t)

	var createdMembers []chat.Member
	conversations.EXPECT().CreateConversation(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ chat.Conversation, members []chat.Member) error {
			createdMembers = members
			return nil
		})

	got, err := service.Create(chat.CreateConversationCommand{
		CreatorID: "alice",
		MemberIDs: []string{"bob", "carol"},
		Name:      "weekend plans",
	})
	req.NoError(err)
	req.Equal(chat.Group, got.Type)
	req.Equal(3, got.MemberCount)

	req.Len(createdMembers, 3)
	roles := map[string]chat.Role{}
	for _, member := range createdMembers {
		roles[member.UserID] = member.Role
	}
	req.Equal(chat.RoleAdmin, roles["alice"])
	req.Equal(chat.RoleMember, roles["bob"])
}

func TestCreateConversation_DuplicateMemberIDsCollapsed(t *testing.T) {
	req := require.New(t)
	service, conversations := setupConversationService(t)

	conversations.EXPECT().FindDirect("alice", "bob").Return(nil, nil)
	conversations.EXPECT().CreateConversation(gomock.Any(), gomock.Any()).
		DoAndReturn(func(conversation chat.Conversation, members []chat.Member) error {
			req.Len(members, 2)
			return nil
		})

	// Creator also listed in MemberIDs, plus a repeated entry
	got, err := service.Create(chat.CreateConversationCommand{
		CreatorID: "alice",
		MemberIDs: []string{"alice", "bob", "bob"},
	})
	req.NoError(err)
	req.Equal(chat.Direct, got.Type)
}

func TestListFor_UnreadFlag(t *testing.T) {
	req := require.New(t)
	service, conversations := setupConversationService(t)

	read := chat.Conversation{ID: "conv-read", LastMessageID: "m-5"}
	unread := chat.Conversation{ID: "conv-unread", LastMessageID: "m-9"}
	empty := chat.Conversation{ID: "conv-empty"}

	conversations.EXPECT().ListConversationsOf("alice").
		Return([]chat.Conversation{read, unread, empty}, nil)
	conversations.EXPECT().GetMember(chat.ConversationID("conv-read"), "alice").
		Return(chat.Member{UserID: "alice", LastReadMessageID: "m-5"}, nil)
	conversations.EXPECT().GetMember(chat.ConversationID("conv-unread"), "alice").
		Return(chat.Member{UserID: "alice", LastReadMessageID: "m-7"}, nil)
	conversations.EXPECT().GetMember(chat.ConversationID("conv-empty"), "alice").
		Return(chat.Member{UserID: "alice"}, nil)

	summaries, err := service.ListFor("alice")
	req.NoError(err)
	req.Len(summaries, 3)

	unreadByID := map[chat.ConversationID]bool{}
	for _, summary := range summaries {
		unreadByID[summary.ID] = summary.Unread
	}
	req.False(unreadByID["conv-read"])
	req.True(unreadByID["conv-unread"])
	// A conversation with no messages yet is never unread
	req.False(unreadByID["conv-empty"])
}
