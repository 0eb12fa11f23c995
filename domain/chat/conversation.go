package chat

import "time"

type ConversationID string

type ConversationType string

const (
	Direct ConversationType = "DIRECT"
	Group  ConversationType = "GROUP"
)

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Conversation is the durable chat entity with fixed membership.
// A Room (the in-memory set of live connections viewing a conversation)
// is a different thing and lives in the runtime package.
type Conversation struct {
	ID            ConversationID `json:"id"`
	Type          ConversationType `json:"type"`
	Name          string         `json:"name,omitempty"`
	CreatorID     string         `json:"creatorId"`
	MemberCount   int            `json:"memberCount"`
	LastMessageID string         `json:"lastMessageId,omitempty"`
	LastMessageAt time.Time      `json:"lastMessageAt"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Member ties a user to a conversation, including their read-state.
// LeftAt is set instead of deleting the row, so history stays attributable.
type Member struct {
	ConversationID    ConversationID `json:"conversationId"`
	UserID            string         `json:"userId"`
	Role              Role           `json:"role"`
	LastReadMessageID string         `json:"lastReadMessageId,omitempty"`
	JoinedAt          time.Time      `json:"joinedAt"`
	LeftAt            *time.Time     `json:"leftAt,omitempty"`
}

func (m Member) Active() bool {
	return m.LeftAt == nil
}
