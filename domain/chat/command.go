package chat

type Command interface {
	Conversation() ConversationID
}

// SendMessageCommand is the durable write request. Validation tags are
// enforced by the service layer before anything touches storage.
type SendMessageCommand struct {
	ConversationID   string      `validate:"required"`
	SenderID         string      `validate:"required"`
	Content          string      `validate:"required,max=5000"`
	Type             MessageType `validate:"omitempty,oneof=TEXT IMAGE VIDEO FILE AUDIO SYSTEM EMOJI REPLY"`
	ReplyToMessageID string
}

func (c SendMessageCommand) Conversation() ConversationID {
	return ConversationID(c.ConversationID)
}

type GetMessagesCommand struct {
	ConversationID string `validate:"required"`
	UserID         string `validate:"required"`
	Cursor         *string
	Limit          int `validate:"min=1,max=50"`
}

func (c GetMessagesCommand) Conversation() ConversationID {
	return ConversationID(c.ConversationID)
}

type MarkReadCommand struct {
	ConversationID string `validate:"required"`
	UserID         string `validate:"required"`
	MessageID      string `validate:"required"`
}

func (c MarkReadCommand) Conversation() ConversationID {
	return ConversationID(c.ConversationID)
}

type CreateConversationCommand struct {
	Type      ConversationType `validate:"omitempty,oneof=DIRECT GROUP"`
	CreatorID string           `validate:"required"`
	MemberIDs []string         `validate:"min=1"`
	Name      string           `validate:"max=100"`
}

func (c CreateConversationCommand) Conversation() ConversationID {
	return ""
}

type SearchMessagesCommand struct {
	UserID         string `validate:"required"`
	ConversationID string `validate:"required"`
	Terms          string `validate:"required"`
	Limit          int    `validate:"min=1,max=50"`
}

func (c SearchMessagesCommand) Conversation() ConversationID {
	return ConversationID(c.ConversationID)
}
