package chat

import "time"

// TypingEntry marks one user as currently composing in one conversation.
// Its lifetime never exceeds ExpiresAt; refreshing a live entry pushes the
// deadline forward without producing a new broadcast.
type TypingEntry struct {
	ConversationID ConversationID
	UserID         string
	DisplayName    string
	ExpiresAt      time.Time
}

func (t TypingEntry) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
