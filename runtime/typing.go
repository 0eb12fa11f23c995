package runtime

import (
	"sync"
	"time"

	"wavelength/domain/chat"
)

// TypingTable is the Idle -> Typing -> Idle state machine, one state per
// (conversation, user) pair. An entry is created on typing-start, refreshed
// on repeated starts, and removed on stop, expiry, or message send.
type TypingTable struct {
	mu      sync.Mutex
	entries map[chat.ConversationID]map[string]chat.TypingEntry
}

func NewTypingTable() *TypingTable {
	return &TypingTable{entries: make(map[chat.ConversationID]map[string]chat.TypingEntry)}
}

// Start creates or refreshes the entry. started is true only when the pair
// transitioned from Idle to Typing; refreshes report false so the caller
// does not re-broadcast on every keystroke.
func (t *TypingTable) Start(conversationID chat.ConversationID, userID, displayName string, expiresAt time.Time) (started bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	byUser, ok := t.entries[conversationID]
	if !ok {
		byUser = make(map[string]chat.TypingEntry)
		t.entries[conversationID] = byUser
	}
	_, exists := byUser[userID]
	byUser[userID] = chat.TypingEntry{
		ConversationID: conversationID,
		UserID:         userID,
		DisplayName:    displayName,
		ExpiresAt:      expiresAt,
	}
	return !exists
}

// Stop removes the entry if present. stopped reports whether an entry was
// actually removed, so explicit stop stays idempotent.
func (t *TypingTable) Stop(conversationID chat.ConversationID, userID string) (stopped bool, displayName string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	byUser, ok := t.entries[conversationID]
	if !ok {
		return false, ""
	}
	entry, exists := byUser[userID]
	if !exists {
		return false, ""
	}
	delete(byUser, userID)
	if len(byUser) == 0 {
		delete(t.entries, conversationID)
	}
	return true, entry.DisplayName
}

// Expire removes every entry past its deadline and returns them, so the
// caller can broadcast the stop events clients never sent.
func (t *TypingTable) Expire(now time.Time) []chat.TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []chat.TypingEntry
	for conversationID, byUser := range t.entries {
		for userID, entry := range byUser {
			if entry.Expired(now) {
				expired = append(expired, entry)
				delete(byUser, userID)
			}
		}
		if len(byUser) == 0 {
			delete(t.entries, conversationID)
		}
	}
	return expired
}

// DropUser removes all of a user's entries across conversations, returning
// them. Used when the user's last connection disappears.
func (t *TypingTable) DropUser(userID string) []chat.TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var dropped []chat.TypingEntry
	for conversationID, byUser := range t.entries {
		if entry, ok := byUser[userID]; ok {
			dropped = append(dropped, entry)
			delete(byUser, userID)
			if len(byUser) == 0 {
				delete(t.entries, conversationID)
			}
		}
	}
	return dropped
}

// ActiveIn lists the users currently typing in a conversation.
func (t *TypingTable) ActiveIn(conversationID chat.ConversationID) []chat.TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	byUser, ok := t.entries[conversationID]
	if !ok {
		return nil
	}
	entries := make([]chat.TypingEntry, 0, len(byUser))
	for _, entry := range byUser {
		entries = append(entries, entry)
	}
	return entries
}
