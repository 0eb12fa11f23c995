package storage

import (
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"wavelength/domain/chat"
)

// SetupTestDB initializes a temporary Badger instance for testing
func SetupTestDB(t *testing.T) (*badger.DB, func()) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)

	return db, func() {
		_ = db.Close()
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newMessage(conversationID chat.ConversationID, content string, at time.Time) chat.Message {
	return chat.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Sender:         chat.Sender{ID: "alice", Username: "alice", DisplayName: "Alice"},
		Content:        content,
		Type:           chat.TypeText,
		CreatedAt:      at,
	}
}

func TestMessageRepository_StoreAndReadBack(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	repo := NewMessageRepository(db, testLogger())

	message := newMessage("room-1", "hello", time.Now().UTC())
	req.NoError(repo.StoreMessage(message))

	messages, cursor, err := repo.GetMessages("room-1", nil, 10)
	req.NoError(err)
	req.Nil(cursor)
	req.Len(messages, 1)
	req.Equal(message.ID, messages[0].ID)
	req.Equal("hello", messages[0].Content)
}

func TestMessageRepository_NewestFirstOrdering(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	repo := NewMessageRepository(db, testLogger())

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		msg := newMessage("room-1", fmt.Sprintf("message-%d", i), base.Add(time.Duration(i)*time.Second))
		req.NoError(repo.StoreMessage(msg))
	}

	messages, _, err := repo.GetMessages("room-1", nil, 10)
	req.NoError(err)
	req.Len(messages, 5)
	req.Equal("message-4", messages[0].Content)
	req.Equal("message-0", messages[4].Content)
}

func TestMessageRepository_CursorPagination(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	repo := NewMessageRepository(db, testLogger())

	base := time.Now().UTC()
	for i := 0; i < 7; i++ {
		msg := newMessage("room-1", fmt.Sprintf("message-%d", i), base.Add(time.Duration(i)*time.Second))
		req.NoError(repo.StoreMessage(msg))
	}

	// First page: newest three, with a cursor to continue
	page1, cursor, err := repo.GetMessages("room-1", nil, 3)
	req.NoError(err)
	req.NotNil(cursor)
	req.Len(page1, 3)
	req.Equal("message-6", page1[0].Content)
	req.Equal("message-4", page1[2].Content)

	// Second page resumes right after the previous one
	page2, cursor, err := repo.GetMessages("room-1", cursor, 3)
	req.NoError(err)
	req.NotNil(cursor)
	req.Len(page2, 3)
	req.Equal("message-3", page2[0].Content)
	req.Equal("message-1", page2[2].Content)

	// Final page has no next cursor
	page3, cursor, err := repo.GetMessages("room-1", cursor, 3)
	req.NoError(err)
	req.Nil(cursor)
	req.Len(page3, 1)
	req.Equal("message-0", page3[0].Content)
}

func TestMessageRepository_ConversationsAreIsolated(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	repo := NewMessageRepository(db, testLogger())

	req.NoError(repo.StoreMessage(newMessage("room-1", "for room one", time.Now().UTC())))
	req.NoError(repo.StoreMessage(newMessage("room-2", "for room two", time.Now().UTC())))

	messages, _, err := repo.GetMessages("room-1", nil, 10)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("for room one", messages[0].Content)
}
