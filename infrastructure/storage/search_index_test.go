package storage

import (
	"context"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/stretchr/testify/require"
)

func setupIndex(t *testing.T) (*SearchIndex, func()) {
	blugeCfg := bluge.DefaultConfig(t.TempDir())
	blugeWriter, err := bluge.OpenWriter(blugeCfg)
	require.NoError(t, err)

	return NewSearchIndex(blugeWriter, testLogger()), func() {
		_ = blugeWriter.Close()
	}
}

func TestSearchIndex_FindsByContent(t *testing.T) {
	req := require.New(t)
	index, cleanup := setupIndex(t)
	defer cleanup()

	first := newMessage("room-1", "the weather is lovely today", time.Now().UTC())
	second := newMessage("room-1", "deployment finished without errors", time.Now().UTC())
	req.NoError(index.IndexMessage(first))
	req.NoError(index.IndexMessage(second))

	hits, err := index.Search(context.Background(), "room-1", "weather", 10)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(first.ID.String(), hits[0].MessageID)
	req.Equal("the weather is lovely today", hits[0].Content)
}

func TestSearchIndex_ScopedToConversation(t *testing.T) {
	req := require.New(t)
	index, cleanup := setupIndex(t)
	defer cleanup()

	req.NoError(index.IndexMessage(newMessage("room-1", "secret plans", time.Now().UTC())))
	req.NoError(index.IndexMessage(newMessage("room-2", "secret recipes", time.Now().UTC())))

	hits, err := index.Search(context.Background(), "room-1", "secret", 10)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal("room-1", hits[0].ConversationID)
}
