package sink

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"wavelength/domain/event"
	"wavelength/infrastructure/storage"
)

func TestLastSeenSink_JournalsPresence(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	defer func() { _ = db.Close() }()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := storage.NewPresenceRepository(db)
	lastSeen := NewLastSeenSink(repo, log)

	_, found, err := repo.GetLastSeen("alice")
	req.NoError(err)
	req.False(found)

	req.NoError(lastSeen.Consume(context.Background(), event.UserOffline{UserID: "alice"}))

	at, found, err := repo.GetLastSeen("alice")
	req.NoError(err)
	req.True(found)
	req.False(at.IsZero())
}
