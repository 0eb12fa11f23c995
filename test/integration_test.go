package test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/blugelabs/bluge"
	"github.com/stretchr/testify/require"

	"wavelength/contract"
	"wavelength/domain/chat"
	"wavelength/domain/event"
	"wavelength/infrastructure/storage"
	"wavelength/observability"
	"wavelength/runtime"
	"wavelength/runtime/workers"
	"wavelength/services"
	"wavelength/sink"
)

// clientSink stands in for a websocket session and records everything the
// coordinator delivers to it.
type clientSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *clientSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *clientSink) ofKind(kind event.Kind) []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.DomainEvent
	for _, e := range s.events {
		if e.EventKind() == kind {
			out = append(out, e)
		}
	}
	return out
}

func Test_Scenario(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)

	messageRepo := storage.NewMessageRepository(db, log)
	conversationRepo := storage.NewConversationRepository(db, log)
	presenceRepo := storage.NewPresenceRepository(db)
	index := storage.NewSearchIndex(writer, log)

	monitoring := observability.NewMonitoringManager()
	coordinator := runtime.NewCoordinator(log, runtime.NewRegistry(), runtime.NewPresence(),
		runtime.NewTypingTable(), monitoring, 64, 3*time.Second, time.Second)

	messageService := services.NewMessageService(log, messageRepo, conversationRepo, index, coordinator, monitoring)
	conversationService := services.NewConversationService(log, conversationRepo)

	timeline := sink.NewTimeline()
	lastSeen := sink.NewLastSeenSink(presenceRepo, log)
	supervisor := workers.NewSupervisor(log, coordinator.Telemetry())
	supervisor.Add(
		workers.NewEventFanout(log, coordinator.Events(), timeline, lastSeen),
		workers.NewTelemetryWorker(log, coordinator.Telemetry(), nil),
	)
	go supervisor.Run(ctx)
	t.Cleanup(func() {
		supervisor.Stop()
		_ = writer.Close()
		_ = db.Close()
	})

	// Given a direct conversation between alice and bob
	conversation, err := conversationService.Create(chat.CreateConversationCommand{
		CreatorID: "alice",
		MemberIDs: []string{"bob"},
	})
	req.NoError(err)
	req.Equal(chat.Direct, conversation.Type)

	// And both users connected and viewing the conversation
	aliceSink := &clientSink{}
	bobSink := &clientSink{}
	coordinator.Connect("conn-alice", "alice", aliceSink)
	coordinator.Connect("conn-bob", "bob", bobSink)
	coordinator.Join("conn-alice", conversation.ID)
	coordinator.Join("conn-bob", conversation.ID)

	// Then alice sees bob appear when he enters the shared conversation
	online := aliceSink.ofKind(event.KindUserOnline)
	req.Len(online, 1)
	req.Equal("bob", online[0].(event.UserOnline).UserID)

	// When alice types then sends a message
	coordinator.StartTyping(conversation.ID, "alice", "Alice")
	typing := bobSink.ofKind(event.KindUserTyping)
	req.Len(typing, 1)
	req.Equal("alice", typing[0].(event.TypingStarted).UserID)

	sent, err := messageService.SendMessage(ctx, chat.SendMessageCommand{
		ConversationID: string(conversation.ID),
		SenderID:       "alice",
		Content:        "this message will reach bob only after the write",
	}, chat.Sender{ID: "alice", Username: "alice", DisplayName: "Alice"})
	req.NoError(err)

	// Then the message was durably written before any relay
	stored, _, err := messageService.GetMessages(chat.GetMessagesCommand{
		ConversationID: string(conversation.ID),
		UserID:         "bob",
		Limit:          10,
	})
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal(sent.ID, stored[0].ID)

	// And both room members received it live, sender included
	req.Len(bobSink.ofKind(event.KindMessageNew), 1)
	req.Len(aliceSink.ofKind(event.KindMessageNew), 1)

	// And the relay cleared alice's typing state
	req.Len(bobSink.ofKind(event.KindUserStopTyping), 1)

	// And the permanent timeline projection caught up through the fanout
	req.Eventually(func() bool {
		return len(timeline.MessagesIn(conversation.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond, "message never reached the timeline projection")

	// When alice's last connection drops
	coordinator.Disconnect("conn-alice")

	// Then bob sees her go offline and her last-seen gets journaled
	req.Len(bobSink.ofKind(event.KindUserOffline), 1)
	req.Eventually(func() bool {
		_, found, lookupErr := presenceRepo.GetLastSeen("alice")
		return lookupErr == nil && found
	}, 2*time.Second, 10*time.Millisecond, "offline transition never reached the journal")

	// And her message remains searchable
	hits, err := messageService.Search(ctx, chat.SearchMessagesCommand{
		UserID:         "bob",
		ConversationID: string(conversation.ID),
		Terms:          "reach",
		Limit:          10,
	})
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(sent.ID.String(), hits[0].MessageID)
}

var _ contract.EventSink = (*clientSink)(nil)
