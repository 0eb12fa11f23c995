package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wavelength/domain/event"
	"wavelength/observability"
)

// recordingSink captures delivered events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func newRecordingSink() *recordingSink {
	return &recordingSink{}
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) ofKind(kind event.Kind) []event.DomainEvent {
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

func newTestCoordinator() *Coordinator {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoordinator(log, NewRegistry(), NewPresence(), NewTypingTable(),
		observability.NewMonitoringManager(), 64, 3*time.Second, time.Second)
}

func TestConnect_DeliversOnlineSnapshot(t *testing.T) {
	assert := require.New(t)
	coordinator := newTestCoordinator()
	aliceSink := newRecordingSink()
	bobSink := newRecordingSink()

	// Given alice is already online
	coordinator.Connect("conn-a", "alice", aliceSink)

	// When bob connects
	coordinator.Connect("conn-b", "bob", bobSink)

	// Then bob is hydrated with the full online set including himself
	snapshots := bobSink.ofKind(event.KindOnlineSnapshot)
	assert.Len(snapshots, 1)
	assert.Equal([]string{"alice", "bob"}, snapshots[0].(event.OnlineSnapshot).UserIDs)
}

func TestDisconnect_LastConnectionBroadcastsOffline(t *testing.T) {
	assert := require.New(t)
	coordinator := newTestCoordinator()
	aliceSink := newRecordingSink()
	bobSink := newRecordingSink()
	coordinator.Connect("conn-a", "alice", aliceSink)
	coordinator.Connect("conn-b", "bob", bobSink)
	coordinator.Join("conn-a", "room-1")
	coordinator.Join("conn-b", "room-1")

	// When bob disconnects his only connection
	coordinator.Disconnect("conn-b")

	// Then alice, who shares a room, learns he went offline
	offline := aliceSink.ofKind(event.KindUserOffline)
	assert.Len(offline, 1)
	assert.Equal("bob", offline[0].(event.UserOffline).UserID)
	assert.Equal([]string{"alice"}, coordinator.OnlineSnapshot())
}

func TestDisconnect_SecondTabKeepsUserOnline(t *testing.T) {
	assert := require.New(t)
	coordinator := newTestCoordinator()
	aliceSink := newRecordingSink()
	tabOne := newRecordingSink()
	tabTwo := newRecordingSink()
	coordinator.Connect("conn-a", "alice", aliceSink)
	coordinator.Connect("tab-1", "bob", tabOne)
	coordinator.Connect("tab-2", "bob", tabTwo)
	coordinator.Join("conn-a", "room-1")
	coordinator.Join("tab-1", "room-1")
	coordinator.Join("tab-2", "room-1")

	// When only one of bob's tabs closes
	coordinator.Disconnect("tab-1")

	// Then no offline is broadcast, bob is still online
	assert.Empty(aliceSink.ofKind(event.KindUserOffline))
	assert.Contains(coordinator.OnlineSnapshot(), "bob")

	// And closing the last tab flips him offline
	coordinator.Disconnect("tab-2")
	assert.Len(aliceSink.ofKind(event.KindUserOffline), 1)
}

func TestRelay_ReachesRoomMembersIncludingSender(t *testing.T) {
	assert := require.New(t)
	coordinator := newTestCoordinator()
	aliceSink := newRecordingSink()
	bobSink := newRecordingSink()
	carolSink := newRecordingSink()
	coordinator.Connect("conn-a", "alice", aliceSink)
	coordinator.Connect("conn-b", "bob", bobSink)
	coordinator.Connect("conn-c", "carol", carolSink)
	coordinator.Join("conn-a", "room-1")
	coordinator.Join("conn-b", "room-1")
	// carol never joins room-1

	payload := json.RawMessage(`{"id":"m1","content":"hello"}`)
	coordinator.Relay("room-1", "alice", payload)

	// The sender's own connection receives the echo, the non-member nothing
	assert.Len(aliceSink.ofKind(event.KindMessageNew), 1)
	assert.Len(bobSink.ofKind(event.KindMessageNew), 1)
	assert.Empty(carolSink.ofKind(event.KindMessageNew))
}

func TestRelay_LeaveBeforeRelayMeansNoDelivery(t *testing.T) {
	assert := require.New(t)
	coordinator := newTestCoordinator()
	aliceSink := newRecordingSink()
	bobSink := newRecordingSink()
	coordinator.Connect("conn-a", "alice", aliceSink)
	coordinator.Connect("conn-b", "bob", bobSink)
	coordinator.Join("conn-a", "room-1")
	coordinator.Join("conn-b", "room-1")

	// When bob leaves the room before the relay happens
	coordinator.Leave("conn-b", "room-1")
	coordinator.Relay("room-1", "alice", json.RawMessage(`{"id":"m1"}`))

	// Then membership is evaluated at relay time, bob gets nothing
	assert.Empty(bobSink.ofKind(event.KindMessageNew))
	assert.Len(aliceSink.ofKind(event.KindMessageNew), 1)
}

func TestStartTyping_RefreshDoesNotRebroadcast(t *testing.T) {
	assert := require.New(t)
	coordinator := newTestCoordinator()
	aliceSink := newRecordingSink()
	bobSink := newRecordingSink()
	coordinator.Connect("conn-a", "alice", aliceSink)
	coordinator.Connect("conn-b", "bob", bobSink)
	coordinator.Join("conn-a", "room-1")
	coordinator.Join("conn-b", "room-1")

	coordinator.StartTyping("room-1", "alice", "Alice")
	coordinator.StartTyping("room-1", "alice", "Alice")

	// Only the Idle->Typing transition is visible to bob, never to alice
	assert.Len(bobSink.ofKind(event.KindUserTyping), 1)
	assert.Empty(aliceSink.ofKind(event.KindUserTyping))
}

func TestStopTyping_NoEntryNoBroadcast(t *testing.T) {
	assert := require.New(t)
	coordinator := newTestCoordinator()
	bobSink := newRecordingSink()
	coordinator.Connect("conn-b", "bob", bobSink)
	coordinator.Join("conn-b", "room-1")

	coordinator.StopTyping("room-1", "alice")

	assert.Empty(bobSink.ofKind(event.KindUserStopTyping))
}

func TestRelay_ClearsSenderTyping(t *testing.T) {
	assert := require.New(t)
	coordinator := newTestCoordinator()
	aliceSink := newRecordingSink()
	bobSink := newRecordingSink()
	coordinator.Connect("conn-a", "alice", aliceSink)
	coordinator.Connect("conn-b", "bob", bobSink)
	coordinator.Join("conn-a", "room-1")
	coordinator.Join("conn-b", "room-1")
	coordinator.StartTyping("room-1", "alice", "Alice")

	// When alice sends, her typing indicator is dropped with a stop event
	coordinator.Relay("room-1", "alice", json.RawMessage(`{"id":"m1"}`))

	stops := bobSink.ofKind(event.KindUserStopTyping)
	assert.Len(stops, 1)
	assert.Equal("alice", stops[0].(event.TypingStopped).UserID)
}

func TestExpireTyping_BroadcastsMissingStop(t *testing.T) {
	assert := require.New(t)
	coordinator := newTestCoordinator()
	aliceSink := newRecordingSink()
	bobSink := newRecordingSink()
	coordinator.Connect("conn-a", "alice", aliceSink)
	coordinator.Connect("conn-b", "bob", bobSink)
	coordinator.Join("conn-a", "room-1")
	coordinator.Join("conn-b", "room-1")
	coordinator.StartTyping("room-1", "alice", "Alice")

	// When the sweeper fires after the TTL
	coordinator.ExpireTyping(time.Now().Add(5 * time.Second))

	stops := bobSink.ofKind(event.KindUserStopTyping)
	assert.Len(stops, 1)
	assert.Equal("alice", stops[0].(event.TypingStopped).UserID)
}

func TestDisconnect_ClearsTypingWithStopBroadcast(t *testing.T) {
	assert := require.New(t)
	coordinator := newTestCoordinator()
	aliceSink := newRecordingSink()
	bobSink := newRecordingSink()
	coordinator.Connect("conn-a", "alice", aliceSink)
	coordinator.Connect("conn-b", "bob", bobSink)
	coordinator.Join("conn-a", "room-1")
	coordinator.Join("conn-b", "room-1")
	coordinator.StartTyping("room-1", "alice", "Alice")

	// When alice's last connection drops mid-typing
	coordinator.Disconnect("conn-a")

	// Then bob still gets the stop so his indicator does not hang
	assert.Len(bobSink.ofKind(event.KindUserStopTyping), 1)
}

func TestJoin_FirstRoomEntryBroadcastsOnlineToCoMembers(t *testing.T) {
	assert := require.New(t)
	coordinator := newTestCoordinator()
	aliceSink := newRecordingSink()
	bobSink := newRecordingSink()

	// Given alice is connected and viewing room-1
	coordinator.Connect("conn-a", "alice", aliceSink)
	coordinator.Join("conn-a", "room-1")

	// When bob connects and enters the shared room
	coordinator.Connect("conn-b", "bob", bobSink)
	coordinator.Join("conn-b", "room-1")

	// Then alice learns bob came online without reconnecting herself
	online := aliceSink.ofKind(event.KindUserOnline)
	assert.Len(online, 1)
	assert.Equal("bob", online[0].(event.UserOnline).UserID)

	// And bob never hears about his own transition
	assert.Empty(bobSink.ofKind(event.KindUserOnline))
}

func TestJoin_SecondTabDoesNotRebroadcastOnline(t *testing.T) {
	assert := require.New(t)
	coordinator := newTestCoordinator()
	aliceSink := newRecordingSink()
	coordinator.Connect("conn-a", "alice", aliceSink)
	coordinator.Join("conn-a", "room-1")
	coordinator.Connect("tab-1", "bob", newRecordingSink())
	coordinator.Join("tab-1", "room-1")

	// When bob's second tab enters the same room
	coordinator.Connect("tab-2", "bob", newRecordingSink())
	coordinator.Join("tab-2", "room-1")

	// Then alice saw exactly one online transition for bob
	assert.Len(aliceSink.ofKind(event.KindUserOnline), 1)
}

func TestJoin_SameConnectionTwiceBroadcastsOnce(t *testing.T) {
	assert := require.New(t)
	coordinator := newTestCoordinator()
	aliceSink := newRecordingSink()
	bobSink := newRecordingSink()
	coordinator.Connect("conn-a", "alice", aliceSink)
	coordinator.Join("conn-a", "room-1")
	coordinator.Connect("conn-b", "bob", bobSink)

	// When bob's connection joins the room twice
	coordinator.Join("conn-b", "room-1")
	coordinator.Join("conn-b", "room-1")

	// Then the room holds him once and alice saw one transition
	assert.Len(aliceSink.ofKind(event.KindUserOnline), 1)
}
