// Package runtime implements the in-memory real-time layer: connection
// registry, room membership, typing state, presence, and message relay.
// It coordinates the system without containing durable-storage logic.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"wavelength/contract"
	"wavelength/domain/chat"
	"wavelength/domain/event"
	"wavelength/observability"
)

// Coordinator is the single owner of the process-wide realtime state.
// Every inbound event (connect, disconnect, join, leave, typing, relay) is
// handled to completion under one mutex, which preserves the single-writer
// processing order the invariants rely on. Sink I/O happens after the lock
// is released: a slow client never stalls state mutation.
//
// A copy of every emitted domain event is also pushed, best-effort, onto the
// events channel for permanent sinks (projections, observability).
type Coordinator struct {
	mu          sync.Mutex
	log         *slog.Logger
	registry    *Registry
	presence    *Presence
	typing      *TypingTable
	monitoring  *observability.MonitoringManager
	events      chan event.DomainEvent
	telemetry   chan event.Event
	typingTTL   time.Duration
	sinkTimeout time.Duration
}

func NewCoordinator(log *slog.Logger, registry *Registry, presence *Presence,
	typing *TypingTable, monitoring *observability.MonitoringManager,
	bufferSize int, typingTTL, sinkTimeout time.Duration) *Coordinator {
	return &Coordinator{
		log:         log,
		registry:    registry,
		presence:    presence,
		typing:      typing,
		monitoring:  monitoring,
		events:      make(chan event.DomainEvent, bufferSize),
		telemetry:   make(chan event.Event, bufferSize),
		typingTTL:   typingTTL,
		sinkTimeout: sinkTimeout,
	}
}

// Events exposes the permanent-sink tap consumed by the fanout worker.
func (c *Coordinator) Events() chan event.DomainEvent { return c.events }

// Telemetry exposes the technical-event channel consumed by the telemetry
// worker.
func (c *Coordinator) Telemetry() chan event.Event { return c.telemetry }

// Connect registers a live connection under its authenticated owner. The new
// connection immediately receives the online snapshot so its presence view
// starts correct. Peers hear about the online transition later, when the
// user first enters a room they share (see Join): a fresh connection has no
// room memberships yet, so there is nobody to scope the broadcast to here.
func (c *Coordinator) Connect(connID, userID string, sink contract.EventSink) {
	c.mu.Lock()
	first := c.registry.Register(connID, userID, sink)
	if first {
		c.presence.MarkOnline(userID)
	}
	snapshot := c.presence.Snapshot()
	c.mu.Unlock()

	c.monitoring.IncrConnectionsOpened()
	observability.ActiveConnections.Inc()
	observability.TotalConnections.Inc()

	c.deliver([]contract.EventSink{sink}, event.OnlineSnapshot{UserIDs: snapshot})
}

// Disconnect tears a connection down: it leaves every room, and if it was
// the owner's last connection, presence flips to offline and any typing
// entries the user held are cleared with their stop broadcasts. Unknown
// connections are a benign no-op so abrupt network drops can clean up twice.
func (c *Coordinator) Disconnect(connID string) {
	c.mu.Lock()
	userID, last, rooms, ok := c.registry.Unregister(connID)
	if !ok {
		c.mu.Unlock()
		return
	}

	var offlinePeers []contract.EventSink
	var stops []stopBroadcast
	if last {
		c.presence.MarkOffline(userID)
		// Scope the offline broadcast to the rooms the connection was in,
		// gathered before the membership was pruned.
		offlinePeers = c.registry.SinksForConversations(rooms, userID)
		for _, entry := range c.typing.DropUser(userID) {
			stops = append(stops, stopBroadcast{
				entry: entry,
				peers: c.registry.SinksForConversations([]chat.ConversationID{entry.ConversationID}, userID),
			})
		}
	}
	c.mu.Unlock()

	c.monitoring.IncrConnectionsClosed()
	observability.ActiveConnections.Dec()

	if last {
		c.broadcast(offlinePeers, event.UserOffline{UserID: userID})
		for _, s := range stops {
			c.broadcast(s.peers, event.TypingStopped{
				ConversationID: s.entry.ConversationID,
				UserID:         s.entry.UserID,
				DisplayName:    s.entry.DisplayName,
			})
		}
	}
}

// Join subscribes a connection to a conversation room. Durable membership
// was already checked by the request/response API before the join event got
// here; the relay trusts that check instead of re-reading the store.
func (c *Coordinator) Join(connID string, conversationID chat.ConversationID) {
	c.mu.Lock()
	userID, firstOfUser, joined := c.registry.Join(connID, conversationID)
	var peers []contract.EventSink
	if joined && firstOfUser {
		// The room's co-members learn the user is online the moment they
		// first enter a shared room; a fresh connection has no rooms yet,
		// so the online transition itself has nobody to tell.
		peers = c.registry.SinksForConversations([]chat.ConversationID{conversationID}, userID)
	}
	c.mu.Unlock()
	if !joined {
		c.log.Debug("Join ignored for unknown connection", "conn", connID, "conversation", conversationID)
		return
	}
	if firstOfUser {
		c.broadcast(peers, event.UserOnline{UserID: userID})
	}
}

// Leave unsubscribes a connection from a room; no-op if absent.
func (c *Coordinator) Leave(connID string, conversationID chat.ConversationID) {
	c.mu.Lock()
	c.registry.Leave(connID, conversationID)
	c.mu.Unlock()
}

// StartTyping creates or refreshes the typing entry. Only the Idle->Typing
// transition broadcasts; refreshes stay silent to avoid per-keystroke spam.
func (c *Coordinator) StartTyping(conversationID chat.ConversationID, userID, displayName string) {
	c.mu.Lock()
	started := c.typing.Start(conversationID, userID, displayName, time.Now().Add(c.typingTTL))
	var peers []contract.EventSink
	if started {
		peers = c.registry.SinksForConversations([]chat.ConversationID{conversationID}, userID)
	}
	c.mu.Unlock()

	if started {
		c.broadcast(peers, event.TypingStarted{
			ConversationID: conversationID,
			UserID:         userID,
			DisplayName:    displayName,
		})
	}
}

// StopTyping removes the entry and broadcasts only if one was present.
func (c *Coordinator) StopTyping(conversationID chat.ConversationID, userID string) {
	c.mu.Lock()
	stopped, displayName := c.typing.Stop(conversationID, userID)
	var peers []contract.EventSink
	if stopped {
		peers = c.registry.SinksForConversations([]chat.ConversationID{conversationID}, userID)
	}
	c.mu.Unlock()

	if stopped {
		c.broadcast(peers, event.TypingStopped{
			ConversationID: conversationID,
			UserID:         userID,
			DisplayName:    displayName,
		})
	}
}

// Relay fans an already-durably-written message out to the room's current
// members. The sender's own connections are included: the reference client
// renders idempotently by message id, so the echo is harmless and keeps
// multi-tab senders in sync. A send also implies the sender stopped typing.
func (c *Coordinator) Relay(conversationID chat.ConversationID, senderID string, payload json.RawMessage) {
	c.mu.Lock()
	members := c.registry.SinksForConversation(conversationID)
	stopped, displayName := c.typing.Stop(conversationID, senderID)
	var typingPeers []contract.EventSink
	if stopped {
		typingPeers = c.registry.SinksForConversations([]chat.ConversationID{conversationID}, senderID)
	}
	c.mu.Unlock()

	c.monitoring.IncrMessagesRelayed()
	observability.MessagesRelayed.Inc()

	c.broadcast(members, event.MessageRelayed{
		ConversationID: conversationID,
		SenderID:       senderID,
		Payload:        payload,
		At:             time.Now(),
	})
	if stopped {
		c.broadcast(typingPeers, event.TypingStopped{
			ConversationID: conversationID,
			UserID:         senderID,
			DisplayName:    displayName,
		})
	}
}

// ExpireTyping sweeps entries past their deadline and broadcasts the stop
// events their clients never sent. Called periodically by the typing expiry
// worker.
func (c *Coordinator) ExpireTyping(now time.Time) {
	c.mu.Lock()
	expired := c.typing.Expire(now)
	stops := make([]stopBroadcast, 0, len(expired))
	for _, entry := range expired {
		stops = append(stops, stopBroadcast{
			entry: entry,
			peers: c.registry.SinksForConversations([]chat.ConversationID{entry.ConversationID}, entry.UserID),
		})
	}
	c.mu.Unlock()

	for _, s := range stops {
		c.monitoring.IncrTypingExpired()
		observability.TypingExpired.Inc()
		c.broadcast(s.peers, event.TypingStopped{
			ConversationID: s.entry.ConversationID,
			UserID:         s.entry.UserID,
			DisplayName:    s.entry.DisplayName,
		})
	}
}

// OnlineSnapshot returns the current online user id set.
func (c *Coordinator) OnlineSnapshot() []string {
	return c.presence.Snapshot()
}

type stopBroadcast struct {
	entry chat.TypingEntry
	peers []contract.EventSink
}

// broadcast delivers one event to each sink and taps the permanent-sink
// channel once. Fire-and-forget: a failed delivery is counted and dropped,
// never retried; the recipient resynchronizes from the durable store.
func (c *Coordinator) broadcast(sinks []contract.EventSink, evt event.DomainEvent) {
	c.deliver(sinks, evt)
	c.tap(evt)
}

func (c *Coordinator) deliver(sinks []contract.EventSink, evt event.DomainEvent) {
	for _, sink := range sinks {
		ctx, cancel := context.WithTimeout(context.Background(), c.sinkTimeout)
		err := sink.Consume(ctx, evt)
		cancel()
		if err != nil {
			c.monitoring.IncrEventsDropped()
			observability.EventsDropped.WithLabelValues(string(evt.EventKind())).Inc()
			c.emitTelemetry(event.Event{
				Type:    event.DeliveryDroppedType,
				Payload: event.DeliveryDropped{Kind: evt.EventKind(), Reason: err.Error()},
			})
			continue
		}
		c.monitoring.IncrEventsDelivered()
		observability.EventsDelivered.WithLabelValues(string(evt.EventKind())).Inc()
	}
}

// tap forwards the event to permanent sinks via the fanout worker. The
// channel is best-effort: observability must never apply backpressure to
// the relay.
func (c *Coordinator) tap(evt event.DomainEvent) {
	select {
	case c.events <- evt:
	default:
		c.log.Warn(fmt.Sprintf("Event channel full, dropping %s for permanent sinks", evt.EventKind()))
	}
}

func (c *Coordinator) emitTelemetry(evt event.Event) {
	select {
	case c.telemetry <- evt:
	default:
	}
}
