package observability

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Stats aggregates realtime-layer metrics for the debug dashboard.
type Stats struct {
	ConnectionsOpened uint64 `json:"connections_opened"`
	ConnectionsClosed uint64 `json:"connections_closed"`
	ActiveConnections int64  `json:"active_connections"`
	MessagesRelayed   uint64 `json:"messages_relayed"`
	EventsDelivered   uint64 `json:"events_delivered"`
	EventsDropped     uint64 `json:"events_dropped"`
	TypingExpired     uint64 `json:"typing_expired"`
	AllocMemMb        uint64 `json:"alloc_mem_mb"`
	NumGC             uint32 `json:"num_gc"`
	Uptime            string `json:"uptime"`
}

// MonitoringManager collects realtime telemetry through atomic counters.
// Writers are hot paths (relay, delivery); reads happen on the debug
// endpoint only, so there is no lock at all.
type MonitoringManager struct {
	startedAt time.Time

	connectionsOpened atomic.Uint64
	connectionsClosed atomic.Uint64
	messagesRelayed   atomic.Uint64
	eventsDelivered   atomic.Uint64
	eventsDropped     atomic.Uint64
	typingExpired     atomic.Uint64
}

func NewMonitoringManager() *MonitoringManager {
	return &MonitoringManager{startedAt: time.Now()}
}

func (mm *MonitoringManager) IncrConnectionsOpened() { mm.connectionsOpened.Add(1) }
func (mm *MonitoringManager) IncrConnectionsClosed() { mm.connectionsClosed.Add(1) }
func (mm *MonitoringManager) IncrMessagesRelayed()   { mm.messagesRelayed.Add(1) }
func (mm *MonitoringManager) IncrEventsDelivered()   { mm.eventsDelivered.Add(1) }
func (mm *MonitoringManager) IncrEventsDropped()     { mm.eventsDropped.Add(1) }
func (mm *MonitoringManager) IncrTypingExpired()     { mm.typingExpired.Add(1) }

// GetLatest builds a point-in-time snapshot, including Go runtime memory
// figures for the dashboard.
func (mm *MonitoringManager) GetLatest() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	opened := mm.connectionsOpened.Load()
	closed := mm.connectionsClosed.Load()
	return Stats{
		ConnectionsOpened: opened,
		ConnectionsClosed: closed,
		ActiveConnections: int64(opened) - int64(closed),
		MessagesRelayed:   mm.messagesRelayed.Load(),
		EventsDelivered:   mm.eventsDelivered.Load(),
		EventsDropped:     mm.eventsDropped.Load(),
		TypingExpired:     mm.typingExpired.Load(),
		AllocMemMb:        mem.Alloc / 1024 / 1024,
		NumGC:             mem.NumGC,
		Uptime:            time.Since(mm.startedAt).Round(time.Second).String(),
	}
}
