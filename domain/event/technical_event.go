package event

type Type string

const (
	RestartedAfterPanicType Type = "WORKER_RESTARTED_AFTER_PANIC"
	ChannelCapacityType     Type = "CHANNEL_CAPACITY"
	DeliveryDroppedType     Type = "DELIVERY_DROPPED"
	EventRelayedType        Type = "EVENT_RELAYED"
)

// Event is the telemetry envelope. Unlike DomainEvent it never reaches
// clients; handlers turn it into logs and counters.
type Event struct {
	Type    Type
	Payload any
}

type WorkerRestartedAfterPanic struct {
	WorkerName string
}

type ChannelCapacity struct {
	ChannelName string
	Capacity    int
	Length      int
}

type DeliveryDropped struct {
	Kind   Kind
	Reason string
}

type EventRelayed struct {
	Kind Kind
}
