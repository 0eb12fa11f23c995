package sink

import (
	"context"
	"log/slog"
	"time"

	"wavelength/domain/event"
	"wavelength/infrastructure/storage"
)

// LastSeenSink journals presence transitions so "last seen at" survives
// restarts even though live presence itself is in-memory only.
type LastSeenSink struct {
	presence storage.IPresenceRepository
	log      *slog.Logger
}

func NewLastSeenSink(presence storage.IPresenceRepository, log *slog.Logger) LastSeenSink {
	return LastSeenSink{presence: presence, log: log}
}

func (s LastSeenSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.UserOnline:
		return s.presence.SetLastSeen(evt.UserID, time.Now().UTC())
	case event.UserOffline:
		return s.presence.SetLastSeen(evt.UserID, time.Now().UTC())
	default:
		return nil
	}
}
