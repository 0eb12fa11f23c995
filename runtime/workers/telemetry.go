package workers

import (
	"context"
	"log/slog"

	"wavelength/domain/event"
)

// TelemetryWorker consumes technical events and runs them through the
// handler chain. Purely observational: it never touches realtime state.
type TelemetryWorker struct {
	log           *slog.Logger
	telemetryChan chan event.Event
	handlers      []event.Handler
}

func NewTelemetryWorker(log *slog.Logger,
	telemetryChan chan event.Event,
	handlers []event.Handler) *TelemetryWorker {
	return &TelemetryWorker{
		log:           log,
		telemetryChan: telemetryChan,
		handlers:      handlers,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry worker")
			return nil
		case evt := <-w.telemetryChan:
			for _, h := range w.handlers {
				h.Handle(evt)
			}
		}
	}
}
