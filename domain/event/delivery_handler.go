package event

import (
	"log/slog"

	"wavelength/errors"
)

// DeliveryHandler counts relayed and dropped deliveries. A drop is not an
// error of the relay: the recipient resynchronizes from the durable store
// on its next connect.
type DeliveryHandler struct {
	log     *slog.Logger
	counter *Counter
}

func NewDeliveryHandler(log *slog.Logger, counter *Counter) *DeliveryHandler {
	return &DeliveryHandler{log: log, counter: counter}
}

func (h *DeliveryHandler) Handle(event Event) {
	switch event.Type {
	case EventRelayedType:
		if _, ok := event.Payload.(EventRelayed); !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.counter.Increment(EventRelayedType)
	case DeliveryDroppedType:
		payload, ok := event.Payload.(DeliveryDropped)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.counter.Increment(DeliveryDroppedType)
		h.log.Debug("Delivery dropped", "kind", string(payload.Kind), "reason", payload.Reason)
	}
}
