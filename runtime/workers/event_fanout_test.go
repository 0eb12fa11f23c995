package workers

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"wavelength/domain/event"
	"wavelength/mocks"
)

func TestEventFanout_DeliversToEverySink(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	timelineSink := mocks.NewMockEventSink(ctrl)
	journalSink := mocks.NewMockEventSink(ctrl)
	worker := NewEventFanout(log, nil, timelineSink, journalSink)

	evt := event.UserOnline{UserID: "alice"}

	// Given both permanent sinks accept the event
	timelineSink.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)
	journalSink.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	// When the event is fanned out
	worker.Fanout(context.Background(), evt)
}

func TestEventFanout_SinkErrorDoesNotStopOthers(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	failingSink := mocks.NewMockEventSink(ctrl)
	healthySink := mocks.NewMockEventSink(ctrl)
	worker := NewEventFanout(log, nil, failingSink, healthySink)

	evt := event.UserOffline{UserID: "alice"}

	// Given the first sink rejects the event
	failingSink.EXPECT().Consume(gomock.Any(), evt).Return(errors.New("projection down")).Times(1)
	// Then the second sink is still reached
	healthySink.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	worker.Fanout(context.Background(), evt)
}

func TestEventFanout_RunDrainsChannelUntilCancel(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	events := make(chan event.DomainEvent, 2)
	sink := mocks.NewMockEventSink(ctrl)
	worker := NewEventFanout(log, events, sink)

	done := make(chan struct{})
	sink.EXPECT().Consume(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, e event.DomainEvent) error {
			close(done)
			return nil
		}).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = worker.Run(ctx) }()

	// When an event arrives on the tap
	events <- event.UserOnline{UserID: "alice"}

	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Event was not consumed in time")
	}
	cancel()
}
