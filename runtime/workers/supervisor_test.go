package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"wavelength/domain/event"
)

type panickingWorker struct {
	runs atomic.Int32
}

func (w *panickingWorker) Run(ctx context.Context) error {
	if w.runs.Add(1) == 1 {
		panic("boom")
	}
	return nil
}

func TestSupervisor_RestartsAfterPanic(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	telemetry := make(chan event.Event, 4)
	sup := NewSupervisor(log, telemetry)

	worker := &panickingWorker{}
	sup.Add(worker)

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	// The first run panics, the second terminates cleanly
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("Supervisor did not finish in time")
	}
	req.EqualValues(2, worker.runs.Load())

	// The restart was reported to telemetry
	select {
	case evt := <-telemetry:
		req.Equal(event.RestartedAfterPanicType, evt.Type)
	default:
		req.Fail("Expected a restart telemetry event")
	}
}

type stoppableWorker struct {
	stopped atomic.Bool
}

func (w *stoppableWorker) Run(ctx context.Context) error {
	<-ctx.Done()
	w.stopped.Store(true)
	return nil
}

func TestSupervisor_StopCancelsWorkers(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	sup := NewSupervisor(log, nil)

	worker := &stoppableWorker{}
	sup.Add(worker)

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	// Give the worker time to start before stopping it
	time.Sleep(50 * time.Millisecond)
	sup.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("Supervisor did not stop in time")
	}
	req.True(worker.stopped.Load())
}
