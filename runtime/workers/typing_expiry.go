package workers

import (
	"context"
	"log/slog"
	"time"
)

// TypingSweeper asks the coordinator to expire stale typing entries on a
// fixed cadence. The sweep interval bounds how late an expiry broadcast can
// be relative to the entry's deadline; it does not change the deadline
// itself.
type TypingSweeper interface {
	ExpireTyping(now time.Time)
}

type TypingExpiryWorker struct {
	log      *slog.Logger
	sweeper  TypingSweeper
	interval time.Duration
}

func NewTypingExpiryWorker(log *slog.Logger, sweeper TypingSweeper, interval time.Duration) *TypingExpiryWorker {
	return &TypingExpiryWorker{log: log, sweeper: sweeper, interval: interval}
}

func (w *TypingExpiryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping typing expiry sweep")
			return nil
		case now := <-ticker.C:
			w.sweeper.ExpireTyping(now)
		}
	}
}
