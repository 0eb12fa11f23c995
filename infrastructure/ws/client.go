package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"wavelength/domain/event"
)

const (
	writeRetryDelay = 200 * time.Millisecond
	writeRetryMax   = 3
)

// ClientSession wraps one websocket connection. It is the EventSink the
// coordinator delivers to: domain events are encoded to wire envelopes
// and written under a mutex, since gorilla allows only one writer.
type ClientSession struct {
	ConnID string
	UserID string

	conn         *websocket.Conn
	log          *slog.Logger
	writeTimeout time.Duration
	pingTicker   *time.Ticker
	ctx          context.Context
	cancel       context.CancelFunc
	mu           sync.Mutex
}

func NewClientSession(connID, userID string, conn *websocket.Conn, log *slog.Logger, writeTimeout time.Duration) *ClientSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &ClientSession{
		ConnID:       connID,
		UserID:       userID,
		conn:         conn,
		log:          log,
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Consume implements contract.EventSink for a live connection.
func (s *ClientSession) Consume(_ context.Context, e event.DomainEvent) error {
	envelope, err := EncodeDomainEvent(e)
	if err != nil {
		return err
	}
	return s.SafeWriteJSON(envelope)
}

// SafeWriteJSON writes one frame, retrying transient failures with a
// constant backoff. A stuck peer is bounded by the write deadline.
func (s *ClientSession) SafeWriteJSON(data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	operation := func() error {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
		return s.conn.WriteJSON(data)
	}

	strategy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(writeRetryDelay), writeRetryMax),
		s.ctx,
	)

	return backoff.RetryNotify(operation, strategy, func(err error, next time.Duration) {
		s.log.Warn("retrying websocket write",
			slog.String("conn_id", s.ConnID),
			slog.Any("error", err),
			slog.Duration("next_attempt_in", next))
	})
}

// StartPing keeps the connection alive through proxies and detects dead
// peers. The read loop's pong handler extends the read deadline.
func (s *ClientSession) StartPing(interval time.Duration) {
	s.pingTicker = time.NewTicker(interval)
	go func() {
		defer s.pingTicker.Stop()
		for {
			select {
			case <-s.pingTicker.C:
				if err := s.sendPing(); err != nil {
					s.log.Debug("ping failed, closing session",
						slog.String("conn_id", s.ConnID),
						slog.Any("error", err))
					_ = s.Close(websocket.CloseInternalServerErr, "ping failure")
					return
				}
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

func (s *ClientSession) sendPing() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout))
}

// Close sends a close frame and tears the connection down. Safe to call
// more than once.
func (s *ClientSession) Close(code int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pingTicker != nil {
		s.pingTicker.Stop()
	}
	s.cancel()

	deadline := time.Now().Add(s.writeTimeout)
	if err := s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline); err != nil {
		s.log.Debug("failed to send close frame", slog.Any("error", err))
	}
	return s.conn.Close()
}
