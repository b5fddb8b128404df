// Package stream subscribes to the Gotify websocket message stream.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 1 << 20
	backoffFactor  = 2.0
	jitterFactor   = 0.3
)

// ErrDisconnected is returned by Run when the connection ends and
// reconnecting is disabled.
var ErrDisconnected = errors.New("stream disconnected")

// Config holds subscriber settings.
type Config struct {
	URL              string // ws:// or wss:// URL including the token
	Reconnect        bool
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	HandshakeTimeout time.Duration
}

// FrameHandler processes one frame. Run waits for it to return before
// reading the next frame.
type FrameHandler func(ctx context.Context, frame []byte)

// Subscriber maintains the websocket connection.
type Subscriber struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *slog.Logger
}

// New creates a Subscriber.
func New(cfg Config, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return &Subscriber{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger,
	}
}

// Run connects and feeds every frame to handle until ctx is cancelled.
// With reconnecting disabled it returns after the first connection ends.
// Cancellation is a clean exit and returns nil.
func (s *Subscriber) Run(ctx context.Context, handle FrameHandler) error {
	backoff := s.cfg.InitialBackoff
	target := RedactURL(s.cfg.URL)

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !s.cfg.Reconnect {
				return fmt.Errorf("connect %s: %w", target, err)
			}
			s.logger.Warn("stream connection failed", "url", target, "error", err)
		} else {
			s.logger.Info("stream connected", "url", target)
			backoff = s.cfg.InitialBackoff

			err = s.receive(ctx, conn, handle)
			if ctx.Err() != nil {
				return nil
			}
			if !s.cfg.Reconnect {
				return fmt.Errorf("%w: %v", ErrDisconnected, err)
			}
			s.logger.Warn("stream disconnected", "url", target, "error", err)
		}

		delay := jitter(backoff)
		s.logger.Info("reconnecting", "delay", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}
}

func (s *Subscriber) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake failed with status %s: %w", resp.Status, err)
		}
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)
	return conn, nil
}

// receive reads frames until the connection fails or ctx is cancelled.
func (s *Subscriber) receive(ctx context.Context, conn *websocket.Conn, handle FrameHandler) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			conn.Close()
		case <-stop:
			conn.Close()
		}
	}()

	for {
		msgType, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			s.logger.Debug("ignoring non-text frame", "type", msgType)
			continue
		}
		handle(ctx, frame)
	}
}

// jitter spreads d by up to ±30%.
func jitter(d time.Duration) time.Duration {
	j := time.Duration(float64(d) * jitterFactor * (rand.Float64()*2 - 1))
	if d+j <= 0 {
		return d
	}
	return d + j
}

// RedactURL hides the token query parameter so the URL can be logged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
