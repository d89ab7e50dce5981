package push

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	eventBuffer = 16

	minBackoff = time.Second
	maxBackoff = 30 * time.Second

	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	writeWait  = 10 * time.Second
)

// TokenSource supplies the bearer credential for the WebSocket handshake.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// WebSocket subscribes to the upstream push endpoint and reconnects with
// exponential backoff until the subscription is closed.
type WebSocket struct {
	URL    string
	Tokens TokenSource
	Dialer *websocket.Dialer
	Log    *slog.Logger
}

func (w WebSocket) Subscribe(ctx context.Context) (Subscription, error) {
	if w.URL == "" {
		return nil, errors.New("push: websocket url is required")
	}
	if w.Dialer == nil {
		w.Dialer = websocket.DefaultDialer
	}
	if w.Log == nil {
		w.Log = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &wsSubscription{
		cfg:    w,
		events: make(chan Event, eventBuffer),
		cancel: cancel,
	}
	s.wg.Add(1)
	go s.run(ctx)
	return s, nil
}

type wsSubscription struct {
	cfg    WebSocket
	events chan Event
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSubscription) Events() <-chan Event { return s.events }

func (s *wsSubscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
	return nil
}

func (s *wsSubscription) run(ctx context.Context) {
	defer s.wg.Done()

	backoff := minBackoff
	for ctx.Err() == nil {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = minBackoff
		}
		s.cfg.Log.Warn("push channel disconnected", "url", s.cfg.URL, "err", err, "retry_in", backoff.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// session runs one connection until it fails. It reports whether the dial
// succeeded so the caller can reset its backoff.
func (s *wsSubscription) session(ctx context.Context) (bool, error) {
	header := http.Header{}
	if s.cfg.Tokens != nil {
		tok, err := s.cfg.Tokens.Token(ctx)
		if err != nil {
			return false, err
		}
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, _, err := s.cfg.Dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		_ = conn.Close()
		return true, ctx.Err()
	}
	s.conn = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		_ = conn.Close()
	}()

	s.cfg.Log.Info("push channel connected", "url", s.cfg.URL)
	// A reconnect may have missed messages.
	deliver(s.events, Event{Type: TypeInvalidate, ReceivedAt: time.Now()})

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		deliver(s.events, Parse(data, time.Now()))
	}
}
