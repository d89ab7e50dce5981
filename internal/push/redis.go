package push

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel the sync worker publishes to.
const DefaultRedisChannel = "calls:events"

// Redis subscribes to a pub/sub channel carrying the same JSON messages as
// the WebSocket endpoint.
type Redis struct {
	Client  *redis.Client
	Channel string
	Log     *slog.Logger
}

func (r Redis) Subscribe(ctx context.Context) (Subscription, error) {
	if r.Client == nil {
		return nil, errors.New("push: redis client is nil")
	}
	if r.Channel == "" {
		r.Channel = DefaultRedisChannel
	}
	if r.Log == nil {
		r.Log = slog.Default()
	}

	ps := r.Client.Subscribe(ctx, r.Channel)
	// Receive blocks until the subscription is confirmed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	s := &redisSubscription{ps: ps, events: make(chan Event, eventBuffer)}
	s.wg.Add(1)
	go s.forward(ps.Channel(), r.Log)
	return s, nil
}

type redisSubscription struct {
	ps     *redis.PubSub
	events chan Event
	wg     sync.WaitGroup
	once   sync.Once
	err    error
}

func (s *redisSubscription) Events() <-chan Event { return s.events }

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
		s.wg.Wait()
	})
	return s.err
}

func (s *redisSubscription) forward(msgs <-chan *redis.Message, log *slog.Logger) {
	defer s.wg.Done()
	for m := range msgs {
		ev := Parse([]byte(m.Payload), time.Now())
		if !deliver(s.events, ev) {
			log.Debug("push event coalesced", "type", ev.Type)
		}
	}
}
