package live

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	redisclient "github.com/guardianview/monitor-server-go/internal/redis"
)

// Message is one raw pub/sub delivery.
type Message struct {
	Channel string
	Payload string
}

// Subscription is a live channel subscription. Confirm blocks until the
// transport acknowledges the subscribe; Close releases it and ends the
// Messages stream.
type Subscription interface {
	Confirm(ctx context.Context) error
	Messages() <-chan Message
	Close() error
}

// Subscriber opens subscriptions. The Redis client implements it through
// NewRedisSubscriber; tests substitute a fake.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
}

type redisSubscriber struct {
	client *redisclient.Client
}

func NewRedisSubscriber(client *redisclient.Client) Subscriber {
	return &redisSubscriber{client: client}
}

func (s *redisSubscriber) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	pubsub := s.client.Subscribe(ctx, channels...)
	return &redisSubscription{
		pubsub: pubsub,
		out:    make(chan Message, 100),
	}, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	out    chan Message
	once   sync.Once
}

func (s *redisSubscription) Confirm(ctx context.Context) error {
	// Receive returns the *redis.Subscription ack for the initial subscribe,
	// or an error if the transport refused it.
	_, err := s.pubsub.Receive(ctx)
	return err
}

func (s *redisSubscription) Messages() <-chan Message {
	s.once.Do(func() {
		go s.pump()
	})
	return s.out
}

func (s *redisSubscription) pump() {
	defer close(s.out)
	for msg := range s.pubsub.Channel() {
		s.out <- Message{Channel: msg.Channel, Payload: msg.Payload}
	}
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
