package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Redis is a Broker over Redis PUBLISH/SUBSCRIBE.
type Redis struct {
	client *redis.Client

	mu     sync.Mutex
	ps     *redis.PubSub
	closed bool
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis connects to Redis and opens an empty subscription.
func NewRedis(ctx context.Context, o RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client, ps: client.Subscribe(ctx)}, nil
}

func (r *Redis) pubsub() (*redis.PubSub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	return r.ps, nil
}

func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context, channels ...string) error {
	ps, err := r.pubsub()
	if err != nil {
		return err
	}
	return ps.Subscribe(ctx, channels...)
}

func (r *Redis) Unsubscribe(ctx context.Context, channels ...string) error {
	ps, err := r.pubsub()
	if err != nil {
		return err
	}
	return ps.Unsubscribe(ctx, channels...)
}

func (r *Redis) Next(ctx context.Context) (Message, error) {
	ps, err := r.pubsub()
	if err != nil {
		return Message{}, err
	}
	m, err := ps.ReceiveMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	return Message{Channel: m.Channel, Payload: []byte(m.Payload)}, nil
}

func (r *Redis) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	_ = r.ps.Close()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	r.ps = r.client.Subscribe(ctx)
	return nil
}

func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	ps := r.ps
	r.mu.Unlock()

	_ = ps.Close()
	return r.client.Close()
}
