package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Mariaiaiaia/auction-sub000/internal/domain"
	"github.com/Mariaiaiaia/auction-sub000/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// envelope wraps every bus message with an id and timestamp so consumers can
// log and deduplicate under at-least-once delivery.
type envelope struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type RedisEventPublisher struct {
	client   *redis.Client
	attempts int
	delay    time.Duration
	log      logger.Logger
}

func NewRedisEventPublisher(client *redis.Client, attempts int, delay time.Duration, log logger.Logger) *RedisEventPublisher {
	if attempts < 1 {
		attempts = 1
	}
	return &RedisEventPublisher{client: client, attempts: attempts, delay: delay, log: log}
}

// Publish sends one message on the topic's channel, retrying with a fixed
// delay. The caller decides whether an exhausted publish is fatal; for
// notifications it never is.
func (p *RedisEventPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope{
		ID:        uuid.NewString(),
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   body,
	})
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err = p.client.Publish(ctx, topic, data).Err()
		if err == nil {
			return nil
		}
		if attempt >= p.attempts {
			return err
		}
		p.log.Warn("Publish failed, retrying", "topic", topic, "attempt", attempt, "error", err)
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type RedisEventSubscriber struct {
	client *redis.Client
	log    logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{client: client, log: log}
}

const (
	resubscribeBaseDelay = time.Second
	resubscribeMaxDelay  = 30 * time.Second
)

// Subscribe delivers messages one at a time in arrival order until ctx is
// cancelled. A broken subscription is re-established with doubling backoff;
// handler failures are logged and never tear the subscription down, so one
// bad message cannot starve the consumer.
func (s *RedisEventSubscriber) Subscribe(ctx context.Context, topic string, handler domain.EventHandler) error {
	delay := resubscribeBaseDelay
	for {
		err := s.consume(ctx, topic, handler)
		if ctx.Err() != nil {
			s.log.Info("Event subscriber stopped", "topic", topic)
			return ctx.Err()
		}
		s.log.Error("Subscription lost, resubscribing", "topic", topic, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > resubscribeMaxDelay {
			delay = resubscribeMaxDelay
		}
	}
}

func (s *RedisEventSubscriber) consume(ctx context.Context, topic string, handler domain.EventHandler) error {
	pubsub := s.client.Subscribe(ctx, topic)
	defer pubsub.Close()

	// Force the SUBSCRIBE round trip so connection errors surface here.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	s.log.Info("Subscribed", "topic", topic)

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				s.log.Error("Failed to decode event envelope", "topic", topic, "error", err)
				continue
			}
			if err := handler(env.Payload); err != nil {
				s.log.Error("Failed to handle event", "topic", topic, "event_id", env.ID, "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
