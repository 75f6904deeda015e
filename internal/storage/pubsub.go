package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"strangerchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// publish sends a change event for record on every topic. Failures are only
// logged: readers recover by polling.
func (s *Service) publish(ctx context.Context, table, kind string, record any, topics ...string) {
	ev, err := newChangeEvent(table, kind, record)
	if err != nil {
		log.Printf("ERROR: Failed to encode %s change: %v", table, err)
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("ERROR: Failed to encode %s change: %v", table, err)
		return
	}
	for _, topic := range topics {
		if err := s.Redis.Publish(ctx, topic, payload).Err(); err != nil {
			log.Printf("WARNING: Failed to publish %s change to %s: %v", table, topic, err)
		}
	}
}

func newChangeEvent(table, kind string, record any) (models.ChangeEvent, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return models.ChangeEvent{}, err
	}
	return models.ChangeEvent{Table: table, Type: kind, Record: raw}, nil
}

// Subscribe opens a Redis subscription on topics and waits for the server to
// confirm it, so no event published after Subscribe returns is missed.
func (s *Service) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	pubsub := s.Redis.Subscribe(ctx, topics...)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %v: %w", topics, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan models.ChangeEvent, 64),
		done:   make(chan struct{}),
	}
	go sub.pump()
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan models.ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (r *redisSubscription) Events() <-chan models.ChangeEvent { return r.events }

func (r *redisSubscription) Close() error {
	var err error
	r.once.Do(func() {
		close(r.done)
		err = r.pubsub.Close()
	})
	return err
}

func (r *redisSubscription) pump() {
	defer close(r.events)

	for msg := range r.pubsub.Channel() {
		var ev models.ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Printf("Error unmarshalling Redis message: %v", err)
			continue
		}
		select {
		case r.events <- ev:
		case <-r.done:
			return
		}
	}
}
