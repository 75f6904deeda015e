package chathub

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"
)

// PresenceTracker keeps one session's online record fresh.
type PresenceTracker struct {
	Storage   storage.Storage
	SessionID string
	Interval  time.Duration

	now func() time.Time
}

func NewPresenceTracker(s storage.Storage, sessionID string, interval time.Duration) *PresenceTracker {
	if interval <= 0 {
		interval = config.DefaultHeartbeatInterval
	}
	return &PresenceTracker{Storage: s, SessionID: sessionID, Interval: interval, now: time.Now}
}

// Register writes (or replaces) the online record with the given profile.
func (p *PresenceTracker) Register(ctx context.Context, profile models.Profile) error {
	if err := p.Storage.UpsertOnlineUser(ctx, models.NewOnlineUser(p.SessionID, profile, p.now())); err != nil {
		return fmt.Errorf("failed to register presence: %w", err)
	}
	return nil
}

// Heartbeat refreshes last_seen. Before Register it does nothing.
func (p *PresenceTracker) Heartbeat(ctx context.Context) error {
	if err := p.Storage.TouchOnlineUser(ctx, p.SessionID, p.now()); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}
	return nil
}

// Run heartbeats every Interval until ctx is done. A failed tick is retried on
// the next one.
func (p *PresenceTracker) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Heartbeat(ctx); err != nil && ctx.Err() == nil {
				log.Printf("WARNING: %v", err)
			}
		}
	}
}

func (p *PresenceTracker) Unregister(ctx context.Context) error {
	if err := p.Storage.DeleteOnlineUser(ctx, p.SessionID); err != nil {
		return fmt.Errorf("failed to unregister presence: %w", err)
	}
	return nil
}

// OnlineCounter caches the number of sessions seen within TTL.
type OnlineCounter struct {
	Storage  storage.Storage
	TTL      time.Duration
	Interval time.Duration

	now   func() time.Time
	value atomic.Int64
}

func NewOnlineCounter(s storage.Storage, cfg config.ChatConfig) *OnlineCounter {
	ttl, interval := cfg.PresenceTTL, cfg.CountRefreshInterval
	if ttl <= 0 {
		ttl = config.DefaultPresenceTTL
	}
	if interval <= 0 {
		interval = config.DefaultCountRefreshInterval
	}
	return &OnlineCounter{Storage: s, TTL: ttl, Interval: interval, now: time.Now}
}

// Count recomputes the number of live presence records and caches it.
func (c *OnlineCounter) Count(ctx context.Context) (int64, error) {
	n, err := c.Storage.CountOnlineUsers(ctx, c.now().Add(-c.TTL))
	if err != nil {
		return c.value.Load(), fmt.Errorf("failed to count online users: %w", err)
	}
	c.value.Store(n)
	return n, nil
}

// Value returns the last computed count.
func (c *OnlineCounter) Value() int64 {
	return c.value.Load()
}

// Run recounts every Interval and whenever a presence record changes.
func (c *OnlineCounter) Run(ctx context.Context) {
	c.recount(ctx)

	var events <-chan models.ChangeEvent
	sub, err := c.Storage.Subscribe(ctx, storage.PresenceTopic)
	if err != nil {
		log.Printf("WARNING: Presence notifications unavailable, counting on interval only: %v", err)
	} else {
		defer sub.Close()
		events = sub.Events()
	}

	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.recount(ctx)
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.recount(ctx)
		}
	}
}

func (c *OnlineCounter) recount(ctx context.Context) {
	if _, err := c.Count(ctx); err != nil && ctx.Err() == nil {
		log.Printf("WARNING: %v", err)
	}
}
