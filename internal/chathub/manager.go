package chathub

import (
	"context"
	"log"
	"sync"
	"time"

	"strangerchat/backend/internal/complaint"
	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/storage"
)

// ManagerService is the process-wide registry of sessions and the clients
// attached to them.
type ManagerService struct {
	Storage    storage.Storage
	Matcher    *MatcherService
	Complaints *complaint.Service
	Config     config.ChatConfig

	mu       sync.Mutex
	sessions map[string]*Session
	clients  map[string]Client
	idle     map[string]*time.Timer
}

func NewManagerService(s storage.Storage, cfg config.ChatConfig) *ManagerService {
	return &ManagerService{
		Storage:    s,
		Matcher:    NewMatcherService(s, cfg),
		Complaints: complaint.NewService(s),
		Config:     cfg,
		sessions:   make(map[string]*Session),
		clients:    make(map[string]Client),
		idle:       make(map[string]*time.Timer),
	}
}

// Session returns the session registered under id, creating it if needed.
func (m *ManagerService) Session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionLocked(id)
}

func (m *ManagerService) sessionLocked(id string) *Session {
	if sess, ok := m.sessions[id]; ok {
		return sess
	}
	sess := NewSession(id, m.Storage, m.Matcher, m.Complaints, m.Config)
	m.sessions[id] = sess
	log.Printf("Session %s registered", id)
	return sess
}

// Lookup returns an existing session.
func (m *ManagerService) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Attach binds c to its session. A client already attached to the same session
// is closed, so a reconnect takes over from a stale connection.
func (m *ManagerService) Attach(c Client) *Session {
	id := c.GetSessionID()

	m.mu.Lock()
	if t, ok := m.idle[id]; ok {
		t.Stop()
		delete(m.idle, id)
	}
	old := m.clients[id]
	m.clients[id] = c
	sess := m.sessionLocked(id)
	m.mu.Unlock()

	if old != nil && old != c {
		log.Printf("INFO: Client for session %s replaced", id)
		old.Close()
	}
	return sess
}

// Detach unbinds c. If no other client attaches within DetachGrace the session
// is ended.
func (m *ManagerService) Detach(c Client) {
	id := c.GetSessionID()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clients[id] != c {
		return
	}
	delete(m.clients, id)

	grace := m.Config.DetachGrace
	if grace <= 0 {
		grace = config.DefaultDetachGrace
	}
	m.idle[id] = time.AfterFunc(grace, func() {
		m.mu.Lock()
		_, attached := m.clients[id]
		delete(m.idle, id)
		m.mu.Unlock()
		if attached {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		m.End(ctx, id)
	})
}

// End closes the session and forgets it. Unknown ids still have their presence
// record removed, which is what the unload beacon relies on.
func (m *ManagerService) End(ctx context.Context, id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	client := m.clients[id]
	delete(m.clients, id)
	if t, found := m.idle[id]; found {
		t.Stop()
		delete(m.idle, id)
	}
	m.mu.Unlock()

	if client != nil {
		client.Close()
	}
	if ok {
		sess.Close(ctx)
		return
	}
	if err := NewPresenceTracker(m.Storage, id, 0).Unregister(ctx); err != nil {
		log.Printf("WARNING: %v", err)
	}
}

// Count returns the number of registered sessions.
func (m *ManagerService) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown ends every session.
func (m *ManagerService) Shutdown(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.End(ctx, id)
	}
	log.Printf("Manager shut down, %d sessions ended", len(ids))
}

// SweepAbandonedRooms closes active rooms in which a participant has no fresh
// presence record, e.g. after a crashed client or a restarted server. The
// surviving peer sees the close as partner-left.
func (m *ManagerService) SweepAbandonedRooms(ctx context.Context) (int, error) {
	ttl := m.Config.PresenceTTL
	if ttl <= 0 {
		ttl = config.DefaultPresenceTTL
	}
	cutoff := time.Now().Add(-ttl)

	rooms, err := m.Storage.GetActiveRooms(ctx)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, room := range rooms {
		if m.isLive(ctx, room.User1ID, cutoff) && m.isLive(ctx, room.User2ID, cutoff) {
			continue
		}
		if err := m.Storage.CloseRoom(ctx, room.RoomID); err != nil {
			log.Printf("ERROR: Failed to close abandoned room %s: %v", room.RoomID, err)
			continue
		}
		log.Printf("Closed abandoned room %s between %s and %s.", room.RoomID, room.User1ID, room.User2ID)
		closed++
	}
	return closed, nil
}

func (m *ManagerService) isLive(ctx context.Context, sessionID string, cutoff time.Time) bool {
	user, err := m.Storage.GetOnlineUser(ctx, sessionID)
	if err != nil {
		// unknown is not the same as gone
		return true
	}
	return user != nil && !user.LastSeen.Before(cutoff)
}

// RunSweeper runs SweepAbandonedRooms every interval until ctx is done.
func (m *ManagerService) RunSweeper(ctx context.Context, interval time.Duration) {
	log.Println("Abandoned room sweeper started.")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.SweepAbandonedRooms(ctx); err != nil && ctx.Err() == nil {
				log.Printf("WARNING: Room sweep failed: %v", err)
			}
		}
	}
}
