package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"strangerchat/backend/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps every table in process memory and fans change events out
// to in-process subscribers. It honours the same contract as Service and is
// meant for single-node runs and tests.
type MemoryStore struct {
	mu         sync.Mutex
	waiting    map[string]models.WaitingEntry
	rooms      map[string]models.ChatRoom
	messages   map[string][]models.ChatHistory
	typing     map[[2]string]models.TypingStatus
	online     map[string]models.OnlineUser
	complaints []models.Complaint

	subMu sync.Mutex
	subs  map[string]map[*memorySubscription]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		waiting:  make(map[string]models.WaitingEntry),
		rooms:    make(map[string]models.ChatRoom),
		messages: make(map[string][]models.ChatHistory),
		typing:   make(map[[2]string]models.TypingStatus),
		online:   make(map[string]models.OnlineUser),
		subs:     make(map[string]map[*memorySubscription]struct{}),
	}
}

var _ Storage = (*MemoryStore)(nil)

func (m *MemoryStore) UpsertWaitingEntry(ctx context.Context, entry *models.WaitingEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.mu.Lock()
	m.waiting[entry.SessionID] = *entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) RemoveFromWaitingPool(ctx context.Context, sessionIDs ...string) error {
	m.mu.Lock()
	for _, id := range sessionIDs {
		delete(m.waiting, id)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetWaitingEntries(ctx context.Context, exclude string) ([]models.WaitingEntry, error) {
	m.mu.Lock()
	entries := make([]models.WaitingEntry, 0, len(m.waiting))
	for id, e := range m.waiting {
		if id != exclude {
			entries = append(entries, e)
		}
	}
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].SessionID < entries[j].SessionID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// WaitingCount is a test and admin helper.
func (m *MemoryStore) WaitingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiting)
}

func (m *MemoryStore) ClaimPair(ctx context.Context, room *models.ChatRoom) error {
	if room.RoomID == "" {
		room.RoomID = uuid.New().String()
	}
	if room.StartedAt.IsZero() {
		room.StartedAt = time.Now()
	}
	room.IsActive = true

	m.mu.Lock()
	_, ok1 := m.waiting[room.User1ID]
	_, ok2 := m.waiting[room.User2ID]
	if !ok1 || !ok2 || m.activeRoomLocked(room.User1ID) != nil || m.activeRoomLocked(room.User2ID) != nil {
		m.mu.Unlock()
		return ErrCandidateTaken
	}
	m.rooms[room.RoomID] = *room
	delete(m.waiting, room.User1ID)
	delete(m.waiting, room.User2ID)
	m.mu.Unlock()

	m.publish(models.TableChatRooms, models.ChangeInsert, room,
		SessionRoomsTopic(room.User1ID), SessionRoomsTopic(room.User2ID))
	return nil
}

func (m *MemoryStore) activeRoomLocked(sessionID string) *models.ChatRoom {
	var found *models.ChatRoom
	for _, r := range m.rooms {
		if r.IsActive && r.HasParticipant(sessionID) {
			if found == nil || r.StartedAt.After(found.StartedAt) {
				room := r
				found = &room
			}
		}
	}
	return found
}

func (m *MemoryStore) GetActiveRoomForSession(ctx context.Context, sessionID string) (*models.ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeRoomLocked(sessionID), nil
}

// ActiveRoomsFor counts active rooms naming sessionID.
func (m *MemoryStore) ActiveRoomsFor(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rooms {
		if r.IsActive && r.HasParticipant(sessionID) {
			n++
		}
	}
	return n
}

// RoomCount returns how many rooms were ever created.
func (m *MemoryStore) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

func (m *MemoryStore) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return &r, nil
}

func (m *MemoryStore) GetActiveRooms(ctx context.Context) ([]models.ChatRoom, error) {
	m.mu.Lock()
	rooms := make([]models.ChatRoom, 0, len(m.rooms))
	for _, r := range m.rooms {
		if r.IsActive {
			rooms = append(rooms, r)
		}
	}
	m.mu.Unlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].StartedAt.Before(rooms[j].StartedAt) })
	return rooms, nil
}

func (m *MemoryStore) CloseRoom(ctx context.Context, roomID string) error {
	m.mu.Lock()
	r, ok := m.rooms[roomID]
	if !ok || !r.IsActive {
		m.mu.Unlock()
		return nil
	}
	now := time.Now()
	r.IsActive = false
	r.EndedAt = &now
	m.rooms[roomID] = r
	m.mu.Unlock()

	m.publish(models.TableChatRooms, models.ChangeUpdate, r, RoomTopic(roomID))
	return nil
}

func (m *MemoryStore) SaveMessage(ctx context.Context, msg *models.ChatHistory) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	m.mu.Lock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.messages[msg.RoomID] = append(m.messages[msg.RoomID], *msg)
	m.mu.Unlock()

	m.publish(models.TableMessages, models.ChangeInsert, msg, MessagesTopic(msg.RoomID))
	return nil
}

func (m *MemoryStore) GetChatHistory(ctx context.Context, roomID string) ([]models.ChatHistory, error) {
	m.mu.Lock()
	history := append([]models.ChatHistory(nil), m.messages[roomID]...)
	m.mu.Unlock()

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})
	return history, nil
}

func (m *MemoryStore) UpsertTypingStatus(ctx context.Context, status *models.TypingStatus) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now()
	}
	m.mu.Lock()
	m.typing[[2]string{status.RoomID, status.SessionID}] = *status
	m.mu.Unlock()

	m.publish(models.TableTyping, models.ChangeUpdate, status, TypingTopic(status.RoomID))
	return nil
}

// TypingStatusOf returns the stored typing flag of sessionID in roomID.
func (m *MemoryStore) TypingStatusOf(roomID, sessionID string) (models.TypingStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.typing[[2]string{roomID, sessionID}]
	return st, ok
}

func (m *MemoryStore) UpsertOnlineUser(ctx context.Context, user *models.OnlineUser) error {
	m.mu.Lock()
	m.online[user.SessionID] = *user
	m.mu.Unlock()

	m.publish(models.TableOnlineUsers, models.ChangeUpdate, user, PresenceTopic)
	return nil
}

func (m *MemoryStore) TouchOnlineUser(ctx context.Context, sessionID string, at time.Time) error {
	m.mu.Lock()
	u, ok := m.online[sessionID]
	if ok {
		u.LastSeen = at
		m.online[sessionID] = u
	}
	m.mu.Unlock()

	if ok {
		m.publish(models.TableOnlineUsers, models.ChangeUpdate, u, PresenceTopic)
	}
	return nil
}

func (m *MemoryStore) DeleteOnlineUser(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	u, ok := m.online[sessionID]
	delete(m.online, sessionID)
	m.mu.Unlock()

	if ok {
		m.publish(models.TableOnlineUsers, models.ChangeDelete, u, PresenceTopic)
	}
	return nil
}

func (m *MemoryStore) GetOnlineUser(ctx context.Context, sessionID string) (*models.OnlineUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.online[sessionID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryStore) CountOnlineUsers(ctx context.Context, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.online {
		if !u.LastSeen.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) SaveComplaint(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ComplaintID == "" {
		complaint.ComplaintID = uuid.New().String()
	}
	if complaint.Status == "" {
		complaint.Status = "new"
	}
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = time.Now()
	}
	m.mu.Lock()
	m.complaints = append(m.complaints, *complaint)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetComplaints(ctx context.Context, limit int) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Complaint, 0, len(m.complaints))
	for i := len(m.complaints) - 1; i >= 0; i-- {
		out = append(out, m.complaints[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- change feed ---

type memorySubscription struct {
	store  *MemoryStore
	topics []string
	events chan models.ChangeEvent
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func (m *MemoryStore) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	sub := &memorySubscription{
		store:  m,
		topics: topics,
		events: make(chan models.ChangeEvent, 256),
		done:   make(chan struct{}),
	}

	m.subMu.Lock()
	for _, t := range topics {
		if m.subs[t] == nil {
			m.subs[t] = make(map[*memorySubscription]struct{})
		}
		m.subs[t][sub] = struct{}{}
	}
	m.subMu.Unlock()
	return sub, nil
}

func (s *memorySubscription) Events() <-chan models.ChangeEvent { return s.events }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.store.subMu.Lock()
		for _, t := range s.topics {
			delete(s.store.subs[t], s)
		}
		s.store.subMu.Unlock()

		close(s.done)
		s.wg.Wait()
		close(s.events)
	})
	return nil
}

func (m *MemoryStore) publish(table, kind string, record any, topics ...string) {
	ev, err := newChangeEvent(table, kind, record)
	if err != nil {
		return
	}

	m.subMu.Lock()
	var targets []*memorySubscription
	for _, t := range topics {
		for sub := range m.subs[t] {
			sub.wg.Add(1)
			targets = append(targets, sub)
		}
	}
	m.subMu.Unlock()

	// delivery is best-effort: a full subscriber misses the event and
	// catches up on its next resync
	for _, sub := range targets {
		select {
		case <-sub.done:
		case sub.events <- ev:
		default:
		}
		sub.wg.Done()
	}
}
