package chathub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"strangerchat/backend/internal/complaint"
	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"
)

type State string

const (
	StateIdle         State = "idle"
	StateProfile      State = "profile"
	StateMatching     State = "matching"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
)

// ErrInvalidState is returned when an operation is not allowed in the
// session's current state.
var ErrInvalidState = errors.New("operation not allowed in current state")

const cleanupTimeout = 5 * time.Second

// Message is a chat line as seen by one participant.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	IsOwn     bool      `json:"is_own"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is a copy of the session state handed to transports.
type Snapshot struct {
	SessionID     string              `json:"session_id"`
	State         State               `json:"state"`
	RoomID        string              `json:"room_id,omitempty"`
	Profile       *models.Profile     `json:"profile,omitempty"`
	Partner       *models.PartnerInfo `json:"partner,omitempty"`
	Messages      []Message           `json:"messages"`
	PartnerTyping bool                `json:"partner_typing"`
	PartnerLeft   bool                `json:"partner_left"`
	NoMatchFound  bool                `json:"no_match_found"`
}

// Session is the lifecycle of one anonymous visitor:
// idle -> profile -> matching -> connected -> disconnected -> profile ...
//
// State is guarded by mu; storage calls are always made with mu released.
type Session struct {
	ID         string
	Storage    storage.Storage
	Matcher    *MatcherService
	Complaints *complaint.Service
	Presence   *PresenceTracker

	cfg    config.ChatConfig
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	state         State
	profile       *models.Profile
	roomID        string
	peerID        string
	partner       *models.PartnerInfo
	messages      []Message
	partnerTyping bool
	partnerLeft   bool
	noMatch       bool

	selfTyping  bool
	typingTimer *time.Timer

	// matchGen changes whenever a search is started or abandoned, so a poll
	// result arriving late can tell it is stale.
	matchGen    uint64
	matchCancel context.CancelFunc
	relay       *Relay

	watchers map[chan Snapshot]struct{}
	closed   bool
}

// NewSession creates an idle session and starts its presence heartbeat.
func NewSession(id string, s storage.Storage, matcher *MatcherService, complaints *complaint.Service, cfg config.ChatConfig) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		ID:         id,
		Storage:    s,
		Matcher:    matcher,
		Complaints: complaints,
		Presence:   NewPresenceTracker(s, id, cfg.HeartbeatInterval),
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		state:      StateIdle,
		watchers:   make(map[chan Snapshot]struct{}),
	}
	go sess.Presence.Run(ctx)
	return sess
}

// Start moves the session to profile entry.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle, StateDisconnected, StateProfile:
	default:
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, s.state)
	}
	s.state = StateProfile
	s.partnerLeft = false
	s.noMatch = false
	s.notifyLocked()
	return nil
}

// SubmitProfile validates the profile and starts searching for a peer.
// Validation errors leave the state unchanged.
func (s *Session) SubmitProfile(ctx context.Context, p models.Profile) error {
	profile, err := p.Normalize()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateProfile {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot submit profile while %s", ErrInvalidState, state)
	}
	s.profile = &profile
	s.state = StateMatching
	s.roomID, s.peerID, s.partner = "", "", nil
	s.messages = nil
	s.partnerLeft, s.partnerTyping, s.noMatch = false, false, false
	s.matchGen++
	gen := s.matchGen
	matchCtx, cancel := context.WithCancel(s.ctx)
	s.matchCancel = cancel
	s.notifyLocked()
	s.mu.Unlock()

	if err := s.Presence.Register(ctx, profile); err != nil {
		log.Printf("WARNING: %v", err)
	}

	res, err := s.Matcher.Enqueue(ctx, s.ID, profile)
	if err != nil {
		log.Printf("WARNING: Enqueue of %s failed, will retry: %v", s.ID, err)
		go s.awaitMatch(matchCtx, gen, profile, false)
		return nil
	}
	if res != nil {
		s.connect(gen, res)
		return nil
	}
	if s.discardStaleSearch(gen) {
		return nil
	}
	go s.awaitMatch(matchCtx, gen, profile, true)
	return nil
}

func (s *Session) awaitMatch(ctx context.Context, gen uint64, profile models.Profile, enqueued bool) {
	for !enqueued {
		select {
		case <-ctx.Done():
			s.discardStaleSearch(gen)
			return
		case <-time.After(s.Matcher.PollInterval):
		}
		res, err := s.Matcher.Enqueue(ctx, s.ID, profile)
		if err != nil {
			log.Printf("WARNING: Enqueue of %s failed, will retry: %v", s.ID, err)
			continue
		}
		if res != nil {
			s.connect(gen, res)
			return
		}
		if s.discardStaleSearch(gen) {
			return
		}
		enqueued = true
	}

	res, err := s.Matcher.PollUntilPaired(ctx, s.ID, profile)
	switch {
	case err == nil:
		s.connect(gen, res)
	case errors.Is(err, ErrNoMatchFound):
		s.matchTimedOut(gen)
	default:
		s.discardStaleSearch(gen)
	}
}

// discardStaleSearch undoes a waiting entry written after the search it
// belonged to was abandoned: the abandoning call left the pool before the
// write landed. It reports whether search gen is stale. A newer search owns
// the entry, so it is left alone.
func (s *Session) discardStaleSearch(gen uint64) bool {
	s.mu.Lock()
	stale := s.closed || gen != s.matchGen
	searching := !s.closed && s.state == StateMatching
	current := s.roomID
	s.mu.Unlock()
	if !stale {
		return false
	}
	if searching {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := s.Matcher.Leave(ctx, s.ID); err != nil {
		log.Printf("WARNING: %v", err)
	}
	// somebody may have claimed the entry before it was removed
	room, err := s.Storage.GetActiveRoomForSession(ctx, s.ID)
	if err != nil {
		log.Printf("WARNING: Failed to check for a late match: %v", err)
		return true
	}
	if room != nil && room.RoomID != current {
		log.Printf("WARNING: Closing room %s claimed from an abandoned search of %s", room.RoomID, s.ID)
		if err := s.Storage.CloseRoom(ctx, room.RoomID); err != nil {
			log.Printf("ERROR: Failed to close room %s: %v", room.RoomID, err)
		}
	}
	return true
}

func (s *Session) matchTimedOut(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.matchGen || s.state != StateMatching {
		return
	}
	s.state = StateProfile
	s.noMatch = true
	s.matchCancel = nil
	s.notifyLocked()
}

// connect moves a matching session into the room it was paired into and
// attaches the relay.
func (s *Session) connect(gen uint64, res *MatchResult) {
	roomID := res.Room.RoomID

	s.mu.Lock()
	if s.closed || gen != s.matchGen || s.state != StateMatching {
		s.mu.Unlock()
		log.Printf("WARNING: Dropping stale match %s for session %s", roomID, s.ID)
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := s.Storage.CloseRoom(ctx, roomID); err != nil {
			log.Printf("ERROR: Failed to close stale room %s: %v", roomID, err)
		}
		return
	}
	if s.matchCancel != nil {
		s.matchCancel()
		s.matchCancel = nil
	}
	s.state = StateConnected
	s.roomID = roomID
	s.peerID = res.PeerID
	partner := res.Peer
	s.partner = &partner
	s.notifyLocked()
	s.mu.Unlock()

	relay := StartRelay(s.ctx, s.Storage, s.ID, roomID, s.cfg.RelayResyncInterval, RelayHooks{
		OnHistory:    func(h []models.ChatHistory) { s.onHistory(roomID, h) },
		OnMessage:    func(m models.ChatHistory) { s.onPeerMessage(roomID, m) },
		OnRoomClosed: func() { s.onRoomClosed(roomID) },
		OnPeerTyping: func(typing bool) { s.onPeerTyping(roomID, typing) },
	})

	s.mu.Lock()
	if s.roomID != roomID || s.state != StateConnected {
		s.mu.Unlock()
		relay.Stop()
		return
	}
	s.relay = relay
	s.mu.Unlock()
}

func (s *Session) onHistory(roomID string, history []models.ChatHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomID != roomID {
		return
	}
	messages := make([]Message, 0, len(history)+len(s.messages))
	loaded := make(map[string]struct{}, len(history))
	for _, h := range history {
		messages = append(messages, s.toMessage(h))
		loaded[h.ID] = struct{}{}
	}
	// messages sent after the read are already shown and must stay
	for _, m := range s.messages {
		if _, ok := loaded[m.ID]; !ok {
			messages = append(messages, m)
		}
	}
	s.messages = messages
	s.notifyLocked()
}

func (s *Session) onPeerMessage(roomID string, msg models.ChatHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomID != roomID || s.state != StateConnected {
		return
	}
	if s.appendLocked(s.toMessage(msg)) {
		s.notifyLocked()
	}
}

func (s *Session) onPeerTyping(roomID string, typing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomID != roomID || s.state != StateConnected || s.partnerTyping == typing {
		return
	}
	s.partnerTyping = typing
	s.notifyLocked()
}

// onRoomClosed handles the peer ending the room. The room id is kept so the
// transcript stays attached to the snapshot.
func (s *Session) onRoomClosed(roomID string) {
	s.mu.Lock()
	if s.roomID != roomID || s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateDisconnected
	s.partnerLeft = true
	s.partnerTyping = false
	s.stopTypingLocked()
	relay := s.relay
	s.relay = nil
	s.notifyLocked()
	s.mu.Unlock()

	log.Printf("INFO: Partner left room %s, session %s disconnected", roomID, s.ID)
	if relay != nil {
		relay.Stop()
	}
}

// SendMessage posts text to the current room. Blank text and sending outside a
// room are silently ignored.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	content := strings.TrimSpace(text)
	if content == "" {
		return nil
	}

	s.mu.Lock()
	roomID := s.roomID
	connected := s.state == StateConnected
	s.mu.Unlock()
	if !connected || roomID == "" {
		return nil
	}

	msg := &models.ChatHistory{RoomID: roomID, SenderID: s.ID, Content: content}
	if err := s.Storage.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	s.mu.Lock()
	if s.roomID == roomID && s.appendLocked(s.toMessage(*msg)) {
		s.notifyLocked()
	}
	s.mu.Unlock()

	return s.SetTyping(ctx, false)
}

// SetTyping stores the typing flag for the current room.
func (s *Session) SetTyping(ctx context.Context, isTyping bool) error {
	s.mu.Lock()
	if s.state != StateConnected || s.roomID == "" {
		s.mu.Unlock()
		return nil
	}
	roomID := s.roomID
	s.selfTyping = isTyping
	if !isTyping {
		s.stopTypingLocked()
	}
	s.mu.Unlock()

	err := s.Storage.UpsertTypingStatus(ctx, &models.TypingStatus{
		RoomID:    roomID,
		SessionID: s.ID,
		IsTyping:  isTyping,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to update typing status: %w", err)
	}
	return nil
}

// Typing is called on every keystroke. It raises the typing flag once and
// lowers it after TypingIdleTimeout without further calls.
func (s *Session) Typing(ctx context.Context) error {
	idle := s.cfg.TypingIdleTimeout
	if idle <= 0 {
		idle = config.DefaultTypingIdleTimeout
	}

	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return nil
	}
	already := s.selfTyping
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(idle, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := s.SetTyping(ctx, false); err != nil {
			log.Printf("WARNING: %v", err)
		}
	})
	s.mu.Unlock()

	if already {
		return nil
	}
	return s.SetTyping(ctx, true)
}

// Disconnect ends the current room or search.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateMatching && s.state != StateConnected {
		s.mu.Unlock()
		return nil
	}
	wasMatching := s.state == StateMatching
	roomID, cancel, relay := s.detachLocked()
	s.state = StateDisconnected
	s.notifyLocked()
	s.mu.Unlock()

	s.release(ctx, wasMatching, roomID, cancel, relay)
	log.Printf("INFO: Session %s disconnected", s.ID)
	return nil
}

// Report files a complaint against the current peer and then disconnects.
func (s *Session) Report(ctx context.Context, reason string) error {
	s.mu.Lock()
	roomID, peerID := s.roomID, s.peerID
	ok := s.state == StateConnected && roomID != "" && peerID != ""
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: nobody to report", ErrInvalidState)
	}

	_, err := s.Complaints.HandleComplaint(ctx, complaint.Report{
		RoomID:     roomID,
		ReporterID: s.ID,
		TargetID:   peerID,
		Reason:     reason,
	})
	if derr := s.Disconnect(ctx); derr != nil {
		log.Printf("WARNING: %v", derr)
	}
	if err != nil {
		return fmt.Errorf("failed to file report: %w", err)
	}
	return nil
}

// FindNew abandons whatever the session is doing and returns to profile entry
// with a clean slate.
func (s *Session) FindNew(ctx context.Context) error {
	s.mu.Lock()
	wasMatching := s.state == StateMatching
	roomID, cancel, relay := s.detachLocked()
	s.state = StateProfile
	s.profile = nil
	s.partner = nil
	s.messages = nil
	s.partnerLeft = false
	s.noMatch = false
	s.notifyLocked()
	s.mu.Unlock()

	s.release(ctx, wasMatching, roomID, cancel, relay)
	return nil
}

// Close tears the session down for good: search and room are ended, presence
// is removed and watchers are closed.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	wasMatching := s.state == StateMatching
	roomID, cancel, relay := s.detachLocked()
	s.closed = true
	for ch := range s.watchers {
		close(ch)
	}
	s.watchers = nil
	s.mu.Unlock()

	s.release(ctx, wasMatching, roomID, cancel, relay)
	if err := s.Presence.Unregister(ctx); err != nil {
		log.Printf("WARNING: %v", err)
	}
	s.cancel()
	log.Printf("INFO: Session %s closed", s.ID)
}

// detachLocked clears room, peer and search bookkeeping and returns what
// release needs to undo.
func (s *Session) detachLocked() (string, context.CancelFunc, *Relay) {
	roomID, cancel, relay := s.roomID, s.matchCancel, s.relay
	s.roomID, s.peerID = "", ""
	s.relay, s.matchCancel = nil, nil
	s.partnerTyping = false
	s.matchGen++
	s.stopTypingLocked()
	return roomID, cancel, relay
}

// release performs the storage side of leaving a room or search.
func (s *Session) release(ctx context.Context, wasMatching bool, roomID string, cancel context.CancelFunc, relay *Relay) {
	if cancel != nil {
		cancel()
	}
	if relay != nil {
		relay.Stop()
	}
	if err := s.Matcher.Leave(ctx, s.ID); err != nil {
		log.Printf("WARNING: %v", err)
	}
	// a peer may have claimed us while we were leaving
	if wasMatching && roomID == "" {
		room, err := s.Storage.GetActiveRoomForSession(ctx, s.ID)
		if err != nil {
			log.Printf("WARNING: Failed to check for a late match: %v", err)
		} else if room != nil {
			roomID = room.RoomID
		}
	}
	if roomID != "" {
		if err := s.Storage.CloseRoom(ctx, roomID); err != nil {
			log.Printf("ERROR: Failed to close room %s: %v", roomID, err)
		}
	}
}

func (s *Session) stopTypingLocked() {
	s.selfTyping = false
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
}

func (s *Session) toMessage(h models.ChatHistory) Message {
	return Message{ID: h.ID, Content: h.Content, IsOwn: h.SenderID == s.ID, Timestamp: h.CreatedAt}
}

// appendLocked adds msg unless a message with the same id is already shown.
func (s *Session) appendLocked(msg Message) bool {
	for _, m := range s.messages {
		if m.ID == msg.ID {
			return false
		}
	}
	s.messages = append(s.messages, msg)
	return true
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:     s.ID,
		State:         s.state,
		RoomID:        s.roomID,
		Messages:      append([]Message{}, s.messages...),
		PartnerTyping: s.partnerTyping,
		PartnerLeft:   s.partnerLeft,
		NoMatchFound:  s.noMatch,
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	if s.partner != nil {
		p := *s.partner
		snap.Partner = &p
	}
	return snap
}

// Watch returns a channel carrying the latest snapshot after every change,
// starting with the current one. Slow readers only miss intermediate states.
// The returned func stops the watch; Close stops all of them.
func (s *Session) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.watchers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.watchers[ch]; ok {
				delete(s.watchers, ch)
				close(ch)
			}
		})
	}
	return ch, stop
}

func (s *Session) notifyLocked() {
	snap := s.snapshotLocked()
	for ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
