package chathub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"

	"github.com/google/uuid"
)

// ErrNoMatchFound is returned by PollUntilPaired when MatchTimeout elapses.
var ErrNoMatchFound = errors.New("no match found")

// MatchResult describes a freshly paired room from the point of view of one
// participant.
type MatchResult struct {
	Room   *models.ChatRoom
	PeerID string
	Peer   models.PartnerInfo
}

// MatcherService pairs waiting sessions. All shared state lives in storage,
// so any number of processes can run a matcher against the same pool.
type MatcherService struct {
	Storage storage.Storage

	PollInterval time.Duration
	// MatchTimeout bounds PollUntilPaired. Zero waits until cancelled.
	MatchTimeout time.Duration

	now func() time.Time
}

// NewMatcherService creates a matcher with intervals taken from cfg.
func NewMatcherService(s storage.Storage, cfg config.ChatConfig) *MatcherService {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = config.DefaultPollInterval
	}
	return &MatcherService{
		Storage:      s,
		PollInterval: poll,
		MatchTimeout: cfg.MatchTimeout,
		now:          time.Now,
	}
}

// IsMatch reports whether a and b accept each other. It is symmetric.
func IsMatch(a, b models.Profile) bool {
	return a.LookingFor.Accepts(b.Gender) && b.LookingFor.Accepts(a.Gender)
}

// Enqueue puts the session into the waiting pool (replacing any earlier entry)
// and makes one pairing attempt. A nil result with a nil error means the
// session is now waiting.
func (m *MatcherService) Enqueue(ctx context.Context, sessionID string, profile models.Profile) (*MatchResult, error) {
	entry := models.NewWaitingEntry(sessionID, profile, m.now())
	if err := m.Storage.UpsertWaitingEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to enter waiting pool: %w", err)
	}
	log.Printf("New match request added to queue: %s", sessionID)

	return m.tryMatch(ctx, sessionID, profile)
}

// tryMatch scans the other waiting entries oldest first and claims the first
// compatible one. Losing the claim is not an error: the next poll will either
// find the room somebody else created for us or try again.
func (m *MatcherService) tryMatch(ctx context.Context, sessionID string, profile models.Profile) (*MatchResult, error) {
	entries, err := m.Storage.GetWaitingEntries(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read waiting pool: %w", err)
	}

	for _, candidate := range entries {
		if !IsMatch(profile, candidate.Profile()) {
			continue
		}

		room := &models.ChatRoom{
			RoomID:    uuid.New().String(),
			User1ID:   sessionID,
			User2ID:   candidate.SessionID,
			StartedAt: m.now(),
		}
		err := m.Storage.ClaimPair(ctx, room)
		if errors.Is(err, storage.ErrCandidateTaken) {
			log.Printf("INFO: Candidate %s was taken before %s could claim it", candidate.SessionID, sessionID)
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create room: %w", err)
		}

		log.Printf("Match found: %s and %s in room %s", sessionID, candidate.SessionID, room.RoomID)
		return &MatchResult{
			Room:   room,
			PeerID: candidate.SessionID,
			Peer:   models.PartnerInfoFrom(candidate.Name, candidate.Location, candidate.Gender),
		}, nil
	}
	return nil, nil
}

// PollUntilPaired waits for the session to be paired, either by a room some
// other session created for it or by its own pairing attempt. It returns
// ctx.Err() when cancelled and ErrNoMatchFound on timeout; in the latter case
// the session has already left the pool.
func (m *MatcherService) PollUntilPaired(ctx context.Context, sessionID string, profile models.Profile) (*MatchResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wake := m.watchClaims(ctx, sessionID)

	ticker := time.NewTicker(m.PollInterval)
	defer ticker.Stop()

	var timeout <-chan time.Time
	if m.MatchTimeout > 0 {
		timer := time.NewTimer(m.MatchTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return m.giveUp(ctx, sessionID)
		case <-ticker.C:
		case <-wake:
		}

		res, err := m.pollOnce(ctx, sessionID, profile)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("WARNING: Match poll for %s failed, retrying: %v", sessionID, err)
			continue
		}
		if res != nil {
			return res, nil
		}
	}
}

func (m *MatcherService) pollOnce(ctx context.Context, sessionID string, profile models.Profile) (*MatchResult, error) {
	room, err := m.Storage.GetActiveRoomForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if room != nil {
		return m.claimedResult(ctx, sessionID, room), nil
	}
	return m.tryMatch(ctx, sessionID, profile)
}

// claimedResult builds the result for a session that was paired by its peer.
func (m *MatcherService) claimedResult(ctx context.Context, sessionID string, room *models.ChatRoom) *MatchResult {
	if err := m.Storage.RemoveFromWaitingPool(ctx, sessionID); err != nil {
		log.Printf("WARNING: Failed to remove %s from waiting pool: %v", sessionID, err)
	}
	peerID := room.PeerOf(sessionID)
	log.Printf("Session %s joined room %s with %s", sessionID, room.RoomID, peerID)
	return &MatchResult{Room: room, PeerID: peerID, Peer: m.PeerInfo(ctx, peerID)}
}

// giveUp leaves the pool first and only then checks for a room: a claim needs
// our waiting entry, so once it is gone no new room can appear.
func (m *MatcherService) giveUp(ctx context.Context, sessionID string) (*MatchResult, error) {
	if err := m.Leave(ctx, sessionID); err != nil {
		log.Printf("WARNING: Failed to leave waiting pool after timeout: %v", err)
	}
	room, err := m.Storage.GetActiveRoomForSession(ctx, sessionID)
	if err == nil && room != nil {
		return m.claimedResult(ctx, sessionID, room), nil
	}
	log.Printf("INFO: No match for %s within %s", sessionID, m.MatchTimeout)
	return nil, ErrNoMatchFound
}

// PeerInfo looks the peer up in presence and falls back to placeholders.
func (m *MatcherService) PeerInfo(ctx context.Context, peerID string) models.PartnerInfo {
	user, err := m.Storage.GetOnlineUser(ctx, peerID)
	if err != nil {
		log.Printf("WARNING: Failed to load profile of %s: %v", peerID, err)
	}
	if user == nil {
		return models.PartnerInfoFrom("", "", "")
	}
	return models.PartnerInfoFrom(user.Name, user.Location, user.Gender)
}

// Leave removes the session from the waiting pool. Leaving twice is fine.
func (m *MatcherService) Leave(ctx context.Context, sessionID string) error {
	if err := m.Storage.RemoveFromWaitingPool(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to leave waiting pool: %w", err)
	}
	return nil
}

// watchClaims signals when a room naming the session is inserted so the poll
// loop can react before the next tick. It is best-effort: without a feed the
// ticker still finds the room.
func (m *MatcherService) watchClaims(ctx context.Context, sessionID string) <-chan struct{} {
	wake := make(chan struct{}, 1)

	sub, err := m.Storage.Subscribe(ctx, storage.SessionRoomsTopic(sessionID))
	if err != nil {
		log.Printf("WARNING: Room notifications unavailable for %s: %v", sessionID, err)
		return wake
	}

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.Events():
				if !ok {
					return
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			}
		}
	}()
	return wake
}
