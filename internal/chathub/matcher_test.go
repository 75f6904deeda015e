package chathub_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestIsMatch(t *testing.T) {
	tests := []struct {
		name string
		a, b models.Profile
		want bool
	}{
		{"mutual opposite", profile("a", models.GenderMale, models.LookingForFemale), profile("b", models.GenderFemale, models.LookingForMale), true},
		{"both everyone", profile("a", models.GenderOther, models.LookingForEveryone), profile("b", models.GenderMale, models.LookingForEveryone), true},
		{"one sided", profile("a", models.GenderMale, models.LookingForFemale), profile("b", models.GenderFemale, models.LookingForFemale), false},
		{"same preference", profile("a", models.GenderMale, models.LookingForFemale), profile("b", models.GenderMale, models.LookingForFemale), false},
		{"other needs everyone", profile("a", models.GenderOther, models.LookingForEveryone), profile("b", models.GenderMale, models.LookingForFemale), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chathub.IsMatch(tt.a, tt.b))
			assert.Equal(t, tt.want, chathub.IsMatch(tt.b, tt.a), "IsMatch must be symmetric")
		})
	}
}

func TestMatcher_EnqueueIntoEmptyPoolWaits(t *testing.T) {
	store := storage.NewMemoryStore()
	m := chathub.NewMatcherService(store, testConfig())

	res, err := m.Enqueue(context.Background(), "a", profile("A", models.GenderMale, models.LookingForFemale))
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 1, store.WaitingCount())
}

func TestMatcher_CompatiblePair(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := chathub.NewMatcherService(store, testConfig())

	res, err := m.Enqueue(ctx, "a", profile("Anna", models.GenderFemale, models.LookingForMale))
	require.NoError(t, err)
	require.Nil(t, res)

	res, err = m.Enqueue(ctx, "b", profile("Bohdan", models.GenderMale, models.LookingForFemale))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "a", res.PeerID)
	assert.Equal(t, "Anna", res.Peer.Name)
	assert.Equal(t, models.GenderFemale, res.Peer.Gender)
	assert.True(t, res.Room.IsActive)
	assert.Equal(t, 0, store.WaitingCount(), "both sessions leave the pool")

	// the claimed side discovers the room on its next poll
	claimed, err := m.PollUntilPaired(ctx, "a", profile("Anna", models.GenderFemale, models.LookingForMale))
	require.NoError(t, err)
	assert.Equal(t, res.Room.RoomID, claimed.Room.RoomID)
	assert.Equal(t, "b", claimed.PeerID)
}

func TestMatcher_IncompatibleBothWait(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := chathub.NewMatcherService(store, testConfig())

	res, err := m.Enqueue(ctx, "a", profile("A", models.GenderMale, models.LookingForFemale))
	require.NoError(t, err)
	assert.Nil(t, res)
	res, err = m.Enqueue(ctx, "b", profile("B", models.GenderMale, models.LookingForFemale))
	require.NoError(t, err)
	assert.Nil(t, res)

	assert.Equal(t, 2, store.WaitingCount())
	assert.Equal(t, 0, store.RoomCount())
}

func TestMatcher_OldestCandidateFirst(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := chathub.NewMatcherService(store, testConfig())
	t0 := time.Now()

	everyone := profile("x", models.GenderOther, models.LookingForEveryone)
	require.NoError(t, store.UpsertWaitingEntry(ctx, models.NewWaitingEntry("newer", everyone, t0)))
	require.NoError(t, store.UpsertWaitingEntry(ctx, models.NewWaitingEntry("older", everyone, t0.Add(-time.Minute))))

	res, err := m.Enqueue(ctx, "me", everyone)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "older", res.PeerID)
}

func TestMatcher_ClaimedPeerInfoFromPresence(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := chathub.NewMatcherService(store, testConfig())

	p := profile("B", models.GenderMale, models.LookingForEveryone)
	require.NoError(t, store.UpsertOnlineUser(ctx, models.NewOnlineUser("b", p, time.Now())))

	room := &models.ChatRoom{User1ID: "b", User2ID: "a"}
	require.NoError(t, store.UpsertWaitingEntry(ctx, models.NewWaitingEntry("a", p, time.Now())))
	require.NoError(t, store.UpsertWaitingEntry(ctx, models.NewWaitingEntry("b", p, time.Now())))
	require.NoError(t, store.ClaimPair(ctx, room))

	res, err := m.PollUntilPaired(ctx, "a", p)
	require.NoError(t, err)
	assert.Equal(t, models.PartnerInfo{Name: "B", Location: "Kyiv", Gender: models.GenderMale}, res.Peer)
}

func TestMatcher_PeerInfoPlaceholders(t *testing.T) {
	m := chathub.NewMatcherService(storage.NewMemoryStore(), testConfig())

	info := m.PeerInfo(context.Background(), "never-registered")
	assert.Equal(t, models.UnknownPartnerName, info.Name)
	assert.Equal(t, models.UnknownPartnerLocation, info.Location)
	assert.Equal(t, models.GenderOther, info.Gender)
}

func TestMatcher_PollTimesOut(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	cfg := testConfig()
	cfg.MatchTimeout = 50 * time.Millisecond
	m := chathub.NewMatcherService(store, cfg)

	p := profile("A", models.GenderMale, models.LookingForFemale)
	_, err := m.Enqueue(ctx, "a", p)
	require.NoError(t, err)

	res, err := m.PollUntilPaired(ctx, "a", p)
	assert.ErrorIs(t, err, chathub.ErrNoMatchFound)
	assert.Nil(t, res)
	assert.Equal(t, 0, store.WaitingCount(), "a timed out session leaves the pool")
}

func TestMatcher_PollStopsOnCancel(t *testing.T) {
	store := storage.NewMemoryStore()
	m := chathub.NewMatcherService(store, testConfig())
	p := profile("A", models.GenderMale, models.LookingForFemale)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.PollUntilPaired(ctx, "a", p)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("poll loop did not stop")
	}
}

func TestMatcher_ConcurrentEnqueueNeverDoubleBooks(t *testing.T) {
	store := storage.NewMemoryStore()
	cfg := testConfig()
	cfg.PollInterval = 2 * time.Millisecond
	cfg.MatchTimeout = time.Second
	m := chathub.NewMatcherService(store, cfg)
	everyone := profile("x", models.GenderOther, models.LookingForEveryone)

	const n = 20
	var mu sync.Mutex
	results := make(map[string]*chathub.MatchResult)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ctx := context.Background()
			res, err := m.Enqueue(ctx, id, everyone)
			if assert.NoError(t, err) && res == nil {
				res, err = m.PollUntilPaired(ctx, id, everyone)
				if errors.Is(err, chathub.ErrNoMatchFound) {
					return
				}
				assert.NoError(t, err)
			}
			if res != nil {
				mu.Lock()
				results[id] = res
				mu.Unlock()
			}
		}(fmt.Sprintf("s%02d", i))
	}
	wg.Wait()

	assert.Equal(t, n, len(results), "every session finds a partner")
	for id, res := range results {
		assert.LessOrEqual(t, store.ActiveRoomsFor(id), 1, "session %s is in more than one room", id)
		peer, ok := results[res.PeerID]
		if assert.True(t, ok, "peer %s of %s never saw the room", res.PeerID, id) {
			assert.Equal(t, res.Room.RoomID, peer.Room.RoomID)
			assert.Equal(t, id, peer.PeerID)
		}
	}
	assert.Equal(t, n/2, store.RoomCount())
}

func TestMatcher_LostClaimIsNotAnError(t *testing.T) {
	ctx := context.Background()
	storageMock := new(MockStorage)
	m := chathub.NewMatcherService(storageMock, testConfig())
	p := profile("A", models.GenderOther, models.LookingForEveryone)

	storageMock.On("UpsertWaitingEntry", mock.Anything, mock.AnythingOfType("*models.WaitingEntry")).Return(nil)
	storageMock.On("GetWaitingEntries", mock.Anything, "a").
		Return([]models.WaitingEntry{*models.NewWaitingEntry("b", p, time.Now())}, nil)
	storageMock.On("ClaimPair", mock.Anything, mock.AnythingOfType("*models.ChatRoom")).Return(storage.ErrCandidateTaken)

	res, err := m.Enqueue(ctx, "a", p)
	assert.NoError(t, err)
	assert.Nil(t, res)
	storageMock.AssertExpectations(t)
}

func TestMatcher_EnqueueStorageError(t *testing.T) {
	storageMock := new(MockStorage)
	m := chathub.NewMatcherService(storageMock, testConfig())
	boom := errors.New("connection refused")

	storageMock.On("UpsertWaitingEntry", mock.Anything, mock.Anything).Return(boom)

	_, err := m.Enqueue(context.Background(), "a", profile("A", models.GenderOther, models.LookingForEveryone))
	assert.ErrorIs(t, err, boom)
	storageMock.AssertNotCalled(t, "GetWaitingEntries", mock.Anything, mock.Anything)
}

func TestMatcher_LeaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := chathub.NewMatcherService(store, testConfig())

	_, err := m.Enqueue(ctx, "a", profile("A", models.GenderOther, models.LookingForEveryone))
	require.NoError(t, err)

	require.NoError(t, m.Leave(ctx, "a"))
	require.NoError(t, m.Leave(ctx, "a"))
	assert.Equal(t, 0, store.WaitingCount())
}
