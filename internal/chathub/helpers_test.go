package chathub_test

import (
	"context"
	"testing"
	"time"

	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"

	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func testConfig() config.ChatConfig {
	cfg := config.DefaultChatConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.MatchTimeout = 0
	cfg.HeartbeatInterval = time.Hour
	cfg.RelayResyncInterval = 50 * time.Millisecond
	cfg.TypingIdleTimeout = 40 * time.Millisecond
	cfg.DetachGrace = 20 * time.Millisecond
	return cfg
}

func newTestHub(t *testing.T, cfg config.ChatConfig) (*storage.MemoryStore, *chathub.ManagerService) {
	t.Helper()
	store := storage.NewMemoryStore()
	hub := chathub.NewManagerService(store, cfg)
	t.Cleanup(func() { hub.Shutdown(context.Background()) })
	return store, hub
}

func profile(name string, g models.Gender, lf models.LookingFor) models.Profile {
	return models.Profile{Name: name, Location: "Kyiv", Gender: g, LookingFor: lf}
}

// startMatching moves a fresh session from idle into matching.
func startMatching(t *testing.T, s *chathub.Session, p models.Profile) {
	t.Helper()
	require.NoError(t, s.Start())
	require.NoError(t, s.SubmitProfile(context.Background(), p))
}

func waitState(t *testing.T, s *chathub.Session, want chathub.State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Snapshot().State == want }, waitFor, tick,
		"session %s never reached %s", s.ID, want)
}

// connectPair pairs two fresh sessions and waits until both are connected.
func connectPair(t *testing.T, hub *chathub.ManagerService) (*chathub.Session, *chathub.Session) {
	t.Helper()
	a := hub.Session("alice")
	b := hub.Session("bob")
	startMatching(t, a, profile("Alice", models.GenderFemale, models.LookingForMale))
	startMatching(t, b, profile("Bob", models.GenderMale, models.LookingForFemale))
	waitState(t, a, chathub.StateConnected)
	waitState(t, b, chathub.StateConnected)
	return a, b
}
