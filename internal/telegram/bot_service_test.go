package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/localization"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender records the text of every message sent.
type fakeSender struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.mu.Lock()
		f.texts = append(f.texts, msg.Text)
		f.mu.Unlock()
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) has(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.texts {
		if t == text {
			return true
		}
	}
	return false
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: chatID, LanguageCode: "en"},
		Chat: tgbotapi.Chat{ID: chatID},
	}
	if strings.HasPrefix(text, "/") {
		length := len(text)
		if i := strings.Index(text, " "); i > 0 {
			length = i
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	}
	return tgbotapi.Update{Message: msg}
}

func newTestBot(t *testing.T) (*BotService, *fakeSender) {
	t.Helper()
	cfg := config.DefaultChatConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.MatchTimeout = 0
	cfg.HeartbeatInterval = time.Hour
	cfg.RelayResyncInterval = 50 * time.Millisecond

	store := storage.NewMemoryStore()
	hub := chathub.NewManagerService(store, cfg)
	t.Cleanup(func() { hub.Shutdown(context.Background()) })

	l, err := localization.Bundled()
	require.NoError(t, err)

	sender := &fakeSender{}
	return newBotService(sender, hub, chathub.NewOnlineCounter(store, cfg), l), sender
}

func sessionState(s *BotService, chatID int64) chathub.State {
	sess, ok := s.Hub.Lookup(SessionIDForChat(chatID))
	if !ok {
		return ""
	}
	return sess.Snapshot().State
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		name string
		line string
		want models.Profile
		err  bool
	}{
		{"full", "Alice, Kyiv, f, m", models.Profile{Name: "Alice", Location: "Kyiv", Gender: models.GenderFemale, LookingFor: models.LookingForMale}, false},
		{"defaults", "Bob,Lviv", models.Profile{Name: "Bob", Location: "Lviv"}, false},
		{"anyone", "Sam, Odesa, other, any", models.Profile{Name: "Sam", Location: "Odesa", Gender: models.GenderOther, LookingFor: models.LookingForEveryone}, false},
		{"too short", "Alice", models.Profile{}, true},
		{"too long", "a, b, c, d, e", models.Profile{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProfile(tt.line)
			if tt.err {
				assert.ErrorIs(t, err, ErrBadProfileLine)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionIDForChatIsStable(t *testing.T) {
	assert.Equal(t, SessionIDForChat(42), SessionIDForChat(42))
	assert.NotEqual(t, SessionIDForChat(42), SessionIDForChat(43))
}

func TestRender(t *testing.T) {
	l, err := localization.Bundled()
	require.NoError(t, err)

	t.Run("profile prompt and no match", func(t *testing.T) {
		prev := chathub.Snapshot{State: chathub.StateIdle}
		assert.Equal(t, []string{l.GetString("en", "profile_prompt")},
			Render(l, "en", prev, chathub.Snapshot{State: chathub.StateProfile}))

		prev = chathub.Snapshot{State: chathub.StateMatching}
		assert.Equal(t, []string{l.GetString("en", "no_match_found")},
			Render(l, "en", prev, chathub.Snapshot{State: chathub.StateProfile, NoMatchFound: true}))
	})

	t.Run("partner found", func(t *testing.T) {
		partner := models.PartnerInfoFrom("Bob", "Lviv", models.GenderMale)
		out := Render(l, "en", chathub.Snapshot{State: chathub.StateMatching},
			chathub.Snapshot{State: chathub.StateConnected, RoomID: "r", Partner: &partner})
		require.Len(t, out, 1)
		assert.Contains(t, out[0], "Bob")
		assert.Contains(t, out[0], "Lviv")
	})

	t.Run("partner left", func(t *testing.T) {
		out := Render(l, "en", chathub.Snapshot{State: chathub.StateConnected, RoomID: "r"},
			chathub.Snapshot{State: chathub.StateDisconnected, PartnerLeft: true})
		assert.Equal(t, []string{l.GetString("en", "partner_left")}, out)
	})

	t.Run("only new peer messages", func(t *testing.T) {
		prev := chathub.Snapshot{State: chathub.StateConnected, RoomID: "r", Messages: []chathub.Message{
			{ID: "1", Content: "old"},
		}}
		next := prev
		next.Messages = []chathub.Message{
			{ID: "1", Content: "old"},
			{ID: "2", Content: "mine", IsOwn: true},
			{ID: "3", Content: "new"},
		}
		assert.Equal(t, []string{"new"}, Render(l, "en", prev, next))
	})
}

func TestBotService_PairsTwoChats(t *testing.T) {
	bot, sender := newTestBot(t)
	l := bot.Localizer

	bot.HandleUpdate(textUpdate(1, "/start"))
	bot.HandleUpdate(textUpdate(2, "/start"))
	assert.True(t, sender.has(l.GetString("en", "welcome")))

	bot.HandleUpdate(textUpdate(1, "Alice, Kyiv, f, m"))
	bot.HandleUpdate(textUpdate(2, "Bob, Lviv, m, f"))

	require.Eventually(t, func() bool {
		return sessionState(bot, 1) == chathub.StateConnected && sessionState(bot, 2) == chathub.StateConnected
	}, 2*time.Second, 5*time.Millisecond)

	bot.HandleUpdate(textUpdate(1, "hello bob"))
	assert.Eventually(t, func() bool { return sender.has("hello bob") }, 2*time.Second, 5*time.Millisecond)

	bot.HandleUpdate(textUpdate(2, "/stop"))
	require.Eventually(t, func() bool {
		return sessionState(bot, 1) == chathub.StateDisconnected
	}, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return sender.has(l.GetString("en", "partner_left")) }, 2*time.Second, 5*time.Millisecond)
}

func TestBotService_RepliesOutsideChat(t *testing.T) {
	bot, sender := newTestBot(t)
	l := bot.Localizer

	bot.HandleUpdate(textUpdate(7, "hi there"))
	assert.True(t, sender.has(l.GetString("en", "not_in_chat")))

	bot.HandleUpdate(textUpdate(7, "/dance"))
	assert.True(t, sender.has(l.GetString("en", "unknown_command")))

	bot.HandleUpdate(textUpdate(7, "/report"))
	assert.True(t, sender.has(l.GetString("en", "report_failed")))

	bot.HandleUpdate(textUpdate(7, "/start"))
	bot.HandleUpdate(textUpdate(7, "just a name"))
	assert.True(t, sender.has(l.GetString("en", "profile_invalid")))
	assert.Equal(t, chathub.StateProfile, sessionState(bot, 7))
}

func TestBotService_SetLanguage(t *testing.T) {
	bot, sender := newTestBot(t)

	bot.handleCallbackData(5, nil, langPrefix+"uk")
	assert.True(t, sender.has(bot.Localizer.GetString("uk", "language_changed")))

	bot.mu.Lock()
	c := bot.clients[5]
	bot.mu.Unlock()
	require.NotNil(t, c)
	assert.Equal(t, "uk", c.Lang())

	bot.handleCallbackData(5, nil, langPrefix+"xx")
	assert.Equal(t, "uk", c.Lang(), "unsupported languages are ignored")
}
