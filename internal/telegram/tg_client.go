package telegram

import (
	"log"
	"sync"

	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/localization"
	"strangerchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI the clients need.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client реалізує інтерфейс chathub.Client для одного Telegram-чату
type Client struct {
	ChatID    int64
	SessionID string
	Session   *chathub.Session
	Sender    Sender
	Localizer *localization.Localizer

	mu          sync.Mutex
	lang        string
	lastProfile *models.Profile

	done chan struct{}
	once sync.Once
}

func newClient(chatID int64, sessionID, lang string, sender Sender, l *localization.Localizer) *Client {
	return &Client{
		ChatID:    chatID,
		SessionID: sessionID,
		Sender:    sender,
		Localizer: l,
		lang:      lang,
		done:      make(chan struct{}),
	}
}

func (c *Client) GetSessionID() string { return c.SessionID }

// Run запускає 'write pump'. 'Read pump' обробляється централізовано в BotService.
func (c *Client) Run() {
	go c.writePump()
}

func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) Lang() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lang
}

func (c *Client) SetLang(lang string) {
	c.mu.Lock()
	c.lang = lang
	c.mu.Unlock()
}

// writePump turns session changes into chat messages.
func (c *Client) writePump() {
	defer log.Printf("Зупинка writePump для Telegram клієнта %d", c.ChatID)

	updates, stop := c.Session.Watch()
	defer stop()

	prev, ok := <-updates
	if !ok {
		return
	}
	for {
		select {
		case <-c.done:
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			for _, text := range Render(c.Localizer, c.Lang(), prev, snap) {
				c.reply(text)
			}
			prev = snap
		}
	}
}

func (c *Client) reply(text string) {
	msg := tgbotapi.NewMessage(c.ChatID, text)
	if _, err := c.Sender.Send(msg); err != nil {
		log.Printf("ERROR: Failed to send to Telegram chat %d: %v", c.ChatID, err)
	}
}

// Render describes in chat lines what changed between two snapshots: state
// transitions become system notices and new peer messages are relayed as is.
func Render(l *localization.Localizer, lang string, prev, next chathub.Snapshot) []string {
	var out []string

	if next.State != prev.State {
		switch next.State {
		case chathub.StateProfile:
			if next.NoMatchFound {
				out = append(out, l.GetString(lang, "no_match_found"))
			} else {
				out = append(out, l.GetString(lang, "profile_prompt"))
			}
		case chathub.StateMatching:
			out = append(out, l.GetString(lang, "searching"))
		case chathub.StateConnected:
			partner := models.PartnerInfoFrom("", "", "")
			if next.Partner != nil {
				partner = *next.Partner
			}
			out = append(out, l.Format(lang, "partner_found",
				partner.Name, partner.Location, l.GetString(lang, "gender_"+string(partner.Gender))))
		case chathub.StateDisconnected:
			if next.PartnerLeft {
				out = append(out, l.GetString(lang, "partner_left"))
			} else {
				out = append(out, l.GetString(lang, "chat_ended"))
			}
		}
	}

	if next.RoomID == "" {
		return out
	}
	seen := make(map[string]struct{}, len(prev.Messages))
	if prev.RoomID == next.RoomID {
		for _, m := range prev.Messages {
			seen[m.ID] = struct{}{}
		}
	}
	for _, m := range next.Messages {
		if _, ok := seen[m.ID]; ok || m.IsOwn {
			continue
		}
		out = append(out, m.Content)
	}
	return out
}
