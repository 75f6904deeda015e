// Package telegram handles the integration with the Telegram Bot API.
// It is responsible for receiving updates from Telegram, processing them,
// and driving one chat session per Telegram chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/localization"
	"strangerchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const (
	reportPrefix   = "report_"
	langPrefix     = "set_lang_"
	commandTimeout = 10 * time.Second
)

var reportCategories = []string{"inappropriate", "harassment", "spam", "underage", "other"}

// ErrBadProfileLine is returned by ParseProfile.
var ErrBadProfileLine = errors.New("expected: name, location, gender, looking for")

// BotService is responsible for receiving Telegram updates and routing them to sessions.
type BotService struct {
	BotAPI    *tgbotapi.BotAPI
	Sender    Sender
	Hub       *chathub.ManagerService
	Counter   *chathub.OnlineCounter
	Localizer *localization.Localizer

	mu      sync.Mutex
	clients map[int64]*Client
}

// NewBotService creates a new BotService instance.
func NewBotService(token string, hub *chathub.ManagerService, counter *chathub.OnlineCounter) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("✅ Authorized on account %s", bot.Self.UserName)

	localizer, err := localization.Bundled()
	if err != nil {
		return nil, fmt.Errorf("failed to create localizer: %w", err)
	}

	s := newBotService(bot, hub, counter, localizer)
	s.BotAPI = bot
	return s, nil
}

func newBotService(sender Sender, hub *chathub.ManagerService, counter *chathub.OnlineCounter, l *localization.Localizer) *BotService {
	return &BotService{
		Sender:    sender,
		Hub:       hub,
		Counter:   counter,
		Localizer: l,
		clients:   make(map[int64]*Client),
	}
}

// SessionIDForChat derives a stable session id from a Telegram chat id, so a
// restarted bot picks up where the chat left off.
func SessionIDForChat(chatID int64) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("telegram:%d", chatID))).String()
}

// clientFor retrieves an existing Telegram client or creates and attaches a new one.
func (s *BotService) clientFor(chatID int64, from *tgbotapi.User) *Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[chatID]; ok {
		return c
	}

	lang := localization.DefaultLanguage
	if from != nil && s.Localizer.Supports(from.LanguageCode) {
		lang = from.LanguageCode
	}

	c := newClient(chatID, SessionIDForChat(chatID), lang, s.Sender, s.Localizer)
	c.Session = s.Hub.Attach(c)
	s.clients[chatID] = c
	c.Run()
	log.Printf("Telegram chat %d attached to session %s", chatID, c.SessionID)
	return c
}

// Run is the main loop for receiving Telegram updates.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.HandleUpdate(update)
		}
	}
}

// HandleUpdate routes one update.
func (s *BotService) HandleUpdate(update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		s.handleMessage(update.Message)
	case update.CallbackQuery != nil:
		s.handleCallbackQuery(update.CallbackQuery)
	}
}

func (s *BotService) handleMessage(msg *tgbotapi.Message) {
	c := s.clientFor(msg.Chat.ID, msg.From)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if msg.IsCommand() {
		s.handleCommand(ctx, c, msg.Command(), msg.CommandArguments())
		return
	}

	if msg.Text == "" {
		c.reply(s.Localizer.GetString(c.Lang(), "unsupported_message_type"))
		return
	}
	s.handleText(ctx, c, msg.Text)
}

func (s *BotService) handleCommand(ctx context.Context, c *Client, command, args string) {
	lang := c.Lang()

	switch command {
	case "start":
		switch c.Session.Snapshot().State {
		case chathub.StateIdle:
			c.reply(s.Localizer.GetString(lang, "welcome"))
		case chathub.StateProfile:
			// no state change, so nothing would be rendered
			c.reply(s.Localizer.GetString(lang, "profile_prompt"))
		}
		if err := c.Session.Start(); err != nil {
			c.reply(s.Localizer.GetString(lang, "already_in_chat"))
		}

	case "next":
		if err := c.Session.FindNew(ctx); err != nil {
			log.Printf("WARNING: /next for chat %d failed: %v", c.ChatID, err)
			return
		}
		// reuse the last profile so /next goes straight back to searching
		if p := c.profile(); p != nil {
			if err := c.Session.SubmitProfile(ctx, *p); err != nil {
				log.Printf("WARNING: Resubmitting profile for chat %d failed: %v", c.ChatID, err)
			}
		}

	case "stop":
		state := c.Session.Snapshot().State
		if state != chathub.StateMatching && state != chathub.StateConnected {
			c.reply(s.Localizer.GetString(lang, "not_in_chat"))
			return
		}
		if err := c.Session.Disconnect(ctx); err != nil {
			log.Printf("WARNING: /stop for chat %d failed: %v", c.ChatID, err)
		}

	case "report":
		if strings.TrimSpace(args) != "" {
			s.submitReport(ctx, c, args)
			return
		}
		if c.Session.Snapshot().State != chathub.StateConnected {
			c.reply(s.Localizer.GetString(lang, "report_failed"))
			return
		}
		s.sendReportKeyboard(c)

	case "online":
		c.reply(s.Localizer.Format(lang, "online_count", s.Counter.Value()))

	case "language":
		s.sendLanguageKeyboard(c)

	case "help":
		c.reply(s.Localizer.GetString(lang, "help"))

	default:
		c.reply(s.Localizer.GetString(lang, "unknown_command"))
	}
}

func (s *BotService) handleText(ctx context.Context, c *Client, text string) {
	lang := c.Lang()

	switch c.Session.Snapshot().State {
	case chathub.StateProfile:
		p, err := ParseProfile(text)
		if err == nil {
			err = c.Session.SubmitProfile(ctx, p)
		}
		if err != nil {
			c.reply(s.Localizer.GetString(lang, "profile_invalid"))
			return
		}
		c.setProfile(p)

	case chathub.StateConnected:
		if err := c.Session.SendMessage(ctx, text); err != nil {
			log.Printf("ERROR: %v", err)
			c.reply(s.Localizer.GetString(lang, "send_failed"))
		}

	case chathub.StateMatching:
		c.reply(s.Localizer.GetString(lang, "still_searching"))

	default:
		c.reply(s.Localizer.GetString(lang, "not_in_chat"))
	}
}

func (s *BotService) submitReport(ctx context.Context, c *Client, reason string) {
	if err := c.Session.Report(ctx, reason); err != nil {
		if errors.Is(err, chathub.ErrInvalidState) {
			c.reply(s.Localizer.GetString(c.Lang(), "report_failed"))
			return
		}
		log.Printf("ERROR: Report from chat %d: %v", c.ChatID, err)
	}
	c.reply(s.Localizer.GetString(c.Lang(), "report_submitted"))
}

func (s *BotService) sendReportKeyboard(c *Client) {
	lang := c.Lang()
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(reportCategories))
	for _, category := range reportCategories {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.Localizer.GetString(lang, "report_reason_"+category), reportPrefix+category),
		))
	}

	msg := tgbotapi.NewMessage(c.ChatID, s.Localizer.GetString(lang, "report_reason_prompt"))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := s.Sender.Send(msg); err != nil {
		log.Printf("ERROR: Failed to send report keyboard: %v", err)
	}
}

func (s *BotService) sendLanguageKeyboard(c *Client) {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0)
	for _, lang := range s.Localizer.Languages() {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(strings.ToUpper(lang), langPrefix+lang))
	}

	msg := tgbotapi.NewMessage(c.ChatID, s.Localizer.GetString(c.Lang(), "choose_language"))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))
	if _, err := s.Sender.Send(msg); err != nil {
		log.Printf("ERROR: Failed to send language keyboard: %v", err)
	}
}

func (s *BotService) handleCallbackQuery(callbackQuery *tgbotapi.CallbackQuery) {
	// Respond to the callback query to remove the "loading" state
	if s.BotAPI != nil {
		callback := tgbotapi.NewCallback(callbackQuery.ID, "")
		if _, err := s.BotAPI.Request(callback); err != nil {
			log.Printf("failed to send callback response: %v", err)
		}
	}

	s.handleCallbackData(callbackQuery.Message.Chat.ID, callbackQuery.From, callbackQuery.Data)
}

func (s *BotService) handleCallbackData(chatID int64, from *tgbotapi.User, data string) {
	c := s.clientFor(chatID, from)
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch {
	case strings.HasPrefix(data, reportPrefix):
		s.submitReport(ctx, c, strings.TrimPrefix(data, reportPrefix))

	case strings.HasPrefix(data, langPrefix):
		lang := strings.TrimPrefix(data, langPrefix)
		if !s.Localizer.Supports(lang) {
			return
		}
		c.SetLang(lang)
		c.reply(s.Localizer.GetString(lang, "language_changed"))
	}
}

// ParseProfile reads "name, location, gender, looking for". Gender and
// looking-for are optional and fall back to the profile defaults.
func ParseProfile(line string) (models.Profile, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 || len(parts) > 4 {
		return models.Profile{}, ErrBadProfileLine
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	p := models.Profile{Name: parts[0], Location: parts[1]}
	if len(parts) > 2 {
		p.Gender = models.Gender(normalizeChoice(parts[2]))
	}
	if len(parts) > 3 {
		p.LookingFor = models.LookingFor(normalizeChoice(parts[3]))
	}
	return p, nil
}

func normalizeChoice(s string) string {
	switch strings.ToLower(s) {
	case "m", "man", "male":
		return string(models.GenderMale)
	case "f", "woman", "female":
		return string(models.GenderFemale)
	case "any", "all", "anyone", "everyone":
		return string(models.LookingForEveryone)
	default:
		return strings.ToLower(s)
	}
}

func (c *Client) profile() *models.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastProfile
}

func (c *Client) setProfile(p models.Profile) {
	c.mu.Lock()
	c.lastProfile = &p
	c.mu.Unlock()
}
