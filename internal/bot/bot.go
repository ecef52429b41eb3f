// Package bot is the Telegram side of the relay: it receives commands,
// enforces admin checks and delivers messages.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rss_relay/internal/config"
	"rss_relay/internal/model"
	"rss_relay/internal/storage"
)

const (
	maxLongPoll    = 20
	confirmTimeout = 60 * time.Second
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
}

// Bot is the Telegram bot that handles commands and sends announcements.
type Bot struct {
	api      telegramAPI
	store    storage.Storage
	runtime  *config.Runtime
	mode     model.DeliveryMode
	log      *slog.Logger
	selfID   int64
	longPoll int

	pending *confirmations

	mu       sync.Mutex
	shutdown func()
}

// New creates a Bot. The HTTP client used for the Bot API is bounded by cfg.SendTimeout.
func New(cfg *config.Config, rt *config.Runtime, store storage.Storage, log *slog.Logger) (*Bot, error) {
	client := &http.Client{Timeout: cfg.SendTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Info("authorized on telegram", "username", api.Self.UserName)

	b := newBot(api, store, rt, cfg.Mode, log)
	b.selfID = api.Self.ID
	b.longPoll = longPollSeconds(cfg.SendTimeout)
	return b, nil
}

func newBot(api telegramAPI, store storage.Storage, rt *config.Runtime, mode model.DeliveryMode, log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		store:    store,
		runtime:  rt,
		mode:     mode,
		log:      log,
		longPoll: maxLongPoll,
		pending:  newConfirmations(confirmTimeout),
	}
}

// longPollSeconds keeps the getUpdates long poll shorter than the HTTP client timeout.
func longPollSeconds(clientTimeout time.Duration) int {
	secs := int((clientTimeout - 5*time.Second) / time.Second)
	if secs > maxLongPoll {
		return maxLongPoll
	}
	if secs < 1 {
		return 1
	}
	return secs
}

// OnShutdown registers fn to run when an admin confirms /shutdown.
func (b *Bot) OnShutdown(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdown = fn
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	b.registerCommands()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.longPoll

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// SendMessage sends a text message to the given chat. Failures that a retry
// cannot fix wrap model.ErrRecipientUnreachable.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		return classifySendError(err)
	}
	return nil
}

func classifySendError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusForbidden,
			apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "chat not found"):
			return fmt.Errorf("%w: %s", model.ErrRecipientUnreachable, apiErr.Message)
		}
	}
	return fmt.Errorf("send message: %w", err)
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(context.Background(), chatID, text); err != nil {
		b.log.Error("send reply", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if update.CallbackQuery.Message != nil {
			b.trackChat(ctx, update.CallbackQuery.Message.Chat)
		}
		b.handleCallback(ctx, update.CallbackQuery)
	case update.MyChatMember != nil:
		b.handleMembership(ctx, update.MyChatMember)
	case update.Message != nil:
		msg := update.Message
		b.trackChat(ctx, msg.Chat)
		if b.addedToChat(msg) {
			b.handleJoined(msg.Chat.ID)
			return
		}
		if msg.IsCommand() {
			b.handleCommand(ctx, msg)
		}
	}
}

func (b *Bot) trackChat(ctx context.Context, chat *tgbotapi.Chat) {
	if chat == nil {
		return
	}
	title := chat.Title
	if title == "" {
		title = chat.UserName
	}
	if err := b.store.RegisterChat(ctx, model.Chat{ChatID: chat.ID, Type: chat.Type, Title: title}); err != nil {
		b.log.Error("register chat", "chat_id", chat.ID, "error", err)
	}
}

// handleMembership reacts to the bot's own membership changes.
func (b *Bot) handleMembership(ctx context.Context, m *tgbotapi.ChatMemberUpdated) {
	if !m.NewChatMember.HasLeft() && !m.NewChatMember.WasKicked() {
		b.trackChat(ctx, &m.Chat)
		return
	}
	b.log.Info("removed from chat", "chat_id", m.Chat.ID, "status", m.NewChatMember.Status)
	if err := b.store.UnregisterChat(ctx, m.Chat.ID); err != nil {
		b.log.Error("unregister chat", "chat_id", m.Chat.ID, "error", err)
	}
}

func (b *Bot) addedToChat(msg *tgbotapi.Message) bool {
	if b.selfID == 0 {
		return false
	}
	for _, u := range msg.NewChatMembers {
		if u.ID == b.selfID {
			return true
		}
	}
	return false
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case cmdStart:
		b.handleStart(chatID)
	case cmdHelp:
		b.handleHelp(chatID)
	case cmdToggle:
		b.handleToggle(ctx, msg)
	case cmdAnnonces, cmdSubscribe:
		b.handleSubscribe(ctx, msg, args)
	case cmdSettings:
		b.handleSettings(ctx, msg, args)
	case cmdShutdown:
		b.handleShutdown(ctx, msg)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

func (b *Bot) registerCommands() {
	var cmds []tgbotapi.BotCommand
	for _, c := range commandsFor(b.mode) {
		cmds = append(cmds, tgbotapi.BotCommand{Command: c.name, Description: c.description})
	}
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(cmds...)); err != nil {
		b.log.Warn("register bot commands", "error", err)
	}
}
