package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	callbackPrefix  = "shutdown"
	actionConfirm   = "confirm"
	actionCancel    = "cancel"
	textExpired     = "This confirmation expired or belongs to someone else."
	textShuttingOff = "Shutting down..."
	textAborted     = "Shutdown aborted."
)

// confirmKey scopes a pending shutdown to the chat, the command message and the admin who sent it.
// A request from an anonymous admin is keyed by the chat ID instead of a user ID.
type confirmKey struct {
	chatID    int64
	messageID int
	userID    int64
}

// confirmations is a set of pending shutdowns that expire after ttl.
type confirmations struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[confirmKey]time.Time
}

func newConfirmations(ttl time.Duration) *confirmations {
	return &confirmations{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[confirmKey]time.Time),
	}
}

func (c *confirmations) add(k confirmKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, exp := range c.items {
		if !now.Before(exp) {
			delete(c.items, key)
		}
	}
	c.items[k] = now.Add(c.ttl)
}

func (c *confirmations) has(k confirmKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.items[k]
	return ok && c.now().Before(exp)
}

// take removes k and reports whether it was pending and unexpired.
func (c *confirmations) take(k confirmKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.items[k]
	if !ok {
		return false
	}
	delete(c.items, k)
	return c.now().Before(exp)
}

func (c *confirmations) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func callbackData(action string, messageID int) string {
	return fmt.Sprintf("%s:%s:%d", callbackPrefix, action, messageID)
}

func parseCallbackData(data string) (action string, messageID int, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != callbackPrefix {
		return "", 0, false
	}
	if parts[1] != actionConfirm && parts[1] != actionCancel {
		return "", 0, false
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, false
	}
	return parts[1], id, true
}

func (b *Bot) handleShutdown(_ context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(msg) {
		return
	}
	chatID := msg.Chat.ID
	issuer := senderID(msg)
	if isAnonymousAdmin(msg) {
		issuer = chatID
	}
	b.pending.add(confirmKey{chatID: chatID, messageID: msg.MessageID, userID: issuer})

	prompt := tgbotapi.NewMessage(chatID, fmt.Sprintf("Stop the bot? Confirm within %d seconds.", int(b.pending.ttl.Seconds())))
	prompt.ReplyToMessageID = msg.MessageID
	prompt.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Confirm", callbackData(actionConfirm, msg.MessageID)),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", callbackData(actionCancel, msg.MessageID)),
		),
	)
	if _, err := b.api.Send(prompt); err != nil {
		b.log.Error("send shutdown prompt", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCallback(_ context.Context, cb *tgbotapi.CallbackQuery) {
	action, messageID, ok := parseCallbackData(cb.Data)
	if !ok || cb.Message == nil || cb.Message.Chat == nil || cb.From == nil {
		b.answer(cb, "")
		return
	}

	chatID := cb.Message.Chat.ID
	key := confirmKey{chatID: chatID, messageID: messageID, userID: cb.From.ID}
	if !b.pending.take(key) && !b.takeAnonymous(key) {
		b.answer(cb, textExpired)
		return
	}

	switch action {
	case actionCancel:
		b.answer(cb, textAborted)
		b.edit(chatID, cb.Message.MessageID, textAborted)
	case actionConfirm:
		b.answer(cb, textShuttingOff)
		b.edit(chatID, cb.Message.MessageID, textShuttingOff)
		b.log.Warn("shutdown requested", "chat_id", chatID, "user_id", cb.From.ID)

		b.mu.Lock()
		fn := b.shutdown
		b.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}

// takeAnonymous claims a request made by an anonymous admin. Any admin of the chat may confirm it,
// since the issuer cannot be told apart from the other admins.
func (b *Bot) takeAnonymous(k confirmKey) bool {
	anon := confirmKey{chatID: k.chatID, messageID: k.messageID, userID: k.chatID}
	if !b.pending.has(anon) {
		return false
	}
	ok, err := b.isChatAdmin(k.chatID, k.userID)
	if err != nil {
		b.log.Error("check admin", "chat_id", k.chatID, "error", err)
		return false
	}
	return ok && b.pending.take(anon)
}

func (b *Bot) answer(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.log.Warn("answer callback", "error", err)
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	if _, err := b.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.log.Warn("edit message", "chat_id", chatID, "error", err)
	}
}
