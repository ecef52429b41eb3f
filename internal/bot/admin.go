package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// isAdmin reports whether the sender of msg administers the chat it was sent in.
// Private chats have no administrators, so admin commands are refused there.
func (b *Bot) isAdmin(msg *tgbotapi.Message) (bool, error) {
	chat := msg.Chat
	if chat == nil || chat.IsPrivate() {
		return false, nil
	}
	// Anonymous group admins post as the group itself.
	if isAnonymousAdmin(msg) {
		return true, nil
	}
	if msg.From == nil {
		return false, nil
	}
	return b.isChatAdmin(chat.ID, msg.From.ID)
}

func (b *Bot) isChatAdmin(chatID, userID int64) (bool, error) {
	admins, err := b.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return false, err
	}
	for _, m := range admins {
		if m.User != nil && m.User.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func isAnonymousAdmin(msg *tgbotapi.Message) bool {
	return msg.SenderChat != nil && msg.Chat != nil && msg.SenderChat.ID == msg.Chat.ID
}

// requireAdmin replies with a denial and returns false unless the sender is an admin.
func (b *Bot) requireAdmin(msg *tgbotapi.Message) bool {
	ok, err := b.isAdmin(msg)
	if err != nil {
		b.log.Error("check admin", "chat_id", msg.Chat.ID, "error", err)
	}
	if ok {
		return true
	}

	b.log.Warn("admin command denied", "cmd", msg.Command(), "chat_id", msg.Chat.ID, "user_id", senderID(msg))
	b.reply(msg.Chat.ID, textPermissionDenied)
	return false
}

func senderID(msg *tgbotapi.Message) int64 {
	if msg.From == nil {
		return 0
	}
	return msg.From.ID
}
