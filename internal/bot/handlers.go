package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rss_relay/internal/model"
	"rss_relay/internal/storage"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, textWelcome)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, FormatHelp(b.mode))
}

func (b *Bot) handleJoined(chatID int64) {
	b.log.Info("added to chat", "chat_id", chatID)
	b.reply(chatID, joinedText(b.mode))
}

func (b *Bot) handleToggle(ctx context.Context, msg *tgbotapi.Message) {
	if !b.requireAdmin(msg) {
		return
	}
	chatID := msg.Chat.ID
	if b.mode != model.ModeGlobal {
		b.reply(chatID, "/toggle is not available in subscriber mode. Use /annonces on|off instead.")
		return
	}

	state, err := b.store.ToggleAnnouncements(ctx)
	if err != nil {
		b.log.Error("toggle announcements", "chat_id", chatID, "error", err)
		b.reply(chatID, textStoreFailure)
		return
	}
	b.log.Info("announcements toggled", "enabled", state.Enabled, "user_id", senderID(msg))
	b.reply(chatID, fmt.Sprintf("Announcements are now %s.", onOff(state.Enabled)))
}

// handleSubscribe is open to every chat member: a chat opts itself in or out.
func (b *Bot) handleSubscribe(ctx context.Context, msg *tgbotapi.Message, args string) {
	chatID := msg.Chat.ID
	if b.mode != model.ModeSubscriber {
		b.reply(chatID, "Per-chat subscriptions are not available in global mode. Use /toggle instead.")
		return
	}

	if args == "" {
		sub, err := b.store.GetSubscription(ctx, chatID)
		if err != nil {
			b.log.Error("get subscription", "chat_id", chatID, "error", err)
			b.reply(chatID, textStoreFailure)
			return
		}
		b.reply(chatID, fmt.Sprintf("Announcements for this chat are %s.\n%s", onOff(sub.Subscribed), textSubscribeUsage))
		return
	}

	on, err := ParseSubscribeArgs(args)
	if err != nil {
		b.reply(chatID, textSubscribeUsage)
		return
	}
	if err := b.store.SetSubscription(ctx, chatID, on); err != nil {
		b.log.Error("set subscription", "chat_id", chatID, "error", err)
		b.reply(chatID, textStoreFailure)
		return
	}
	b.log.Info("subscription changed", "chat_id", chatID, "subscribed", on)
	if on {
		b.reply(chatID, "Announcements enabled for this chat.")
	} else {
		b.reply(chatID, "Announcements disabled for this chat.")
	}
}

func (b *Bot) handleSettings(ctx context.Context, msg *tgbotapi.Message, args string) {
	if !b.requireAdmin(msg) {
		return
	}
	chatID := msg.Chat.ID

	if args == "" {
		b.reply(chatID, b.settingsSummary(ctx))
		return
	}

	s, err := ParseSettingsArgs(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Invalid setting: %v\n%s", err, textSettingsUsage))
		return
	}

	switch s.Option {
	case OptionRSSURL:
		if err := b.store.SetSetting(ctx, storage.KeyFeedURL, s.URL); err != nil {
			b.log.Error("save feed url", "error", err)
			b.reply(chatID, textStoreFailure)
			return
		}
		if err := b.runtime.SetFeedURL(s.URL); err != nil {
			b.reply(chatID, fmt.Sprintf("Invalid setting: %v", err))
			return
		}
		b.log.Info("feed url changed", "url", s.URL, "chat_id", chatID)
		b.reply(chatID, fmt.Sprintf("Feed URL updated to %s", s.URL))

	case OptionUpdateInterval:
		secs := int(s.Interval.Seconds())
		if err := b.store.SetSetting(ctx, storage.KeyPollInterval, strconv.Itoa(secs)); err != nil {
			b.log.Error("save poll interval", "error", err)
			b.reply(chatID, textStoreFailure)
			return
		}
		if err := b.runtime.SetPollInterval(s.Interval); err != nil {
			b.reply(chatID, fmt.Sprintf("Invalid setting: %v", err))
			return
		}
		b.log.Info("poll interval changed", "interval", s.Interval, "chat_id", chatID)
		b.reply(chatID, fmt.Sprintf("Update interval set to %d seconds.", secs))
	}
}

func (b *Bot) settingsSummary(ctx context.Context) string {
	var enabled *bool
	if b.mode == model.ModeGlobal {
		state, err := b.store.AnnouncementState(ctx)
		if err != nil {
			b.log.Error("read announcement state", "error", err)
		} else {
			enabled = &state.Enabled
		}
	}
	return FormatSettings(b.runtime.FeedURL(), int(b.runtime.PollInterval().Seconds()), b.mode, enabled)
}
