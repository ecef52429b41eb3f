package bot

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"rss_relay/internal/model"
)

func press(b *Bot, from int64, data string) {
	b.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{MessageID: 500, Chat: &tgbotapi.Chat{ID: groupID, Type: "supergroup"}},
		Data:    data,
	}})
}

func newShutdownBot(t *testing.T) (*Bot, *mockAPI, *atomic.Int32) {
	t.Helper()
	b, api, _, _ := newTestBot(t, model.ModeGlobal)
	var calls atomic.Int32
	b.OnShutdown(func() { calls.Add(1) })
	return b, api, &calls
}

func TestShutdownPrompt(t *testing.T) {
	b, api, calls := newShutdownBot(t)
	send(b, command(groupID, adminID, 7, "/shutdown"))

	if len(api.prompts) != 1 {
		t.Fatalf("prompts = %d, want 1", len(api.prompts))
	}
	markup, ok := api.prompts[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("reply markup type = %T", api.prompts[0].ReplyMarkup)
	}
	var got []string
	for _, btn := range markup.InlineKeyboard[0] {
		got = append(got, *btn.CallbackData)
	}
	if diff := cmp.Diff([]string{"shutdown:confirm:7", "shutdown:cancel:7"}, got); diff != "" {
		t.Errorf("buttons mismatch (-want +got):\n%s", diff)
	}
	if calls.Load() != 0 {
		t.Error("shutdown ran before confirmation")
	}
}

func TestShutdownConfirm(t *testing.T) {
	b, api, calls := newShutdownBot(t)
	send(b, command(groupID, adminID, 7, "/shutdown"))
	press(b, adminID, "shutdown:confirm:7")

	if calls.Load() != 1 {
		t.Fatalf("shutdown calls = %d, want 1", calls.Load())
	}
	if diff := cmp.Diff([]string{textShuttingOff}, api.edits()); diff != "" {
		t.Errorf("edits mismatch (-want +got):\n%s", diff)
	}

	press(b, adminID, "shutdown:confirm:7")
	if calls.Load() != 1 {
		t.Errorf("confirmation was reusable, calls = %d", calls.Load())
	}
}

func TestShutdownConfirmationIsPerAdmin(t *testing.T) {
	b, api, calls := newShutdownBot(t)
	send(b, command(groupID, adminID, 7, "/shutdown"))

	press(b, otherID, "shutdown:confirm:7")
	if calls.Load() != 0 {
		t.Fatal("another admin confirmed someone else's shutdown")
	}
	if diff := cmp.Diff([]string{textExpired}, api.callbackAnswers()); diff != "" {
		t.Errorf("answers mismatch (-want +got):\n%s", diff)
	}

	press(b, adminID, "shutdown:confirm:7")
	if calls.Load() != 1 {
		t.Errorf("issuing admin could not confirm, calls = %d", calls.Load())
	}
}

func TestShutdownConfirmationExpires(t *testing.T) {
	b, api, calls := newShutdownBot(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b.pending.now = func() time.Time { return now }

	send(b, command(groupID, adminID, 7, "/shutdown"))
	now = now.Add(confirmTimeout + time.Second)
	press(b, adminID, "shutdown:confirm:7")

	if calls.Load() != 0 {
		t.Fatal("expired confirmation shut the bot down")
	}
	if diff := cmp.Diff([]string{textExpired}, api.callbackAnswers()); diff != "" {
		t.Errorf("answers mismatch (-want +got):\n%s", diff)
	}
}

func TestShutdownCancel(t *testing.T) {
	b, api, calls := newShutdownBot(t)
	send(b, command(groupID, adminID, 7, "/shutdown"))
	press(b, adminID, "shutdown:cancel:7")
	press(b, adminID, "shutdown:confirm:7")

	if calls.Load() != 0 {
		t.Fatal("shutdown ran after cancel")
	}
	if diff := cmp.Diff([]string{textAborted}, api.edits()); diff != "" {
		t.Errorf("edits mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{textAborted, textExpired}, api.callbackAnswers()); diff != "" {
		t.Errorf("answers mismatch (-want +got):\n%s", diff)
	}
}

func TestShutdownRequiresAdmin(t *testing.T) {
	b, api, calls := newShutdownBot(t)
	send(b, command(groupID, userID, 7, "/shutdown"))
	press(b, userID, "shutdown:confirm:7")

	if calls.Load() != 0 {
		t.Fatal("non-admin shut the bot down")
	}
	if len(api.prompts) != 0 {
		t.Errorf("prompt sent to non-admin")
	}
}

func TestUnknownCallbackIsAcknowledged(t *testing.T) {
	b, api, _ := newShutdownBot(t)
	press(b, adminID, "something:else")

	if diff := cmp.Diff([]string{""}, api.callbackAnswers()); diff != "" {
		t.Errorf("answers mismatch (-want +got):\n%s", diff)
	}
}

func TestConfirmationsSweepExpired(t *testing.T) {
	c := newConfirmations(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.add(confirmKey{chatID: 1, messageID: 1, userID: 1})
	now = now.Add(2 * time.Minute)
	c.add(confirmKey{chatID: 1, messageID: 2, userID: 1})

	if got := c.len(); got != 1 {
		t.Errorf("pending = %d, want 1", got)
	}
}

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		data   string
		action string
		id     int
		ok     bool
	}{
		{data: "shutdown:confirm:12", action: actionConfirm, id: 12, ok: true},
		{data: "shutdown:cancel:3", action: actionCancel, id: 3, ok: true},
		{data: "shutdown:explode:3"},
		{data: "shutdown:confirm:x"},
		{data: "other:confirm:1"},
		{data: ""},
	}
	for _, tt := range tests {
		action, id, ok := parseCallbackData(tt.data)
		if action != tt.action || id != tt.id || ok != tt.ok {
			t.Errorf("parseCallbackData(%q) = %q, %d, %v", tt.data, action, id, ok)
		}
	}
}

func TestShutdownByAnonymousAdmin(t *testing.T) {
	b, api, calls := newShutdownBot(t)
	msg := command(groupID, 1087968824, 7, "/shutdown")
	msg.SenderChat = &tgbotapi.Chat{ID: groupID, Type: "supergroup"}
	send(b, msg)

	if len(api.prompts) != 1 {
		t.Fatalf("prompts = %d, want 1", len(api.prompts))
	}

	press(b, userID, "shutdown:confirm:7")
	if calls.Load() != 0 {
		t.Fatal("non-admin confirmed an anonymous shutdown")
	}

	press(b, adminID, "shutdown:confirm:7")
	if calls.Load() != 1 {
		t.Fatalf("shutdown calls = %d, want 1", calls.Load())
	}
	if diff := cmp.Diff([]string{textExpired, textShuttingOff}, api.callbackAnswers()); diff != "" {
		t.Errorf("answers mismatch (-want +got):\n%s", diff)
	}
}
