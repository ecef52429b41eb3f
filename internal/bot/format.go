package bot

import (
	"fmt"
	"strings"

	"rss_relay/internal/model"
)

const (
	cmdStart     = "start"
	cmdHelp      = "help"
	cmdToggle    = "toggle"
	cmdAnnonces  = "annonces"
	cmdSubscribe = "subscribe"
	cmdSettings  = "settings"
	cmdShutdown  = "shutdown"
)

const (
	textWelcome          = "The bot is up and running! New articles from the feed will be posted here."
	textPermissionDenied = "You need to be an administrator of this chat to use this command."
	textStoreFailure     = "Something went wrong while saving, please try again later."
	textSubscribeUsage   = "Usage: /annonces on|off"
	textSettingsUsage    = "Usage: /settings <option> <value>\nOptions:\n  rss_url <url> - replace the feed URL\n  update_interval <seconds> - replace the poll interval"
)

type commandInfo struct {
	name        string
	description string
}

func commandsFor(mode model.DeliveryMode) []commandInfo {
	cmds := []commandInfo{
		{cmdStart, "Check that the bot is running"},
		{cmdHelp, "List available commands"},
	}
	if mode == model.ModeSubscriber {
		cmds = append(cmds, commandInfo{cmdAnnonces, "Turn announcements for this chat on or off"})
	} else {
		cmds = append(cmds, commandInfo{cmdToggle, "Turn announcements on or off (admins)"})
	}
	return append(cmds,
		commandInfo{cmdSettings, "Show or change feed settings (admins)"},
		commandInfo{cmdShutdown, "Stop the bot (admins)"},
	)
}

// FormatHelp lists the commands available in the given delivery mode.
func FormatHelp(mode model.DeliveryMode) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, c := range commandsFor(mode) {
		usage := "/" + c.name
		switch c.name {
		case cmdAnnonces:
			usage += " on|off"
		case cmdSettings:
			usage += " [<option> <value>]"
		}
		fmt.Fprintf(&b, "%s - %s\n", usage, c.description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSettings shows the current runtime settings.
func FormatSettings(feedURL string, intervalSeconds int, mode model.DeliveryMode, enabled *bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Feed URL: %s\n", feedURL)
	fmt.Fprintf(&b, "Update interval: %d seconds\n", intervalSeconds)
	fmt.Fprintf(&b, "Delivery mode: %s\n", mode)
	if enabled != nil {
		fmt.Fprintf(&b, "Announcements: %s\n", onOff(*enabled))
	}
	b.WriteString("\n")
	b.WriteString(textSettingsUsage)
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func joinedText(mode model.DeliveryMode) string {
	if mode == model.ModeSubscriber {
		return "Bot added to the group. Use /annonces on to receive new articles from the feed here."
	}
	return "Bot added to the group. I will post new articles from the feed here."
}
