package bot

import (
	"fmt"
	"strings"
	"time"

	"rss_relay/internal/config"
)

// Recognized /settings options.
const (
	OptionRSSURL         = "rss_url"
	OptionUpdateInterval = "update_interval"
)

// Setting is a parsed /settings command.
type Setting struct {
	Option   string
	URL      string
	Interval time.Duration
}

// ParseSubscribeArgs parses the argument of /annonces: exactly one token, "on" or "off".
func ParseSubscribeArgs(args string) (bool, error) {
	parts := strings.Fields(args)
	if len(parts) != 1 {
		return false, fmt.Errorf("expected exactly one argument")
	}
	switch parts[0] {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("argument must be on or off, got %q", parts[0])
	}
}

// ParseSettingsArgs parses "<option> <value>" for /settings.
func ParseSettingsArgs(args string) (Setting, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return Setting{}, fmt.Errorf("expected an option and a value")
	}

	option, value := parts[0], parts[1]
	switch option {
	case OptionRSSURL:
		if err := config.ValidateFeedURL(value); err != nil {
			return Setting{}, err
		}
		return Setting{Option: option, URL: value}, nil
	case OptionUpdateInterval:
		d, err := config.ParseInterval(value)
		if err != nil {
			return Setting{}, err
		}
		return Setting{Option: option, Interval: d}, nil
	default:
		return Setting{}, fmt.Errorf("unknown option %q", option)
	}
}
