package alarms

import "strings"

// BellColor classifies a card for the operator's bell icon.
const (
	BellRed    = "red"
	BellGray   = "gray"
	BellGreen  = "green"
	BellYellow = "yellow"
)

// IsNormalized reports whether the card's monitored point is currently in
// its resolved state: the latest event's value equals "online" or its type
// equals "normal" or "online". This is live data, recomputed on every read,
// never cached.
func IsNormalized(c Card) bool {
	value := strings.ToLower(c.Latest.TriggerValue.Value)
	kind := strings.ToLower(c.Latest.Type)
	return value == "online" || kind == "normal" || kind == "online"
}

// BellColor picks the icon color from the latest event. The rule order is
// deliberate: alarm/unreliable type wins over an "offline" value, which wins
// over normal/online signals, even when the signals disagree.
func BellColor(c Card) string {
	kind := strings.ToLower(c.Latest.Type)
	value := strings.ToLower(c.Latest.TriggerValue.Value)
	switch {
	case strings.Contains(kind, "alarm") || strings.Contains(kind, "unreliable"):
		return BellRed
	case strings.Contains(value, "offline"):
		return BellGray
	case strings.Contains(kind, "normal") || strings.Contains(value, "online"):
		return BellGreen
	default:
		return BellYellow
	}
}
