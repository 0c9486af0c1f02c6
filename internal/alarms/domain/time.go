package alarms

import (
	"strconv"
	"strings"
	"time"
)

const millisPerHour = 3_600_000

// displaySentinel is rendered for a zero instant.
const displaySentinel = "—"

// isoLayouts cover timestamps that carry their own zone or are full ISO.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// localLayouts are interpreted as local wall-clock time.
var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2006-01-02",
}

// ParseTimestamp converts a source-reported timestamp string into Unix
// milliseconds. Sources disagree on format: ISO-8601 with or without zone,
// "YYYY-MM-DD HH:MM[:SS]" and "DD/MM/YYYY[ HH:MM:SS]" all occur in the wild.
// Returns 0 for an empty or unparseable input.
func ParseTimestamp(value string) int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if strings.ContainsRune(value, 'T') {
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t.UnixMilli()
			}
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t.UnixMilli()
		}
	}
	// Last resort for anything ISO-ish we did not anticipate.
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UnixMilli()
	}
	return 0
}

// ApplyOffset shifts an instant by a source's configured hour offset.
// Sources may report wall-clock time in a different timezone than ours.
func ApplyOffset(ms int64, hours int) int64 {
	if ms == 0 {
		return 0
	}
	return ms + int64(hours)*millisPerHour
}

// FormatDisplay renders an instant as DD/MM/YY HH:MM:SS in local time, or an
// em-dash for a zero instant.
func FormatDisplay(ms int64) string {
	if ms == 0 {
		return displaySentinel
	}
	return time.UnixMilli(ms).In(time.Local).Format("02/01/06 15:04:05")
}

// ParseNumericLoose parses a number that may use a comma as the decimal
// separator. The second return is false for empty or non-numeric input.
func ParseNumericLoose(value string) (float64, bool) {
	value = strings.TrimSpace(strings.ReplaceAll(value, ",", "."))
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// DateInputToMs converts a YYYY-MM-DD filter input into Unix milliseconds.
// With end=true the instant is the last second of that local day, so an
// inclusive date-range filter covers the whole end day.
func DateInputToMs(value string, end bool) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	day, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return 0, false
	}
	if end {
		day = day.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
	}
	return day.UnixMilli(), true
}
