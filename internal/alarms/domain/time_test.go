package alarms

import (
	"testing"
	"time"
)

func TestParseTimestampISO(t *testing.T) {
	ms := ParseTimestamp("2024-01-01T10:00:00Z")
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC).UnixMilli()
	if ms != want {
		t.Fatalf("iso parse: got %d want %d", ms, want)
	}
}

func TestParseTimestampLocalFormats(t *testing.T) {
	cases := []string{
		"2024-03-05 08:30:15",
		"2024-03-05 08:30",
		"05/03/2024 08:30:15",
		"05/03/2024 08:30",
	}
	for _, value := range cases {
		ms := ParseTimestamp(value)
		if ms == 0 {
			t.Fatalf("parse %q: got 0", value)
		}
		parsed := time.UnixMilli(ms).In(time.Local)
		if parsed.Year() != 2024 || parsed.Month() != time.March || parsed.Day() != 5 {
			t.Fatalf("parse %q: wrong date %v", value, parsed)
		}
		if parsed.Hour() != 8 || parsed.Minute() != 30 {
			t.Fatalf("parse %q: wrong time %v", value, parsed)
		}
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	for _, value := range []string{"", "  ", "not a date", "99/99/9999"} {
		if ms := ParseTimestamp(value); ms != 0 {
			t.Fatalf("parse %q: expected 0, got %d", value, ms)
		}
	}
}

func TestApplyOffset(t *testing.T) {
	base := ParseTimestamp("2024-01-01T08:00:00Z")
	shifted := ApplyOffset(base, 3)
	if shifted != base+3*millisPerHour {
		t.Fatalf("offset: got %d", shifted)
	}
	if ApplyOffset(0, 5) != 0 {
		t.Fatalf("offset must keep zero instants at zero")
	}
	if ApplyOffset(base, -2) != base-2*millisPerHour {
		t.Fatalf("negative offset mismatch")
	}
}

func TestFormatDisplay(t *testing.T) {
	if got := FormatDisplay(0); got != "—" {
		t.Fatalf("zero instant: got %q", got)
	}
	instant := time.Date(2024, 6, 7, 14, 5, 9, 0, time.Local).UnixMilli()
	if got := FormatDisplay(instant); got != "07/06/24 14:05:09" {
		t.Fatalf("display: got %q", got)
	}
}

func TestParseNumericLoose(t *testing.T) {
	if v, ok := ParseNumericLoose("12,5"); !ok || v != 12.5 {
		t.Fatalf("comma decimal: got %v %v", v, ok)
	}
	if v, ok := ParseNumericLoose(" 7 "); !ok || v != 7 {
		t.Fatalf("trimmed int: got %v %v", v, ok)
	}
	if _, ok := ParseNumericLoose(""); ok {
		t.Fatalf("empty must not parse")
	}
	if _, ok := ParseNumericLoose("abc"); ok {
		t.Fatalf("non-numeric must not parse")
	}
}

func TestDateInputToMsEndOfDay(t *testing.T) {
	start, ok := DateInputToMs("2024-01-02", false)
	if !ok {
		t.Fatalf("start parse failed")
	}
	end, ok := DateInputToMs("2024-01-02", true)
	if !ok {
		t.Fatalf("end parse failed")
	}
	if end-start != int64(23*3600+59*60+59)*1000 {
		t.Fatalf("end of day span: got %d", end-start)
	}
	if _, ok := DateInputToMs("", false); ok {
		t.Fatalf("empty input must not parse")
	}
}
