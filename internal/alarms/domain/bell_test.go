package alarms

import "testing"

func cardWithLatest(kind, value string) Card {
	return Card{Latest: Event{Type: kind, TriggerValue: TriggerValue{Value: value}}}
}

func TestIsNormalized(t *testing.T) {
	cases := []struct {
		kind, value string
		want        bool
	}{
		{"", "online", true},
		{"", "Online", true},
		{"normal", "", true},
		{"Online", "", true},
		{"alarmValueEnumSet.avAlarm", "125 psi", false},
		{"", "offline", false},
		{"", "online now", false}, // equality, not substring
	}
	for i, c := range cases {
		if got := IsNormalized(cardWithLatest(c.kind, c.value)); got != c.want {
			t.Fatalf("case %d (%q/%q): got %v", i, c.kind, c.value, got)
		}
	}
}

func TestBellColorRuleOrder(t *testing.T) {
	cases := []struct {
		kind, value string
		want        string
	}{
		{"alarmValueEnumSet.avAlarm", "125 psi", BellRed},
		{"unreliable", "", BellRed},
		// Alarm type wins even when the value claims online.
		{"alarmValueEnumSet.avAlarm", "online", BellRed},
		{"", "offline", BellGray},
		// Offline value wins over a normal type.
		{"normal", "offline", BellGray},
		{"normal", "", BellGreen},
		{"", "online", BellGreen},
		{"something", "42", BellYellow},
	}
	for i, c := range cases {
		if got := BellColor(cardWithLatest(c.kind, c.value)); got != c.want {
			t.Fatalf("case %d (%q/%q): got %s want %s", i, c.kind, c.value, got, c.want)
		}
	}
}
