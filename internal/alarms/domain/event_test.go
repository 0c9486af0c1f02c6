package alarms

import (
	"encoding/json"
	"testing"
)

func TestEventDecodeObjectTriggerValue(t *testing.T) {
	raw := `{"id":"e1","itemReference":"site:dev/p1","priority":70,"triggerValue":{"value":12.5,"units":"kW"}}`
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.TriggerValue.Value != "12.5" || event.TriggerValue.Units != "kW" {
		t.Fatalf("trigger value mismatch: %+v", event.TriggerValue)
	}
	if event.ValueText() != "12.5 kW" {
		t.Fatalf("value text mismatch: %q", event.ValueText())
	}
	value, ok := event.Priority.Float()
	if !ok || value != 70 {
		t.Fatalf("priority mismatch: %v %v", value, ok)
	}
}

func TestEventDecodeScalarTriggerValue(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`{"id":"e1","triggerValue":"offline"}`, "offline"},
		{`{"id":"e2","triggerValue":3}`, "3"},
		{`{"id":"e3","triggerValue":null}`, ""},
		{`{"id":"e4"}`, ""},
	}
	for _, tc := range cases {
		var event Event
		if err := json.Unmarshal([]byte(tc.raw), &event); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if event.TriggerValue.Value != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.raw, event.TriggerValue.Value, tc.want)
		}
	}
}

func TestNumberAcceptsQuotedAndComma(t *testing.T) {
	var event Event
	if err := json.Unmarshal([]byte(`{"id":"e1","priority":"70,5"}`), &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	value, ok := event.Priority.Float()
	if !ok || value != 70.5 {
		t.Fatalf("expected 70.5, got %v %v", value, ok)
	}
	if event.Priority.String() != "70,5" {
		t.Fatalf("raw text lost: %q", event.Priority.String())
	}
}

func TestNumberMarshalRoundsTrip(t *testing.T) {
	out, err := json.Marshal(Number{Raw: "70,5"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "70.5" {
		t.Fatalf("expected 70.5, got %s", out)
	}
	out, err = json.Marshal(Number{})
	if err != nil {
		t.Fatalf("marshal empty: %v", err)
	}
	if string(out) != "null" {
		t.Fatalf("expected null, got %s", out)
	}
}
