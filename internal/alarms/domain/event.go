package alarms

import (
	"encoding/json"
	"strings"
)

// Event is one alarm occurrence as reported by one source, enriched on
// receipt with the origin that produced it and the local receive instant.
// Ids are unique within a single source's response only; grouping never
// relies on them.
type Event struct {
	ID             string       `json:"id"`
	ItemReference  string       `json:"itemReference,omitempty"`
	Name           string       `json:"name,omitempty"`
	Message        string       `json:"message,omitempty"`
	IsAckRequired  bool         `json:"isAckRequired,omitempty"`
	Type           string       `json:"type,omitempty"`
	Priority       Number       `json:"priority,omitempty"`
	CreationTime   string       `json:"creationTime,omitempty"`
	IsAcknowledged bool         `json:"isAcknowledged,omitempty"`
	IsDiscarded    bool         `json:"isDiscarded,omitempty"`
	Category       string       `json:"category,omitempty"`
	ObjectURL      string       `json:"objectUrl,omitempty"`
	Self           string       `json:"self,omitempty"`
	TriggerValue   TriggerValue `json:"triggerValue,omitempty"`

	SourceOrigin string `json:"source_base_url,omitempty"`
	ReceivedAtMs int64  `json:"received_at_ms,omitempty"`
}

// TriggerValue is the value that tripped the alarm. Upstreams send either a
// bare scalar or a {value, units} pair; both decode into the same shape.
type TriggerValue struct {
	Value string `json:"value,omitempty"`
	Units string `json:"units,omitempty"`
}

// UnmarshalJSON accepts `null`, a bare scalar, or an object.
func (v *TriggerValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*v = TriggerValue{}
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var obj struct {
			Value json.RawMessage `json:"value"`
			Units string          `json:"units"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*v = TriggerValue{Value: scalarString(obj.Value), Units: obj.Units}
		return nil
	}
	*v = TriggerValue{Value: scalarString(data)}
	return nil
}

// Number is a priority-style field that upstreams send as a number, a quoted
// number, or omit entirely. The raw text is preserved for display; Float
// applies the loose numeric parse.
type Number struct {
	Raw string
}

// UnmarshalJSON accepts any scalar.
func (n *Number) UnmarshalJSON(data []byte) error {
	n.Raw = scalarString(data)
	return nil
}

// MarshalJSON emits the numeric form when possible, else a string.
func (n Number) MarshalJSON() ([]byte, error) {
	if n.Raw == "" {
		return []byte("null"), nil
	}
	if _, ok := ParseNumericLoose(n.Raw); ok {
		return []byte(strings.ReplaceAll(n.Raw, ",", ".")), nil
	}
	return json.Marshal(n.Raw)
}

// Float returns the parsed value; false when missing or non-numeric.
func (n Number) Float() (float64, bool) {
	return ParseNumericLoose(n.Raw)
}

// String returns the raw text.
func (n Number) String() string { return n.Raw }

func scalarString(data json.RawMessage) string {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	return trimmed
}

// ValueText is the "value units" string used for display and filtering.
func (e Event) ValueText() string {
	return strings.TrimSpace(e.TriggerValue.Value + " " + e.TriggerValue.Units)
}
