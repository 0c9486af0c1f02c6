package alarms

import "regexp"

// Lookup carries per-origin catalog data needed to interpret raw events:
// display names, hour offsets and protocol versions keyed by source origin.
type Lookup struct {
	Names    map[string]string
	Offsets  map[string]int
	Versions map[string]int
}

// NewLookup constructs an empty lookup.
func NewLookup() Lookup {
	return Lookup{
		Names:    make(map[string]string),
		Offsets:  make(map[string]int),
		Versions: make(map[string]int),
	}
}

// SourceName resolves a display name for an origin, falling back to the
// origin itself without its scheme.
func (l Lookup) SourceName(origin string) string {
	if name, ok := l.Names[origin]; ok && name != "" {
		return name
	}
	return stripScheme(origin)
}

// OccurrenceInstant is an event's creation time after the source-specific
// hour-offset correction. Zero when the creation time is unparseable.
func (l Lookup) OccurrenceInstant(e Event) int64 {
	ms := ParseTimestamp(e.CreationTime)
	if ms == 0 {
		return 0
	}
	return ApplyOffset(ms, l.Offsets[e.SourceOrigin])
}

// Card is the unit of operator interaction: every occurrence sharing a
// (name, item-reference) key, collapsed into one row. Display fields come
// from the most recent constituent event; the displayed priority comes from
// the most severe one, which may be a different event. Cards are recomputed
// wholesale every refresh, never mutated incrementally.
type Card struct {
	Key            string  `json:"key"`
	Name           string  `json:"name"`
	ItemReference  string  `json:"item_reference"`
	Message        string  `json:"message,omitempty"`
	Value          string  `json:"value,omitempty"`
	Units          string  `json:"units,omitempty"`
	Priority       Number  `json:"priority,omitempty"`
	Type           string  `json:"type,omitempty"`
	IsAcknowledged bool    `json:"is_acknowledged"`
	IsDiscarded    bool    `json:"is_discarded"`
	LatestInstant  int64   `json:"latest_instant_ms"`
	SourceName     string  `json:"source_name,omitempty"`
	SourceLink     string  `json:"source_link,omitempty"`
	SourceOrigin   string  `json:"source_origin,omitempty"`
	Events         []Event `json:"-"`
	Latest         Event   `json:"-"`
}

var (
	schemeRe  = regexp.MustCompile(`^https?://`)
	apiPathRe = regexp.MustCompile(`(?i)/api/V?\d+$`)
)

func stripScheme(origin string) string {
	return schemeRe.ReplaceAllString(origin, "")
}

// UILink derives the source's operator UI address from its API base URL.
func UILink(origin string) string {
	if origin == "" {
		return ""
	}
	return apiPathRe.ReplaceAllString(origin, "/UI/alarms/")
}
