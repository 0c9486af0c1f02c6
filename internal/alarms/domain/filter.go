package alarms

import "strings"

// TriState is a yes/no/don't-care filter value.
type TriState string

const (
	TriAny TriState = ""
	TriYes TriState = "yes"
	TriNo  TriState = "no"
)

// ParseTriState maps a query value onto a TriState; unknown values mean any.
func ParseTriState(value string) TriState {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "sim", "true", "1":
		return TriYes
	case "no", "nao", "não", "false", "0":
		return TriNo
	default:
		return TriAny
	}
}

func (t TriState) matches(flag bool) bool {
	switch t {
	case TriYes:
		return flag
	case TriNo:
		return !flag
	default:
		return true
	}
}

// Filter is a conjunctive predicate over raw events. Zero values match
// everything. Substring matches are case-insensitive; the priority range is
// inclusive; the inserted range is inclusive with the end date covering its
// whole day (see DateInputToMs).
type Filter struct {
	Sources      []string
	Name         string
	Reference    string
	Message      string
	ValueText    string
	PriorityMin  *float64
	PriorityMax  *float64
	Types        []string
	Acknowledged TriState
	Discarded    TriState
	InsertedFrom string
	InsertedTo   string
}

// Apply returns the events matching every populated criterion.
func (f Filter) Apply(events []Event, lookup Lookup) []Event {
	name := strings.ToLower(strings.TrimSpace(f.Name))
	reference := strings.ToLower(strings.TrimSpace(f.Reference))
	message := strings.ToLower(strings.TrimSpace(f.Message))
	valueText := strings.ToLower(strings.TrimSpace(f.ValueText))
	fromMs, hasFrom := DateInputToMs(f.InsertedFrom, false)
	toMs, hasTo := DateInputToMs(f.InsertedTo, true)
	sources := toSet(f.Sources)
	types := toSet(f.Types)

	matched := make([]Event, 0, len(events))
	for _, e := range events {
		if len(sources) > 0 {
			if _, ok := sources[lookup.SourceName(e.SourceOrigin)]; !ok {
				continue
			}
		}
		if name != "" && !strings.Contains(strings.ToLower(e.Name), name) {
			continue
		}
		if reference != "" && !strings.Contains(strings.ToLower(e.ItemReference), reference) {
			continue
		}
		if message != "" && !strings.Contains(strings.ToLower(e.Message), message) {
			continue
		}
		if valueText != "" && !strings.Contains(strings.ToLower(e.ValueText()), valueText) {
			continue
		}
		if f.PriorityMin != nil || f.PriorityMax != nil {
			priority, ok := e.Priority.Float()
			if f.PriorityMin != nil && (!ok || priority < *f.PriorityMin) {
				continue
			}
			if f.PriorityMax != nil && (!ok || priority > *f.PriorityMax) {
				continue
			}
		}
		if len(types) > 0 {
			if _, ok := types[e.Type]; !ok {
				continue
			}
		}
		if !f.Acknowledged.matches(e.IsAcknowledged) {
			continue
		}
		if !f.Discarded.matches(e.IsDiscarded) {
			continue
		}
		if hasFrom || hasTo {
			inserted := lookup.OccurrenceInstant(e)
			if hasFrom && (inserted == 0 || inserted < fromMs) {
				continue
			}
			if hasTo && (inserted == 0 || inserted > toMs) {
				continue
			}
		}
		matched = append(matched, e)
	}
	return matched
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
