package alarms

import (
	"math"
	"sort"
	"strings"
)

// SortKey names a card column to order by.
type SortKey string

const (
	SortBySource       SortKey = "source"
	SortByName         SortKey = "name"
	SortByReference    SortKey = "reference"
	SortByMessage      SortKey = "message"
	SortByValue        SortKey = "value"
	SortByPriority     SortKey = "priority"
	SortByType         SortKey = "type"
	SortByAcknowledged SortKey = "acknowledged"
	SortByDiscarded    SortKey = "discarded"
	SortByInserted     SortKey = "inserted"
	SortByStatus       SortKey = "status"
)

// ParseSortKey validates a query value; unknown values default to inserted.
func ParseSortKey(value string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(value))) {
	case SortBySource, SortByName, SortByReference, SortByMessage, SortByValue,
		SortByPriority, SortByType, SortByAcknowledged, SortByDiscarded,
		SortByInserted, SortByStatus:
		return SortKey(strings.ToLower(strings.TrimSpace(value)))
	default:
		return SortByInserted
	}
}

// SortCards orders cards by one key and direction. Numeric keys compare
// numerically with missing values ranking lowest; the rest compare as
// strings. Every tie falls back to descending priority, then descending
// latest occurrence. The statusOf callback supplies the displayed status for
// the status key. The sort is stable and does not mutate its input.
func SortCards(cards []Card, key SortKey, ascending bool, statusOf func(Card) string) []Card {
	sorted := make([]Card, len(cards))
	copy(sorted, cards)
	direction := -1
	if ascending {
		direction = 1
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if cmp := compareCards(a, b, key, statusOf); cmp != 0 {
			return cmp*direction < 0
		}
		pa, pb := priorityOrInf(a), priorityOrInf(b)
		if pa != pb {
			return pa > pb
		}
		return a.LatestInstant > b.LatestInstant
	})
	return sorted
}

// FilterByStatus keeps only cards whose displayed status belongs to the
// selected set; an empty set keeps everything.
func FilterByStatus(cards []Card, statuses []string, statusOf func(Card) string) []Card {
	set := toSet(statuses)
	if len(set) == 0 {
		return cards
	}
	kept := make([]Card, 0, len(cards))
	for _, c := range cards {
		if _, ok := set[statusOf(c)]; ok {
			kept = append(kept, c)
		}
	}
	return kept
}

func compareCards(a, b Card, key SortKey, statusOf func(Card) string) int {
	switch key {
	case SortByValue:
		return compareFloats(looseOrInf(a.Value), looseOrInf(b.Value))
	case SortByPriority:
		return compareFloats(priorityOrInf(a), priorityOrInf(b))
	case SortByInserted:
		return compareInt64(a.LatestInstant, b.LatestInstant)
	case SortByAcknowledged:
		return compareBools(a.IsAcknowledged, b.IsAcknowledged)
	case SortByDiscarded:
		return compareBools(a.IsDiscarded, b.IsDiscarded)
	default:
		return strings.Compare(sortString(a, key, statusOf), sortString(b, key, statusOf))
	}
}

func sortString(c Card, key SortKey, statusOf func(Card) string) string {
	switch key {
	case SortBySource:
		return c.SourceName
	case SortByName:
		return c.Name
	case SortByReference:
		return c.ItemReference
	case SortByMessage:
		return c.Message
	case SortByType:
		return c.Type
	case SortByStatus:
		if statusOf != nil {
			return statusOf(c)
		}
		return ""
	default:
		return ""
	}
}

func priorityOrInf(c Card) float64 {
	if value, ok := c.Priority.Float(); ok {
		return value
	}
	return math.Inf(-1)
}

func looseOrInf(value string) float64 {
	if parsed, ok := ParseNumericLoose(value); ok {
		return parsed
	}
	return math.Inf(-1)
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case b:
		return -1
	default:
		return 1
	}
}
