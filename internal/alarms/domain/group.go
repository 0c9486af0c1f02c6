package alarms

import "math"

// GroupKey joins the fields that identify a logical alarm condition. Event
// ids are not globally unique across sources, so grouping never uses them.
func GroupKey(e Event) string {
	return e.Name + "||" + e.ItemReference
}

// Group partitions events into cards keyed by (name, item reference). Within
// each partition a single scan selects the event with the maximum
// offset-adjusted occurrence instant ("latest") and the event with the
// maximum numeric priority, missing or non-numeric priority ranking lowest
// ("highest"); ties keep the first-seen event. Card display fields come from
// latest, the displayed priority from highest. Partition order follows first
// appearance in the input, so identical input yields identical output.
func Group(events []Event, lookup Lookup) []Card {
	order := make([]string, 0)
	partitions := make(map[string][]Event)
	for _, e := range events {
		key := GroupKey(e)
		if _, ok := partitions[key]; !ok {
			order = append(order, key)
		}
		partitions[key] = append(partitions[key], e)
	}

	cards := make([]Card, 0, len(order))
	for _, key := range order {
		members := partitions[key]
		latest := members[0]
		latestInstant := int64(-1)
		highest := members[0]
		highestPriority := math.Inf(-1)
		for _, e := range members {
			if instant := lookup.OccurrenceInstant(e); instant > latestInstant {
				latestInstant = instant
				latest = e
			}
			priority := math.Inf(-1)
			if value, ok := e.Priority.Float(); ok {
				priority = value
			}
			if priority > highestPriority {
				highestPriority = priority
				highest = e
			}
		}
		if latestInstant < 0 {
			latestInstant = 0
		}

		origin := latest.SourceOrigin
		cards = append(cards, Card{
			Key:            key,
			Name:           latest.Name,
			ItemReference:  latest.ItemReference,
			Message:        latest.Message,
			Value:          latest.TriggerValue.Value,
			Units:          latest.TriggerValue.Units,
			Priority:       highest.Priority,
			Type:           latest.Type,
			IsAcknowledged: latest.IsAcknowledged,
			IsDiscarded:    latest.IsDiscarded,
			LatestInstant:  latestInstant,
			SourceName:     lookup.SourceName(origin),
			SourceLink:     UILink(origin),
			SourceOrigin:   origin,
			Events:         members,
			Latest:         latest,
		})
	}
	return cards
}
