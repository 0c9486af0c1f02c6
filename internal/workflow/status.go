package workflow

import "strings"

// Handling statuses, in lane order. Matching is case-insensitive everywhere;
// the canonical casing below is what gets stored and served.
const (
	StatusNotHandled  = "Not handled"
	StatusInProgress  = "In progress"
	StatusDone        = "Done"
	StatusOpportunity = "Opportunity"
)

// Statuses lists every valid status in lane order.
func Statuses() []string {
	return []string{StatusNotHandled, StatusInProgress, StatusDone, StatusOpportunity}
}

// Canonical maps any casing of a known status onto its canonical form.
// Unknown text comes back unchanged with ok=false.
func Canonical(status string) (string, bool) {
	trimmed := strings.TrimSpace(status)
	for _, known := range Statuses() {
		if strings.EqualFold(trimmed, known) {
			return known, true
		}
	}
	return status, false
}

// closedOrWorking reports whether a status marks the card as being handled,
// resolved, or parked. A new alarm occurrence regresses these to unhandled.
func closedOrWorking(status string) bool {
	return strings.EqualFold(status, StatusDone) ||
		strings.EqualFold(status, StatusInProgress) ||
		strings.EqualFold(status, StatusOpportunity)
}
