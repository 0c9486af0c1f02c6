package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	alarmapp "alarmboard/internal/alarms/application"
	alarms "alarmboard/internal/alarms/domain"
)

// Handler provides the card dashboard endpoints.
type Handler struct {
	orchestrator *alarmapp.Orchestrator
	scheduler    *alarmapp.Scheduler
}

// NewHandler constructs a handler.
func NewHandler(orchestrator *alarmapp.Orchestrator, scheduler *alarmapp.Scheduler) (*Handler, error) {
	if orchestrator == nil {
		return nil, errors.New("cards handler: nil orchestrator")
	}
	if scheduler == nil {
		return nil, errors.New("cards handler: nil scheduler")
	}
	return &Handler{orchestrator: orchestrator, scheduler: scheduler}, nil
}

// cardView is one dashboard row: the card plus its resolved status, bell
// color and formatted occurrence time.
type cardView struct {
	alarms.Card
	Status      string `json:"status"`
	Bell        string `json:"bell"`
	Inserted    string `json:"inserted"`
	Occurrences int    `json:"occurrences"`
}

type cardsResponse struct {
	CycleID    string     `json:"cycle_id"`
	Online     bool       `json:"online"`
	Refreshing bool       `json:"refreshing"`
	Countdown  int        `json:"countdown_seconds"`
	Total      int        `json:"total"`
	Cards      []cardView `json:"cards"`
}

// HandleCards handles GET /api/v1/cards.
func (h *Handler) HandleCards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	sortKey := alarms.ParseSortKey(q.Get("sort"))
	ascending := !strings.EqualFold(q.Get("dir"), "desc")
	statuses := splitQueryList(q.Get("statuses"))

	cards, statusByKey := h.orchestrator.View(filter, sortKey, ascending, statuses)

	response := cardsResponse{
		Refreshing: h.orchestrator.InProgress(),
		Countdown:  h.scheduler.Countdown(),
		Total:      len(cards),
		Cards:      make([]cardView, 0, len(cards)),
	}
	if snapshot := h.orchestrator.Snapshot(); snapshot != nil {
		response.CycleID = snapshot.CycleID
		response.Online = snapshot.Online
	}
	for _, card := range cards {
		response.Cards = append(response.Cards, cardView{
			Card:        card,
			Status:      statusByKey[card.Key],
			Bell:        alarms.BellColor(card),
			Inserted:    alarms.FormatDisplay(card.LatestInstant),
			Occurrences: len(card.Events),
		})
	}
	writeJSON(w, response)
}

// HandleErrors handles GET /api/v1/errors.
func (h *Handler) HandleErrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snapshot := h.orchestrator.Snapshot()
	if snapshot == nil {
		writeJSON(w, map[string]any{"errors": []any{}})
		return
	}
	writeJSON(w, map[string]any{"errors": snapshot.Errors})
}

// HandleRefresh handles POST /api/v1/refresh.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	// The refresh runs to completion; connected dashboards learn about the
	// new snapshot over the stream as well. A cycle superseded by an even
	// newer request is not an error worth reporting.
	err := h.scheduler.TriggerNow(r.Context())
	if err != nil && !errors.Is(err, context.Canceled) {
		writeJSON(w, map[string]any{
			"ok":                false,
			"error":             err.Error(),
			"countdown_seconds": h.scheduler.Countdown(),
		})
		return
	}
	writeJSON(w, map[string]any{
		"ok":                true,
		"countdown_seconds": h.scheduler.Countdown(),
	})
}

func parseFilter(r *http.Request) (alarms.Filter, error) {
	q := r.URL.Query()
	filter := alarms.Filter{
		Sources:      splitQueryList(q.Get("sources")),
		Name:         q.Get("name"),
		Reference:    q.Get("reference"),
		Message:      q.Get("message"),
		ValueText:    q.Get("value"),
		Types:        splitQueryList(q.Get("types")),
		Acknowledged: alarms.ParseTriState(q.Get("acknowledged")),
		Discarded:    alarms.ParseTriState(q.Get("discarded")),
		InsertedFrom: q.Get("from"),
		InsertedTo:   q.Get("to"),
	}
	var err error
	if filter.PriorityMin, err = parseFloatQuery(q.Get("priority_min")); err != nil {
		return filter, err
	}
	if filter.PriorityMax, err = parseFloatQuery(q.Get("priority_max")); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseFloatQuery(value string) (*float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
	if err != nil {
		return nil, errors.New("priority bounds must be numeric")
	}
	return &parsed, nil
}

func splitQueryList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
