package http

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"testing"
	"time"

	alarmapp "alarmboard/internal/alarms/application"
	alarms "alarmboard/internal/alarms/domain"
	"alarmboard/internal/catalog"
	"alarmboard/internal/collector"
	"alarmboard/internal/workflow"
)

type fixedSources struct {
	sources []catalog.Source
}

func (f *fixedSources) List(ctx context.Context) ([]catalog.Source, error) {
	return f.sources, nil
}

type fixedPipeline struct {
	result *collector.Result
}

func (f *fixedPipeline) Run(ctx context.Context, sources []catalog.Source) (*collector.Result, error) {
	return f.result, nil
}

type noComments struct{}

func (noComments) List(ctx context.Context, version int, reference string) ([]workflow.Comment, error) {
	return nil, nil
}

func (noComments) Create(ctx context.Context, version int, comment workflow.Comment) (workflow.Comment, error) {
	return comment, nil
}

func (noComments) Update(ctx context.Context, version int, comment workflow.Comment) (workflow.Comment, error) {
	return comment, nil
}

func (noComments) Delete(ctx context.Context, version int, id string) error {
	return nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// newBoard builds an orchestrator over canned events and runs one cycle.
func newBoard(t *testing.T, events []alarms.Event) (*alarmapp.Orchestrator, *alarmapp.Scheduler) {
	t.Helper()
	lookup := alarms.NewLookup()
	lookup.Names["http://plant.example/api/V3"] = "Plant"
	lookup.Versions["http://plant.example/api/V3"] = 3

	engine, err := workflow.NewEngine(noComments{}, quietLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	orchestrator, err := alarmapp.NewOrchestrator(
		&fixedSources{sources: []catalog.Source{{ID: "s1", Name: "Plant", BaseURL: "http://plant.example/api/V3"}}},
		&fixedPipeline{result: &collector.Result{Events: events, Lookup: lookup}},
		engine,
		nil,
		quietLogger(),
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	if err := orchestrator.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return orchestrator, alarmapp.NewScheduler(orchestrator, time.Minute, quietLogger())
}

func boardEvent(id, name, ref, created string) alarms.Event {
	return alarms.Event{
		ID:            id,
		Name:          name,
		ItemReference: ref,
		CreationTime:  created,
		SourceOrigin:  "http://plant.example/api/V3",
	}
}

func TestHandleCards(t *testing.T) {
	orchestrator, scheduler := newBoard(t, []alarms.Event{
		boardEvent("e1", "High temp", "R1", "2026-03-01T10:00:00Z"),
		boardEvent("e2", "High temp", "R1", "2026-03-01T11:00:00Z"),
		boardEvent("e3", "Low flow", "R2", "2026-03-01T09:00:00Z"),
	})
	handler, err := NewHandler(orchestrator, scheduler)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/v1/cards", nil)
	rec := httptest.NewRecorder()
	handler.HandleCards(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var response cardsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.Total != 2 {
		t.Fatalf("total = %d, want 2 cards", response.Total)
	}
	if !response.Online {
		t.Fatal("fresh snapshot should be online")
	}
	for _, card := range response.Cards {
		if card.Status != workflow.StatusNotHandled {
			t.Fatalf("card %s status = %q", card.Key, card.Status)
		}
		if card.Bell == "" || card.Inserted == "" {
			t.Fatalf("card view incomplete: %+v", card)
		}
	}
	// Two occurrences collapsed into the R1 card.
	for _, card := range response.Cards {
		if card.ItemReference == "R1" && card.Occurrences != 2 {
			t.Fatalf("R1 occurrences = %d", card.Occurrences)
		}
	}
}

func TestHandleCardsNameFilter(t *testing.T) {
	orchestrator, scheduler := newBoard(t, []alarms.Event{
		boardEvent("e1", "High temp", "R1", "2026-03-01T10:00:00Z"),
		boardEvent("e2", "Low flow", "R2", "2026-03-01T09:00:00Z"),
	})
	handler, _ := NewHandler(orchestrator, scheduler)

	req := httptest.NewRequest("GET", "/api/v1/cards?name=temp", nil)
	rec := httptest.NewRecorder()
	handler.HandleCards(rec, req)

	var response cardsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.Total != 1 || response.Cards[0].Name != "High temp" {
		t.Fatalf("unexpected filter result: %+v", response.Cards)
	}
}

func TestHandleCardsBadPriority(t *testing.T) {
	orchestrator, scheduler := newBoard(t, nil)
	handler, _ := NewHandler(orchestrator, scheduler)

	req := httptest.NewRequest("GET", "/api/v1/cards?priority_min=abc", nil)
	rec := httptest.NewRecorder()
	handler.HandleCards(rec, req)
	if rec.Code != 400 {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestHandleErrorsEmpty(t *testing.T) {
	orchestrator, scheduler := newBoard(t, nil)
	handler, _ := NewHandler(orchestrator, scheduler)

	req := httptest.NewRequest("GET", "/api/v1/errors", nil)
	rec := httptest.NewRecorder()
	handler.HandleErrors(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestHandleRefresh(t *testing.T) {
	orchestrator, scheduler := newBoard(t, nil)
	handler, _ := NewHandler(orchestrator, scheduler)

	req := httptest.NewRequest("POST", "/api/v1/refresh", nil)
	rec := httptest.NewRecorder()
	handler.HandleRefresh(rec, req)

	var response map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response["ok"] != true {
		t.Fatalf("refresh response: %+v", response)
	}

	rec = httptest.NewRecorder()
	handler.HandleRefresh(rec, httptest.NewRequest("GET", "/api/v1/refresh", nil))
	if rec.Code != 405 {
		t.Fatalf("GET refresh: status %d, want 405", rec.Code)
	}
}
