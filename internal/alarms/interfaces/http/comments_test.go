package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	alarms "alarmboard/internal/alarms/domain"
	"alarmboard/internal/workflow"
)

func card(key, reference string, latest int64) alarms.Card {
	return alarms.Card{Key: key, ItemReference: reference, LatestInstant: latest}
}

type memoryComments struct {
	mu    sync.Mutex
	next  int
	items map[string][]workflow.Comment
}

func newMemoryComments() *memoryComments {
	return &memoryComments{items: make(map[string][]workflow.Comment)}
}

func (m *memoryComments) List(ctx context.Context, version int, reference string) ([]workflow.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]workflow.Comment(nil), m.items[reference]...), nil
}

func (m *memoryComments) Create(ctx context.Context, version int, comment workflow.Comment) (workflow.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	comment.ID = fmt.Sprintf("c%d", m.next)
	m.items[comment.Reference] = append(m.items[comment.Reference], comment)
	return comment, nil
}

func (m *memoryComments) Update(ctx context.Context, version int, comment workflow.Comment) (workflow.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.items[comment.Reference]
	for i := range list {
		if list[i].ID == comment.ID {
			list[i] = comment
			return comment, nil
		}
	}
	return comment, nil
}

func (m *memoryComments) Delete(ctx context.Context, version int, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for reference, list := range m.items {
		kept := list[:0]
		for _, c := range list {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		m.items[reference] = kept
	}
	return nil
}

func newCommentsHandler(t *testing.T) (*CommentsHandler, *workflow.Engine, *memoryComments) {
	t.Helper()
	store := newMemoryComments()
	engine, err := workflow.NewEngine(store, quietLogger())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	orchestrator, _ := newBoard(t, nil)
	handler, err := NewCommentsHandler(store, engine, orchestrator, quietLogger())
	if err != nil {
		t.Fatalf("NewCommentsHandler: %v", err)
	}
	return handler, engine, store
}

func TestCommentsCreateValidatesStatus(t *testing.T) {
	handler, _, _ := newCommentsHandler(t)

	body := `{"reference":"R1","text":"looking","status":"archived"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/comments", strings.NewReader(body)))
	if rec.Code != 400 {
		t.Fatalf("status %d, want 400 for unknown status", rec.Code)
	}
}

func TestCommentsCreateAndList(t *testing.T) {
	handler, _, store := newCommentsHandler(t)

	body := `{"reference":"R1","text":"looking into it","status":"in progress","created_at":"2026-03-01T10:00:00Z"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/comments", strings.NewReader(body)))
	if rec.Code != 201 {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var created workflow.Comment
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != workflow.StatusInProgress {
		t.Fatalf("status not canonicalized: %q", created.Status)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/comments?reference=R1", nil))
	if rec.Code != 200 {
		t.Fatalf("list status %d", rec.Code)
	}
	var listed struct {
		Items []workflow.Comment `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Items) != 1 || len(store.items["R1"]) != 1 {
		t.Fatalf("unexpected list: %+v", listed.Items)
	}
}

func TestCommentsMutationUpdatesEngine(t *testing.T) {
	handler, engine, _ := newCommentsHandler(t)

	body := `{"reference":"R1","text":"resolved","status":"done","created_at":"2026-03-01T10:00:00Z"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/comments", strings.NewReader(body)))
	if rec.Code != 201 {
		t.Fatalf("status %d", rec.Code)
	}

	// The engine sees the new status without waiting for a sweep.
	if got := engine.StatusOf(card("k1", "R1", 0)); got != workflow.StatusDone {
		t.Fatalf("engine status = %q, want %q", got, workflow.StatusDone)
	}
}

func TestCommentsListRequiresReference(t *testing.T) {
	handler, _, _ := newCommentsHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/comments", nil))
	if rec.Code != 400 {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestCommentsDelete(t *testing.T) {
	handler, engine, store := newCommentsHandler(t)

	body := `{"reference":"R1","text":"resolved","status":"done","created_at":"2026-03-01T10:00:00Z"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/comments", strings.NewReader(body)))
	var created workflow.Comment
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/v1/comments/"+created.ID+"?reference=R1", nil))
	if rec.Code != 204 {
		t.Fatalf("delete status %d", rec.Code)
	}
	if len(store.items["R1"]) != 0 {
		t.Fatalf("comment not removed: %+v", store.items["R1"])
	}
	// With no comments left the reference falls back to the default lane.
	if got := engine.StatusOf(card("k1", "R1", 0)); got != workflow.StatusNotHandled {
		t.Fatalf("engine status = %q", got)
	}
}
