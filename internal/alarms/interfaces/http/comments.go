package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	alarmapp "alarmboard/internal/alarms/application"
	"alarmboard/internal/workflow"
)

// CommentStore is the remote comment store surface.
type CommentStore interface {
	List(ctx context.Context, version int, reference string) ([]workflow.Comment, error)
	Create(ctx context.Context, version int, comment workflow.Comment) (workflow.Comment, error)
	Update(ctx context.Context, version int, comment workflow.Comment) (workflow.Comment, error)
	Delete(ctx context.Context, version int, id string) error
}

// CommentsHandler proxies comment CRUD to the store and keeps the status
// engine's cache in step: every mutation re-lists the reference and feeds
// the fresh list back, so the board's status changes immediately instead of
// waiting out the TTL.
type CommentsHandler struct {
	store        CommentStore
	engine       *workflow.Engine
	orchestrator *alarmapp.Orchestrator
	logger       *log.Logger
}

// NewCommentsHandler constructs a comments handler.
func NewCommentsHandler(store CommentStore, engine *workflow.Engine, orchestrator *alarmapp.Orchestrator, logger *log.Logger) (*CommentsHandler, error) {
	if store == nil {
		return nil, errors.New("comments handler: nil store")
	}
	if engine == nil {
		return nil, errors.New("comments handler: nil engine")
	}
	if orchestrator == nil {
		return nil, errors.New("comments handler: nil orchestrator")
	}
	if logger == nil {
		return nil, errors.New("comments handler: nil logger")
	}
	return &CommentsHandler{store: store, engine: engine, orchestrator: orchestrator, logger: logger}, nil
}

// ServeHTTP handles /api/v1/comments and subroutes.
func (h *CommentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/comments":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/comments/"):
		h.handleItem(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *CommentsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(r.URL.Query().Get("reference"))
	if reference == "" {
		http.Error(w, "reference is required", http.StatusBadRequest)
		return
	}
	version := h.orchestrator.VersionForReference(reference)
	comments, err := h.store.List(r.Context(), version, reference)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]any{"items": comments})
}

func (h *CommentsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var comment workflow.Comment
	if err := json.NewDecoder(r.Body).Decode(&comment); err != nil {
		http.Error(w, "invalid comment body", http.StatusBadRequest)
		return
	}
	comment.Reference = strings.TrimSpace(comment.Reference)
	if comment.Reference == "" {
		http.Error(w, "reference is required", http.StatusBadRequest)
		return
	}
	status, ok := workflow.Canonical(comment.Status)
	if !ok {
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}
	comment.Status = status

	version := h.orchestrator.VersionForReference(comment.Reference)
	created, err := h.store.Create(r.Context(), version, comment)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.resync(r.Context(), version, comment.Reference)
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, created)
}

func (h *CommentsHandler) handleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/comments/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	reference := strings.TrimSpace(r.URL.Query().Get("reference"))
	if reference == "" {
		http.Error(w, "reference is required", http.StatusBadRequest)
		return
	}
	version := h.orchestrator.VersionForReference(reference)

	switch r.Method {
	case http.MethodPatch:
		var comment workflow.Comment
		if err := json.NewDecoder(r.Body).Decode(&comment); err != nil {
			http.Error(w, "invalid comment body", http.StatusBadRequest)
			return
		}
		comment.ID = id
		comment.Reference = reference
		if comment.Status != "" {
			status, ok := workflow.Canonical(comment.Status)
			if !ok {
				http.Error(w, "unknown status", http.StatusBadRequest)
				return
			}
			comment.Status = status
		}
		updated, err := h.store.Update(r.Context(), version, comment)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		h.resync(r.Context(), version, reference)
		writeJSON(w, updated)
	case http.MethodDelete:
		if err := h.store.Delete(r.Context(), version, id); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		h.resync(r.Context(), version, reference)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// resync re-derives the persisted status for one reference from the store.
func (h *CommentsHandler) resync(ctx context.Context, version int, reference string) {
	comments, err := h.store.List(ctx, version, reference)
	if err != nil {
		h.logger.Printf("comments: resync of %s failed: %v", reference, err)
		return
	}
	h.engine.UpdateFromComments(reference, comments)
}
