package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	alarmapp "alarmboard/internal/alarms/application"
	"alarmboard/internal/catalog"
)

// SourceStore is the manager-side CRUD surface for source registrations.
type SourceStore interface {
	List(ctx context.Context) ([]catalog.Source, error)
	Create(ctx context.Context, source catalog.Source) (catalog.Source, error)
	Update(ctx context.Context, source catalog.Source) (catalog.Source, error)
	Delete(ctx context.Context, id string) error
}

// LoginProber checks a source's credentials without collecting anything.
type LoginProber interface {
	Login(ctx context.Context, baseURL, username, password string) (string, error)
}

// SourcesHandler proxies source registration to the manager. Passwords
// never leave this process; every response is redacted. A successful
// mutation kicks off a refresh so the board reflects the change without
// waiting for the timer.
type SourcesHandler struct {
	store     SourceStore
	prober    LoginProber
	scheduler *alarmapp.Scheduler
	logger    *log.Logger
}

// NewSourcesHandler constructs a sources handler.
func NewSourcesHandler(store SourceStore, prober LoginProber, scheduler *alarmapp.Scheduler, logger *log.Logger) (*SourcesHandler, error) {
	if store == nil {
		return nil, errors.New("sources handler: nil store")
	}
	if logger == nil {
		return nil, errors.New("sources handler: nil logger")
	}
	return &SourcesHandler{store: store, prober: prober, scheduler: scheduler, logger: logger}, nil
}

// ServeHTTP handles /api/v1/sources and subroutes.
func (h *SourcesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/sources":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/sources/"):
		h.handleItem(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *SourcesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	sources, err := h.store.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	redacted := make([]catalog.Source, 0, len(sources))
	for _, source := range sources {
		redacted = append(redacted, source.Redacted())
	}
	writeJSON(w, map[string]any{"items": redacted})
}

func (h *SourcesHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var source catalog.Source
	if err := json.NewDecoder(r.Body).Decode(&source); err != nil {
		http.Error(w, "invalid source body", http.StatusBadRequest)
		return
	}
	created, err := h.store.Create(r.Context(), source)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.refreshSoon()
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, created.Redacted())
}

func (h *SourcesHandler) handleItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sources/")
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if len(parts) == 2 && parts[1] == "test" {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleTest(w, r, id)
		return
	}
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var source catalog.Source
		if err := json.NewDecoder(r.Body).Decode(&source); err != nil {
			http.Error(w, "invalid source body", http.StatusBadRequest)
			return
		}
		source.ID = id
		updated, err := h.store.Update(r.Context(), source)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		h.refreshSoon()
		writeJSON(w, updated.Redacted())
	case http.MethodDelete:
		if err := h.store.Delete(r.Context(), id); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		h.refreshSoon()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleTest probes the stored credentials with a throwaway login.
func (h *SourcesHandler) handleTest(w http.ResponseWriter, r *http.Request, id string) {
	if h.prober == nil {
		http.Error(w, "login probe not available", http.StatusServiceUnavailable)
		return
	}
	sources, err := h.store.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	for _, source := range sources {
		if source.ID != id {
			continue
		}
		probeCtx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if _, err := h.prober.Login(probeCtx, source.BaseURL, source.Username, source.Password); err != nil {
			writeJSON(w, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(w, map[string]any{"ok": true})
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *SourcesHandler) refreshSoon() {
	if h.scheduler == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := h.scheduler.TriggerNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Printf("sources: post-mutation refresh failed: %v", err)
		}
	}()
}
