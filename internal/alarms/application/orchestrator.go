package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	alarms "alarmboard/internal/alarms/domain"
	"alarmboard/internal/catalog"
	"alarmboard/internal/collector"
	"alarmboard/internal/observability/metrics"
)

// SourceLister fetches the registered sources from the manager.
type SourceLister interface {
	List(ctx context.Context) ([]catalog.Source, error)
}

// PipelineRunner runs one collection cycle over a source list.
type PipelineRunner interface {
	Run(ctx context.Context, sources []catalog.Source) (*collector.Result, error)
}

// StatusEngine reconciles and resolves handling statuses.
type StatusEngine interface {
	Sweep(ctx context.Context, cards []alarms.Card, lookup alarms.Lookup)
	StatusOf(card alarms.Card) string
}

// Notifier pushes a refresh signal to connected dashboards.
type Notifier interface {
	Notify(event string)
}

// Snapshot is the outcome of one completed collection cycle. Reads always
// see a whole snapshot; a cycle either replaces it or leaves it untouched.
type Snapshot struct {
	CycleID     string
	Events      []alarms.Event
	Cards       []alarms.Card
	Errors      []collector.ErrorEntry
	Lookup      alarms.Lookup
	CompletedAt time.Time
	Online      bool
}

// Orchestrator owns the refresh lifecycle: it runs collection cycles,
// publishes snapshots, and answers filtered views of the current one. A new
// refresh cancels the in-flight one; a superseded cycle never publishes.
type Orchestrator struct {
	sources  SourceLister
	pipeline PipelineRunner
	engine   StatusEngine
	notifier Notifier
	logger   *log.Logger

	mu         sync.Mutex
	snapshot   *Snapshot
	generation uint64
	cancel     context.CancelFunc
	inFlight   bool
}

func NewOrchestrator(sources SourceLister, pipeline PipelineRunner, engine StatusEngine, notifier Notifier, logger *log.Logger) (*Orchestrator, error) {
	if sources == nil {
		return nil, fmt.Errorf("application: source lister is required")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("application: pipeline is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("application: status engine is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("application: logger is required")
	}
	return &Orchestrator{
		sources:  sources,
		pipeline: pipeline,
		engine:   engine,
		notifier: notifier,
		logger:   logger,
	}, nil
}

// Refresh runs one collection cycle. A refresh already in flight is
// cancelled and its result discarded; only the latest cycle may publish.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.generation++
	generation := o.generation
	o.inFlight = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		if o.generation == generation {
			o.inFlight = false
			o.cancel = nil
		}
		o.mu.Unlock()
		cancel()
	}()

	started := time.Now()
	snapshot, err := o.runCycle(cycleCtx)
	elapsed := time.Since(started)

	switch {
	case errors.Is(err, context.Canceled):
		metrics.ObserveRefreshCycle("superseded", elapsed)
		return err
	case errors.Is(err, collector.ErrTotalFailure):
		// Keep serving the previous snapshot; only flip the online flag.
		o.mu.Lock()
		if o.generation == generation {
			if o.snapshot != nil {
				retained := *o.snapshot
				retained.Online = false
				retained.Errors = snapshot.Errors
				o.snapshot = &retained
			} else {
				snapshot.Online = false
				o.snapshot = snapshot
			}
		}
		o.mu.Unlock()
		metrics.ObserveRefreshCycle("failed", elapsed)
		o.logger.Printf("application: refresh %s failed entirely: %v", snapshot.CycleID, err)
		o.broadcast()
		return err
	case err != nil:
		metrics.ObserveRefreshCycle("error", elapsed)
		return err
	}

	o.mu.Lock()
	if o.generation != generation {
		o.mu.Unlock()
		metrics.ObserveRefreshCycle("superseded", elapsed)
		return context.Canceled
	}
	o.snapshot = snapshot
	o.mu.Unlock()

	metrics.ObserveRefreshCycle("ok", elapsed)
	metrics.SetSnapshotSize(len(snapshot.Cards), len(snapshot.Errors))
	o.logger.Printf("application: refresh %s done: %d events, %d cards, %d errors",
		snapshot.CycleID, len(snapshot.Events), len(snapshot.Cards), len(snapshot.Errors))
	o.broadcast()
	return nil
}

func (o *Orchestrator) runCycle(ctx context.Context) (*Snapshot, error) {
	snapshot := &Snapshot{
		CycleID: uuid.NewString(),
		Lookup:  alarms.NewLookup(),
		Online:  true,
	}

	sources, err := o.sources.List(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("application: list sources: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return snapshot, err
	}

	result, err := o.pipeline.Run(ctx, sources)
	if result != nil {
		snapshot.Events = result.Events
		snapshot.Errors = result.Errors
		snapshot.Lookup = result.Lookup
	}
	if err != nil {
		return snapshot, err
	}

	snapshot.Cards = alarms.Group(snapshot.Events, snapshot.Lookup)
	o.engine.Sweep(ctx, snapshot.Cards, snapshot.Lookup)
	if err := ctx.Err(); err != nil {
		return snapshot, err
	}
	snapshot.CompletedAt = time.Now()
	return snapshot, nil
}

func (o *Orchestrator) broadcast() {
	if o.notifier != nil {
		o.notifier.Notify("refresh")
	}
}

// Snapshot returns the current snapshot, or nil before the first cycle.
func (o *Orchestrator) Snapshot() *Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot
}

// InProgress reports whether a cycle is currently running.
func (o *Orchestrator) InProgress() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// View recomputes the card list from the current snapshot's raw events:
// filter, regroup, resolve statuses, then sort. Statuses come back keyed by
// card key alongside the cards.
func (o *Orchestrator) View(filter alarms.Filter, sortKey alarms.SortKey, ascending bool, statuses []string) ([]alarms.Card, map[string]string) {
	snapshot := o.Snapshot()
	if snapshot == nil {
		return nil, nil
	}
	events := filter.Apply(snapshot.Events, snapshot.Lookup)
	cards := alarms.Group(events, snapshot.Lookup)
	cards = alarms.FilterByStatus(cards, statuses, o.engine.StatusOf)
	cards = alarms.SortCards(cards, sortKey, ascending, o.engine.StatusOf)

	statusByKey := make(map[string]string, len(cards))
	for _, card := range cards {
		statusByKey[card.Key] = o.engine.StatusOf(card)
	}
	return cards, statusByKey
}

// VersionForReference resolves the API version that owns an item reference,
// for routing comment calls. Falls back to the default version when the
// reference is not on any current card.
func (o *Orchestrator) VersionForReference(reference string) int {
	snapshot := o.Snapshot()
	if snapshot == nil {
		return 3
	}
	for _, card := range snapshot.Cards {
		if card.ItemReference == reference {
			if version, ok := snapshot.Lookup.Versions[card.SourceOrigin]; ok {
				return version
			}
		}
	}
	return 3
}
