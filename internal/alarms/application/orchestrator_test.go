package application

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	alarms "alarmboard/internal/alarms/domain"
	"alarmboard/internal/catalog"
	"alarmboard/internal/collector"
)

type stubSources struct {
	sources []catalog.Source
	err     error
}

func (s *stubSources) List(ctx context.Context) ([]catalog.Source, error) {
	return s.sources, s.err
}

type stubPipeline struct {
	mu      sync.Mutex
	results []func(ctx context.Context) (*collector.Result, error)
	calls   int
}

func (s *stubPipeline) Run(ctx context.Context, sources []catalog.Source) (*collector.Result, error) {
	s.mu.Lock()
	fn := s.results[s.calls%len(s.results)]
	s.calls++
	s.mu.Unlock()
	return fn(ctx)
}

type stubEngine struct{}

func (stubEngine) Sweep(ctx context.Context, cards []alarms.Card, lookup alarms.Lookup) {}

func (stubEngine) StatusOf(card alarms.Card) string { return "Not handled" }

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) Notify(event string) {
	n.mu.Lock()
	n.count++
	n.mu.Unlock()
}

func (n *countingNotifier) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func okResult(events ...alarms.Event) func(ctx context.Context) (*collector.Result, error) {
	return func(ctx context.Context) (*collector.Result, error) {
		return &collector.Result{Events: events, Lookup: alarms.NewLookup()}, nil
	}
}

func totalFailure() func(ctx context.Context) (*collector.Result, error) {
	return func(ctx context.Context) (*collector.Result, error) {
		return &collector.Result{
			Lookup: alarms.NewLookup(),
			Errors: []collector.ErrorEntry{{ID: "x::pipeline", Title: "Collector unreachable"}},
		}, collector.ErrTotalFailure
	}
}

func newOrchestrator(t *testing.T, pipeline PipelineRunner, notifier Notifier) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(
		&stubSources{sources: []catalog.Source{{ID: "s1", BaseURL: "http://a/api/V3"}}},
		pipeline,
		stubEngine{},
		notifier,
		testLogger(),
	)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return o
}

func TestRefreshPublishesSnapshot(t *testing.T) {
	notifier := &countingNotifier{}
	o := newOrchestrator(t, &stubPipeline{results: []func(ctx context.Context) (*collector.Result, error){
		okResult(alarms.Event{ID: "e1", Name: "High temp", ItemReference: "R1"}),
	}}, notifier)

	if o.Snapshot() != nil {
		t.Fatal("no snapshot before the first cycle")
	}
	if err := o.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	snapshot := o.Snapshot()
	if snapshot == nil || len(snapshot.Cards) != 1 {
		t.Fatalf("snapshot not published: %+v", snapshot)
	}
	if !snapshot.Online {
		t.Fatal("successful cycle should be online")
	}
	if snapshot.CycleID == "" {
		t.Fatal("cycle id missing")
	}
	if notifier.total() != 1 {
		t.Fatalf("notifier called %d times", notifier.total())
	}
}

func TestTotalFailureKeepsPreviousSnapshot(t *testing.T) {
	pipeline := &stubPipeline{results: []func(ctx context.Context) (*collector.Result, error){
		okResult(alarms.Event{ID: "e1", Name: "High temp", ItemReference: "R1"}),
		totalFailure(),
	}}
	o := newOrchestrator(t, pipeline, nil)

	if err := o.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	first := o.Snapshot()

	err := o.Refresh(context.Background())
	if !errors.Is(err, collector.ErrTotalFailure) {
		t.Fatalf("expected ErrTotalFailure, got %v", err)
	}
	second := o.Snapshot()
	if second == nil || len(second.Cards) != 1 {
		t.Fatal("previous cards must survive a total failure")
	}
	if second.Online {
		t.Fatal("online flag must drop on total failure")
	}
	if second.CycleID != first.CycleID {
		t.Fatal("a failed cycle must not publish a new cycle id")
	}
	if len(second.Errors) == 0 {
		t.Fatal("failure errors should be surfaced")
	}
}

func TestTotalFailureWithNoHistory(t *testing.T) {
	o := newOrchestrator(t, &stubPipeline{results: []func(ctx context.Context) (*collector.Result, error){totalFailure()}}, nil)

	err := o.Refresh(context.Background())
	if !errors.Is(err, collector.ErrTotalFailure) {
		t.Fatalf("expected ErrTotalFailure, got %v", err)
	}
	snapshot := o.Snapshot()
	if snapshot == nil {
		t.Fatal("even a failed first cycle should surface its errors")
	}
	if snapshot.Online || len(snapshot.Errors) == 0 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestSupersededCycleNeverPublishes(t *testing.T) {
	var (
		release   = make(chan struct{})
		started   = make(chan struct{})
		startOnce sync.Once
	)
	slow := func(ctx context.Context) (*collector.Result, error) {
		startOnce.Do(func() { close(started) })
		select {
		case <-release:
		case <-ctx.Done():
			return &collector.Result{Lookup: alarms.NewLookup()}, ctx.Err()
		}
		return &collector.Result{
			Events: []alarms.Event{{ID: "stale", Name: "Stale", ItemReference: "R9"}},
			Lookup: alarms.NewLookup(),
		}, nil
	}
	pipeline := &stubPipeline{results: []func(ctx context.Context) (*collector.Result, error){
		slow,
		okResult(alarms.Event{ID: "fresh", Name: "Fresh", ItemReference: "R1"}),
	}}
	o := newOrchestrator(t, pipeline, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = o.Refresh(context.Background())
	}()

	// Wait until the slow cycle is in flight, then supersede it.
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle never started")
	}
	if err := o.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	close(release)
	wg.Wait()

	snapshot := o.Snapshot()
	if snapshot == nil || len(snapshot.Cards) != 1 {
		t.Fatalf("snapshot missing: %+v", snapshot)
	}
	if snapshot.Cards[0].Name != "Fresh" {
		t.Fatalf("stale cycle published over the fresh one: %+v", snapshot.Cards)
	}
}

func TestViewBeforeFirstCycle(t *testing.T) {
	o := newOrchestrator(t, &stubPipeline{results: []func(ctx context.Context) (*collector.Result, error){okResult()}}, nil)
	cards, statuses := o.View(alarms.Filter{}, alarms.SortByInserted, false, nil)
	if cards != nil || statuses != nil {
		t.Fatal("view before the first cycle should be empty")
	}
}

func TestSchedulerCountdown(t *testing.T) {
	o := newOrchestrator(t, &stubPipeline{results: []func(ctx context.Context) (*collector.Result, error){okResult()}}, nil)
	s := NewScheduler(o, time.Minute, testLogger())

	countdown := s.Countdown()
	if countdown <= 0 || countdown > 60 {
		t.Fatalf("countdown = %d", countdown)
	}
	if err := s.TriggerNow(context.Background()); err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if after := s.Countdown(); after <= 0 || after > 60 {
		t.Fatalf("countdown after trigger = %d", after)
	}
}

func TestVersionForReference(t *testing.T) {
	lookup := alarms.NewLookup()
	lookup.Versions["http://a/api/V4"] = 4
	pipeline := &stubPipeline{results: []func(ctx context.Context) (*collector.Result, error){
		func(ctx context.Context) (*collector.Result, error) {
			return &collector.Result{
				Events: []alarms.Event{{ID: "e1", Name: "N", ItemReference: "R1", SourceOrigin: "http://a/api/V4"}},
				Lookup: lookup,
			}, nil
		},
	}}
	o := newOrchestrator(t, pipeline, nil)
	if err := o.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := o.VersionForReference("R1"); got != 4 {
		t.Fatalf("got version %d, want 4", got)
	}
	if got := o.VersionForReference("unknown"); got != 3 {
		t.Fatalf("fallback version = %d, want 3", got)
	}
}
