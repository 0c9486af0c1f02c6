package workflow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	alarms "alarmboard/internal/alarms/domain"
	"alarmboard/internal/observability/metrics"
)

const (
	statusTTL          = time.Minute
	fetchWorkers       = 4
	commentAPIFallback = 3
)

// CommentLister is the read side of the comment store.
type CommentLister interface {
	List(ctx context.Context, version int, reference string) ([]Comment, error)
}

// Engine reconciles card handling statuses against the remote comment
// store. Nothing here is durable; the comment store is the record and this
// is a cache plus the regression rule.
type Engine struct {
	comments CommentLister
	logger   *log.Logger
	now      func() time.Time

	mu          sync.Mutex
	persisted   map[string]string    // reference -> newest comment status
	persistedAt map[string]int64     // reference -> newest comment instant, ms
	automatic   map[string]string    // card key -> regression status
	fetchedAt   map[string]time.Time // reference -> last store fetch
}

type EngineOption func(*Engine)

// WithEngineClock overrides the TTL clock, for tests.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(comments CommentLister, logger *log.Logger, opts ...EngineOption) (*Engine, error) {
	if comments == nil {
		return nil, fmt.Errorf("workflow: comment lister is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("workflow: logger is required")
	}
	e := &Engine{
		comments:    comments,
		logger:      logger,
		now:         time.Now,
		persisted:   make(map[string]string),
		persistedAt: make(map[string]int64),
		automatic:   make(map[string]string),
		fetchedAt:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// StatusOf resolves one card's effective status. Normalized cards are Done
// no matter what the store says; otherwise the persisted comment status
// wins, then any regression status, then the default.
func (e *Engine) StatusOf(card alarms.Card) string {
	if alarms.IsNormalized(card) {
		return StatusDone
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if persisted, ok := e.persisted[card.ItemReference]; ok {
		return persisted
	}
	if auto, ok := e.automatic[card.Key]; ok {
		return auto
	}
	return StatusNotHandled
}

// Sweep refreshes persisted statuses from the store and then applies the
// regression rule against the given cards.
func (e *Engine) Sweep(ctx context.Context, cards []alarms.Card, lookup alarms.Lookup) {
	e.RefreshStatuses(ctx, cards, lookup)
	e.Reconcile(cards)
}

// RefreshStatuses fetches comment lists for the cards' references. Cards
// earlier in the list are fetched first, a bounded worker set drains the
// queue, and references fetched within the TTL are skipped. A failed fetch
// still stamps the TTL so a flapping store is not hammered.
func (e *Engine) RefreshStatuses(ctx context.Context, cards []alarms.Card, lookup alarms.Lookup) {
	type job struct {
		reference string
		version   int
	}
	var (
		jobs []job
		seen = make(map[string]bool)
	)
	e.mu.Lock()
	now := e.now()
	for _, card := range cards {
		ref := card.ItemReference
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		if fetched, ok := e.fetchedAt[ref]; ok && now.Sub(fetched) < statusTTL {
			continue
		}
		version, ok := lookup.Versions[card.SourceOrigin]
		if !ok {
			version = commentAPIFallback
		}
		jobs = append(jobs, job{reference: ref, version: version})
	}
	e.mu.Unlock()
	if len(jobs) == 0 {
		return
	}

	var (
		next int64 = -1
		wg   sync.WaitGroup
	)
	workers := fetchWorkers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := atomic.AddInt64(&next, 1)
				if i >= int64(len(jobs)) || ctx.Err() != nil {
					return
				}
				j := jobs[i]
				comments, err := e.comments.List(ctx, j.version, j.reference)
				e.mu.Lock()
				e.fetchedAt[j.reference] = e.now()
				e.mu.Unlock()
				if err != nil {
					metrics.IncStatusFetch(metrics.ResultError)
					e.logger.Printf("workflow: status fetch for %s failed: %v", j.reference, err)
					continue
				}
				metrics.IncStatusFetch(metrics.ResultSuccess)
				e.storeComments(j.reference, comments)
			}
		}()
	}
	wg.Wait()
}

// Reconcile applies the regression rule. A normalized card seeds its
// regression status to Done and is otherwise left alone. Any other card that
// was marked handled, resolved, or parked, on either side, and whose latest
// occurrence is newer than its persisted comment drops back to Not handled
// until an operator acts again.
func (e *Engine) Reconcile(cards []alarms.Card) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, card := range cards {
		if alarms.IsNormalized(card) {
			if !strings.EqualFold(e.automatic[card.Key], StatusDone) {
				e.automatic[card.Key] = StatusDone
			}
			continue
		}
		ref := card.ItemReference
		wasClosedOrWorking := closedOrWorking(e.persisted[ref]) || closedOrWorking(e.automatic[card.Key])
		hasNewAlarm := card.LatestInstant > e.persistedAt[ref]
		if hasNewAlarm && wasClosedOrWorking && !strings.EqualFold(e.automatic[card.Key], StatusNotHandled) {
			e.automatic[card.Key] = StatusNotHandled
		}
	}
}

// UpdateFromComments re-derives one reference's persisted status from a
// comment list the caller already holds, typically right after a comment
// mutation. The TTL stamp is refreshed so the next sweep trusts it.
func (e *Engine) UpdateFromComments(reference string, comments []Comment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.storeCommentsLocked(reference, comments)
	e.fetchedAt[reference] = e.now()
}

func (e *Engine) storeComments(reference string, comments []Comment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.storeCommentsLocked(reference, comments)
}

func (e *Engine) storeCommentsLocked(reference string, comments []Comment) {
	if len(comments) == 0 {
		e.persisted[reference] = StatusNotHandled
		e.persistedAt[reference] = 0
		return
	}
	var (
		newest   Comment
		newestAt int64 = -1
	)
	for _, comment := range comments {
		at := alarms.ParseTimestamp(comment.CreatedAt)
		if at > newestAt {
			newest = comment
			newestAt = at
		}
	}
	status, ok := Canonical(newest.Status)
	if !ok {
		status = StatusNotHandled
	}
	e.persisted[reference] = status
	if newestAt < 0 {
		newestAt = e.now().UnixMilli()
	}
	e.persistedAt[reference] = newestAt
}

// Clear forgets every cached status and TTL stamp.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.persisted = make(map[string]string)
	e.persistedAt = make(map[string]int64)
	e.automatic = make(map[string]string)
	e.fetchedAt = make(map[string]time.Time)
}
