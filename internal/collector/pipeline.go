package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	alarms "alarmboard/internal/alarms/domain"
	"alarmboard/internal/catalog"
	"alarmboard/internal/limiter"
	"alarmboard/internal/observability/metrics"
)

// ErrTotalFailure reports a cycle in which every configured source failed.
// The caller keeps serving the previous snapshot when it sees this.
var ErrTotalFailure = errors.New("collector: all sources failed")

const maxConcurrentSources = 10

// TokenSource yields login tokens for a source, typically through a cache.
type TokenSource interface {
	Token(ctx context.Context, baseURL, username, password string) (string, error)
}

// Collector runs batch alarm fetches against one collector origin.
type Collector interface {
	CollectBatch(ctx context.Context, origin string, sessions []Session) (*BatchResult, error)
}

// ErrorEntry is a per-source failure surfaced to the UI's error panel. The
// ID suffix marks entries produced by this pipeline as opposed to errors
// relayed verbatim from a daemon.
type ErrorEntry struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Result is the outcome of one collection cycle.
type Result struct {
	Events []alarms.Event
	Lookup alarms.Lookup
	Errors []ErrorEntry
}

// Pipeline turns a source list into a merged event set. Each source is one
// unit of work, login followed by a collect against the daemon for its API
// version, and at most maxConcurrentSources units run at once.
type Pipeline struct {
	tokens        TokenSource
	collector     Collector
	collectorHost string
	limiter       *limiter.Limiter
	logger        *log.Logger
}

func NewPipeline(tokens TokenSource, collector Collector, collectorHost string, logger *log.Logger) (*Pipeline, error) {
	if tokens == nil {
		return nil, fmt.Errorf("collector: token source is required")
	}
	if collector == nil {
		return nil, fmt.Errorf("collector: collector client is required")
	}
	if strings.TrimSpace(collectorHost) == "" {
		return nil, fmt.Errorf("collector: collector host is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("collector: logger is required")
	}
	lim, err := limiter.New(maxConcurrentSources)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		tokens:        tokens,
		collector:     collector,
		collectorHost: strings.TrimSpace(collectorHost),
		limiter:       lim,
		logger:        logger,
	}, nil
}

// Run collects alarms from every source. It returns ErrTotalFailure when
// sources were configured but no collect succeeded; partial failures come
// back as error entries alongside the events that did arrive.
func (p *Pipeline) Run(ctx context.Context, sources []catalog.Source) (*Result, error) {
	result := &Result{Lookup: alarms.NewLookup()}
	if len(sources) == 0 {
		return result, nil
	}

	var scheduled []catalog.Source
	for _, source := range sources {
		if err := validateBaseURL(source.BaseURL); err != nil {
			metrics.IncSourceFailure("config")
			result.Errors = append(result.Errors, ErrorEntry{
				ID:     source.BaseURL + "::pipeline",
				Title:  fmt.Sprintf("Source %q is misconfigured", source.Name),
				Detail: err.Error(),
			})
			continue
		}
		scheduled = append(scheduled, source)
		result.Lookup.Names[source.BaseURL] = source.Name
		result.Lookup.Offsets[source.BaseURL] = source.Offset
		result.Lookup.Versions[source.BaseURL] = VersionFromBaseURL(source.BaseURL)
	}

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		anyCollect bool
	)
	for _, source := range scheduled {
		wg.Add(1)
		go func(source catalog.Source) {
			defer wg.Done()
			err := p.limiter.Run(ctx, func() error {
				events, entries, ok := p.collectSource(ctx, source)
				mu.Lock()
				defer mu.Unlock()
				result.Events = append(result.Events, events...)
				result.Errors = append(result.Errors, entries...)
				if ok {
					anyCollect = true
				}
				return nil
			})
			if err != nil {
				mu.Lock()
				result.Errors = append(result.Errors, ErrorEntry{
					ID:     source.BaseURL + "::pipeline",
					Title:  "Collection cancelled",
					Detail: err.Error(),
				})
				mu.Unlock()
			}
		}(source)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if !anyCollect && len(sources) > 0 {
		return result, ErrTotalFailure
	}
	return result, nil
}

// collectSource is one unit of work: log the source in, then collect its
// alarms from the daemon for its API version. ok reports whether the
// collect completed.
func (p *Pipeline) collectSource(ctx context.Context, source catalog.Source) ([]alarms.Event, []ErrorEntry, bool) {
	if ctx.Err() != nil {
		return nil, nil, false
	}
	token, err := p.tokens.Token(ctx, source.BaseURL, source.Username, source.Password)
	if err != nil {
		metrics.IncSourceFailure("login")
		p.logger.Printf("collector: login failed for %s: %v", source.BaseURL, err)
		return nil, []ErrorEntry{{
			ID:     source.BaseURL + "::pipeline",
			Title:  fmt.Sprintf("Login failed for %q", source.Name),
			Detail: err.Error(),
		}}, false
	}
	if ctx.Err() != nil {
		return nil, nil, false
	}

	pageSize := source.PageSize
	if pageSize < 1 {
		pageSize = 1
	}
	session := Session{
		BaseURL:  source.BaseURL,
		Token:    token,
		PageSize: pageSize,
		Page:     1,
		Offset:   source.Offset,
	}
	origin := ResolveCollectorOrigin(p.collectorHost, VersionFromBaseURL(source.BaseURL))

	batch, err := p.collector.CollectBatch(ctx, origin, []Session{session})
	if err != nil {
		metrics.IncSourceFailure("network")
		p.logger.Printf("collector: collect for %s against %s failed: %v", source.BaseURL, origin, err)
		return nil, []ErrorEntry{{
			ID:     source.BaseURL + "::pipeline",
			Title:  fmt.Sprintf("Collector %s is unreachable", origin),
			Detail: err.Error(),
		}}, false
	}

	var entries []ErrorEntry
	for _, batchErr := range batch.Errors {
		metrics.IncSourceFailure("collect")
		entries = append(entries, ErrorEntry{
			ID:     batchErr.ID + "::pipeline",
			Title:  fmt.Sprintf("Collection failed for %q", source.Name),
			Detail: batchErr.Message,
		})
	}

	events := batch.Items
	for i := range events {
		if events[i].SourceOrigin == "" {
			events[i].SourceOrigin = source.BaseURL
		}
	}
	return events, entries, true
}

func validateBaseURL(baseURL string) error {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("collector: invalid base URL %q: %w", baseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("collector: base URL %q needs an http or https scheme", baseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("collector: base URL %q has no host", baseURL)
	}
	return nil
}
