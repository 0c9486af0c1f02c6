package application

import (
	"context"
	"log"
	"sync"
	"time"
)

// Scheduler drives the periodic refresh. A one second tick checks whether
// the deadline has passed; the deadline resets on every refresh, manual or
// automatic, so a manual refresh pushes the next automatic one out.
type Scheduler struct {
	orchestrator *Orchestrator
	every        time.Duration
	logger       *log.Logger

	mu       sync.Mutex
	deadline time.Time
}

// NewScheduler constructs a Scheduler.
func NewScheduler(orchestrator *Orchestrator, every time.Duration, logger *log.Logger) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		every:        every,
		logger:       logger,
		deadline:     time.Now().Add(every),
	}
}

// Start begins the scheduler loop. It runs one refresh immediately so the
// first dashboard load has data.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.orchestrator == nil {
		return
	}
	s.refresh(ctx)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			due := !now.Before(s.deadline)
			s.mu.Unlock()
			if !due {
				continue
			}
			// Skip the tick while a manual refresh is still running.
			if s.orchestrator.InProgress() {
				continue
			}
			s.refresh(ctx)
		}
	}
}

// TriggerNow runs a refresh immediately, superseding any in-flight cycle,
// and resets the automatic deadline.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	s.resetDeadline()
	return s.orchestrator.Refresh(ctx)
}

// Countdown returns whole seconds until the next automatic refresh.
func (s *Scheduler) Countdown() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := time.Until(s.deadline)
	if remaining < 0 {
		return 0
	}
	return int(remaining / time.Second)
}

func (s *Scheduler) refresh(ctx context.Context) {
	s.resetDeadline()
	if err := s.orchestrator.Refresh(ctx); err != nil && s.logger != nil {
		s.logger.Printf("application: scheduled refresh failed: %v", err)
	}
}

func (s *Scheduler) resetDeadline() {
	s.mu.Lock()
	s.deadline = time.Now().Add(s.every)
	s.mu.Unlock()
}
