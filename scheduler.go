package main

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scheduler runs every checker once on Start and then once per interval.
// Runs happen one after another on the scheduler goroutine: a run that
// outlasts the interval delays the next one instead of overlapping it, and
// the ticks missed meanwhile are dropped. A started run always completes.
type Scheduler struct {
	interval time.Duration
	clock    Clock
	checkers []Checker

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(interval time.Duration, clock Clock, checkers ...Checker) *Scheduler {
	return &Scheduler{interval: interval, clock: clock, checkers: checkers}
}

// Start launches the scheduling loop in its own goroutine. It is a no-op if
// the scheduler is already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

// Stop ends the loop and waits for the in-flight run, if any, to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	s.RunOnce(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs all checkers sequentially for the current calendar day.
func (s *Scheduler) RunOnce(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	runID := uuid.New().String()
	day := today(s.clock)
	log.Printf("[run %v] checking notifications for %v", runID, day)
	started := time.Now()
	for _, checker := range s.checkers {
		log.Printf("[run %v] running %v", runID, checker.Name())
		checker.Run(ctx, day)
	}
	log.Printf("[run %v] done in %v", runID, time.Since(started))
}
