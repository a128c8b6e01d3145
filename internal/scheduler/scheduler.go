// Package scheduler drives periodic re-evaluation of every watched address.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/safebase-monitor/internal/config"
	"github.com/safebase-monitor/internal/logging"
	"github.com/safebase-monitor/internal/storage"
)

// Evaluator re-checks one watchlist entry. The same implementation serves
// scheduled polls and the immediate check performed when an address is added.
type Evaluator interface {
	Evaluate(ctx context.Context, userID, address string) error
}

// PairLister enumerates every (user, address) pair currently watched.
type PairLister interface {
	ListAll(ctx context.Context) ([]storage.WatchPair, error)
}

// Scheduler runs one poll loop over the whole watchlist. Cycles run inline
// on the loop goroutine, so a slow cycle delays the next tick instead of
// overlapping with it. Within a cycle, evaluations fan out across a bounded
// worker pool.
type Scheduler struct {
	watchlist    PairLister
	evaluator    Evaluator
	pollInterval time.Duration
	workers      int
	logger       *logging.Logger

	running bool
	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}

	lastCycleStart time.Time
	lastCycleSize  int
}

func New(cfg config.MonitorConfig, watchlist PairLister, evaluator Evaluator, logger *logging.Logger) (*Scheduler, error) {
	if watchlist == nil {
		return nil, fmt.Errorf("watchlist lister cannot be nil")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 10 * time.Minute
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}

	return &Scheduler{
		watchlist:    watchlist,
		evaluator:    evaluator,
		pollInterval: pollInterval,
		workers:      workers,
		logger:       logger.WithField("component", "scheduler"),
	}, nil
}

// Start launches the poll loop. The first cycle runs after one full interval;
// entries added meanwhile are covered by their immediate on-add evaluation.
// A stopped scheduler can be started again.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"pollInterval": s.pollInterval.String(),
		"workers":      s.workers,
	}).Info("Starting monitoring scheduler")

	go s.pollLoop(ctx)
	return nil
}

// Stop signals the loop and waits for the in-flight cycle to drain.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.Info("Monitoring scheduler stopped")
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	s.mu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()
	defer close(doneCh)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				s.logger.WithError(err).Error("Poll cycle failed")
			}
		}
	}
}

// RunCycle evaluates every watched pair once. Per-entry failures are logged
// and skipped; the entry is retried on the next cycle.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	pairs, err := s.watchlist.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list watched addresses: %w", err)
	}

	s.mu.Lock()
	s.lastCycleStart = time.Now()
	s.lastCycleSize = len(pairs)
	stopCh := s.stopCh
	s.mu.Unlock()

	if len(pairs) == 0 {
		return nil
	}

	start := time.Now()
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, pair := range pairs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-stopCh:
			wg.Wait()
			return nil
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(pair storage.WatchPair) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.evaluator.Evaluate(ctx, pair.UserID, pair.Address); err != nil {
				s.logger.WithFields(map[string]interface{}{
					"user_id": pair.UserID,
					"address": pair.Address,
				}).WithError(err).Warn("Evaluation failed, will retry next cycle")
			}
		}(pair)
	}
	wg.Wait()

	s.logger.WithFields(map[string]interface{}{
		"entries":  len(pairs),
		"duration": time.Since(start).String(),
	}).Info("Poll cycle complete")
	return nil
}

// Status reports the scheduler's current state for the health endpoint.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStatus{
		Running:             s.running,
		LastCycleStart:      s.lastCycleStart,
		LastCycleSize:       s.lastCycleSize,
		PollIntervalSeconds: int(s.pollInterval.Seconds()),
	}
}

// SchedulerStatus is a snapshot of the poll loop's progress.
type SchedulerStatus struct {
	Running             bool      `json:"running"`
	LastCycleStart      time.Time `json:"lastCycleStart"`
	LastCycleSize       int       `json:"lastCycleSize"`
	PollIntervalSeconds int       `json:"pollIntervalSeconds"`
}
