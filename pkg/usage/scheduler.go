package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs retention pruning on a cron schedule.
type Scheduler struct {
	ledger        *Ledger
	schedule      string
	retentionDays int

	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a scheduler that prunes entries older than
// retentionDays on the given cron schedule.
func NewScheduler(ledger *Ledger, schedule string, retentionDays int) *Scheduler {
	return &Scheduler{
		ledger:        ledger,
		schedule:      schedule,
		retentionDays: retentionDays,
		cron:          cron.New(),
		logger:        slog.Default().With("component", "usage.scheduler"),
	}
}

// Start begins scheduled pruning. An empty schedule or a zero retention
// period disables the scheduler. The scheduler stops itself when the
// context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" || s.retentionDays <= 0 {
		s.logger.Info("usage retention disabled",
			"schedule", s.schedule,
			"retention_days", s.retentionDays,
		)
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runPruning(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule usage pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("usage retention scheduler started",
		"schedule", s.schedule,
		"retention_days", s.retentionDays,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runPruning executes one pruning cycle.
func (s *Scheduler) runPruning(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)

	deleted, err := s.ledger.PruneBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("scheduled usage pruning failed", "error", err)
		return
	}
	if deleted == 0 {
		s.logger.Debug("scheduled usage pruning completed, nothing to delete")
	}
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("usage retention scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
