package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs a sweep on a fixed interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewScheduler creates a Scheduler. A non-positive interval disables it.
func NewScheduler(runner Runner, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With("component", "sweeper.scheduler"),
	}
}

// Run sweeps every interval. Blocks until ctx is cancelled or Shutdown is called.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("sweep scheduler disabled")
		return nil
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	if s.draining {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.done = make(chan struct{})
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweep scheduler started", slog.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep scheduler stopping")
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.runner.Sweep(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
		s.logger.Debug("scheduled sweep ended early", slog.String("error", err.Error()))
	}
}

// Shutdown stops the loop, cancelling any sweep in progress.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		s.logger.Info("sweep scheduler shutdown complete")
		return nil
	case <-ctx.Done():
		s.logger.Warn("sweep scheduler shutdown timed out")
		return ctx.Err()
	}
}
