package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultProbability is the chance a request starts a sweep.
	DefaultProbability = 0.1

	// DefaultTimeout bounds one background sweep.
	DefaultTimeout = 30 * time.Second
)

// Runner runs a single sweep pass.
type Runner interface {
	Sweep(ctx context.Context) (Result, error)
}

// Probabilistic starts a background sweep on a fraction of calls.
// At most one sweep started by it is in flight at a time.
type Probabilistic struct {
	runner      Runner
	probability float64
	timeout     time.Duration
	logger      *slog.Logger
	draw        func() float64

	inflight atomic.Bool
	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewProbabilistic creates a trigger firing with the given probability.
func NewProbabilistic(runner Runner, probability float64, timeout time.Duration, logger *slog.Logger) *Probabilistic {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Probabilistic{
		runner:      runner,
		probability: probability,
		timeout:     timeout,
		logger:      logger.With("component", "sweeper.trigger"),
		draw:        rand.Float64,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetRandFunc replaces the random source. f must return values in [0, 1).
func (p *Probabilistic) SetRandFunc(f func() float64) {
	if f != nil {
		p.draw = f
	}
}

// MaybeTrigger draws once and, on a hit, starts a sweep in the background.
// It never blocks on the sweep and reports whether one was started.
func (p *Probabilistic) MaybeTrigger() bool {
	if p.probability <= 0 || p.draw() >= p.probability {
		return false
	}
	if !p.inflight.CompareAndSwap(false, true) {
		return false
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.inflight.Store(false)
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer p.inflight.Store(false)

		ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
		defer cancel()

		// The sweeper logs its own outcome.
		if _, err := p.runner.Sweep(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			p.logger.Debug("triggered sweep ended early", slog.String("error", err.Error()))
		}
	}()
	return true
}

// Shutdown stops new sweeps, cancels the in-flight one and waits for it.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (p *Probabilistic) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn("sweep trigger shutdown timed out")
		return ctx.Err()
	}
}
