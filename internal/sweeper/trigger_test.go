package sweeper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// fakeRunner counts sweeps and optionally blocks until released.
type fakeRunner struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newFakeRunner(block bool) *fakeRunner {
	r := &fakeRunner{started: make(chan struct{}, 16)}
	if block {
		r.release = make(chan struct{})
	}
	return r
}

func (r *fakeRunner) Sweep(ctx context.Context) (Result, error) {
	r.calls.Add(1)
	select {
	case r.started <- struct{}{}:
	default:
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	return Result{}, nil
}

func TestProbabilistic_ZeroNeverFires(t *testing.T) {
	runner := newFakeRunner(false)
	p := NewProbabilistic(runner, 0, time.Second, nil)
	p.SetRandFunc(func() float64 { return 0 })

	for i := 0; i < 100; i++ {
		if p.MaybeTrigger() {
			t.Fatal("p=0 must never trigger")
		}
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if runner.calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", runner.calls.Load())
	}
}

func TestProbabilistic_OneAlwaysFires(t *testing.T) {
	runner := newFakeRunner(false)
	p := NewProbabilistic(runner, 1, time.Second, nil)

	for i := 0; i < 5; i++ {
		if !p.MaybeTrigger() {
			t.Fatalf("attempt %d: p=1 must trigger when idle", i)
		}
		<-runner.started
		waitIdle(t, p)
	}

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if runner.calls.Load() != 5 {
		t.Errorf("calls = %d, want 5", runner.calls.Load())
	}
}

func TestProbabilistic_DrawAgainstThreshold(t *testing.T) {
	runner := newFakeRunner(false)
	p := NewProbabilistic(runner, 0.1, time.Second, nil)

	p.SetRandFunc(func() float64 { return 0.1 })
	if p.MaybeTrigger() {
		t.Error("draw equal to p must not trigger")
	}

	p.SetRandFunc(func() float64 { return 0.09 })
	if !p.MaybeTrigger() {
		t.Error("draw below p must trigger")
	}

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestProbabilistic_SingleFlight(t *testing.T) {
	runner := newFakeRunner(true)
	p := NewProbabilistic(runner, 1, time.Minute, nil)

	if !p.MaybeTrigger() {
		t.Fatal("first trigger should start a sweep")
	}
	<-runner.started

	for i := 0; i < 10; i++ {
		if p.MaybeTrigger() {
			t.Fatal("trigger must not start a second sweep while one is in flight")
		}
	}

	close(runner.release)
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if runner.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", runner.calls.Load())
	}
}

func TestProbabilistic_ShutdownCancelsInFlight(t *testing.T) {
	runner := newFakeRunner(true)
	p := NewProbabilistic(runner, 1, time.Minute, nil)

	p.MaybeTrigger()
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if p.MaybeTrigger() {
		t.Error("trigger after shutdown must not start a sweep")
	}
}

func TestProbabilistic_Timeout(t *testing.T) {
	runner := newFakeRunner(true)
	p := NewProbabilistic(runner, 1, 20*time.Millisecond, nil)

	p.MaybeTrigger()
	<-runner.started

	// The sweep is released by its own timeout, not by the test.
	waitIdle(t, p)

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func waitIdle(t *testing.T, p *Probabilistic) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for p.inflight.Load() {
		if time.Now().After(deadline) {
			t.Fatal("sweep did not finish")
		}
		time.Sleep(time.Millisecond)
	}
}
