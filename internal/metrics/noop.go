package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRedirect is a no-op.
func (n *NoopRecorder) IncRedirect() {}

// IncRedirectNotFound is a no-op.
func (n *NoopRecorder) IncRedirectNotFound() {}

// ObserveRedirectDuration is a no-op.
func (n *NoopRecorder) ObserveRedirectDuration(duration time.Duration) {}

// IncLinkCreated is a no-op.
func (n *NoopRecorder) IncLinkCreated() {}

// IncCodeCollision is a no-op.
func (n *NoopRecorder) IncCodeCollision() {}

// IncCodeExhausted is a no-op.
func (n *NoopRecorder) IncCodeExhausted() {}

// IncSweepRun is a no-op.
func (n *NoopRecorder) IncSweepRun(status string) {}

// AddSweepDeleted is a no-op.
func (n *NoopRecorder) AddSweepDeleted(count int) {}

// AddSweepFailed is a no-op.
func (n *NoopRecorder) AddSweepFailed(count int) {}

// ObserveSweepDuration is a no-op.
func (n *NoopRecorder) ObserveSweepDuration(duration time.Duration) {}
