package metrics

import (
	"sync/atomic"
	"time"
)

// Sweep run statuses.
const (
	SweepStatusSuccess = "success"
	SweepStatusFailed  = "failed"
	SweepStatusSkipped = "skipped"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Redirects               uint64
	RedirectsNotFound       uint64
	RedirectDurationCount   uint64
	RedirectDurationTotalNs int64

	LinksCreated   uint64
	CodeCollisions uint64
	CodeExhausted  uint64

	SweepRunsSuccess     uint64
	SweepRunsFailed      uint64
	SweepRunsSkipped     uint64
	SweepDeleted         uint64
	SweepFailed          uint64
	SweepDurationCount   uint64
	SweepDurationTotalNs int64
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	redirects               atomic.Uint64
	redirectsNotFound       atomic.Uint64
	redirectDurationCount   atomic.Uint64
	redirectDurationTotalNs atomic.Int64

	linksCreated   atomic.Uint64
	codeCollisions atomic.Uint64
	codeExhausted  atomic.Uint64

	sweepRunsSuccess     atomic.Uint64
	sweepRunsFailed      atomic.Uint64
	sweepRunsSkipped     atomic.Uint64
	sweepDeleted         atomic.Uint64
	sweepFailed          atomic.Uint64
	sweepDurationCount   atomic.Uint64
	sweepDurationTotalNs atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		Redirects:               m.redirects.Load(),
		RedirectsNotFound:       m.redirectsNotFound.Load(),
		RedirectDurationCount:   m.redirectDurationCount.Load(),
		RedirectDurationTotalNs: m.redirectDurationTotalNs.Load(),
		LinksCreated:            m.linksCreated.Load(),
		CodeCollisions:          m.codeCollisions.Load(),
		CodeExhausted:           m.codeExhausted.Load(),
		SweepRunsSuccess:        m.sweepRunsSuccess.Load(),
		SweepRunsFailed:         m.sweepRunsFailed.Load(),
		SweepRunsSkipped:        m.sweepRunsSkipped.Load(),
		SweepDeleted:            m.sweepDeleted.Load(),
		SweepFailed:             m.sweepFailed.Load(),
		SweepDurationCount:      m.sweepDurationCount.Load(),
		SweepDurationTotalNs:    m.sweepDurationTotalNs.Load(),
	}
}

// IncRedirect increments the successful redirect counter.
func (m *InMemoryRecorder) IncRedirect() {
	m.redirects.Add(1)
}

// IncRedirectNotFound increments the unknown code counter.
func (m *InMemoryRecorder) IncRedirectNotFound() {
	m.redirectsNotFound.Add(1)
}

// ObserveRedirectDuration records redirect duration.
func (m *InMemoryRecorder) ObserveRedirectDuration(duration time.Duration) {
	m.redirectDurationCount.Add(1)
	m.redirectDurationTotalNs.Add(duration.Nanoseconds())
}

// IncLinkCreated increments link created counter.
func (m *InMemoryRecorder) IncLinkCreated() {
	m.linksCreated.Add(1)
}

// IncCodeCollision increments the short code collision counter.
func (m *InMemoryRecorder) IncCodeCollision() {
	m.codeCollisions.Add(1)
}

// IncCodeExhausted increments the exhausted generation counter.
func (m *InMemoryRecorder) IncCodeExhausted() {
	m.codeExhausted.Add(1)
}

// IncSweepRun counts a sweep pass by outcome. Unknown statuses count as failed.
func (m *InMemoryRecorder) IncSweepRun(status string) {
	switch status {
	case SweepStatusSuccess:
		m.sweepRunsSuccess.Add(1)
	case SweepStatusSkipped:
		m.sweepRunsSkipped.Add(1)
	default:
		m.sweepRunsFailed.Add(1)
	}
}

// AddSweepDeleted adds to the swept record counter.
func (m *InMemoryRecorder) AddSweepDeleted(n int) {
	if n > 0 {
		m.sweepDeleted.Add(uint64(n))
	}
}

// AddSweepFailed adds to the failed deletion counter.
func (m *InMemoryRecorder) AddSweepFailed(n int) {
	if n > 0 {
		m.sweepFailed.Add(uint64(n))
	}
}

// ObserveSweepDuration records sweep pass duration.
func (m *InMemoryRecorder) ObserveSweepDuration(duration time.Duration) {
	m.sweepDurationCount.Add(1)
	m.sweepDurationTotalNs.Add(duration.Nanoseconds())
}
