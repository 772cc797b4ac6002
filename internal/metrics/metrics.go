// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Redirect metrics
	IncRedirect()
	IncRedirectNotFound()
	ObserveRedirectDuration(duration time.Duration)

	// Code generation metrics
	IncLinkCreated()
	IncCodeCollision()
	IncCodeExhausted()

	// Retention sweep metrics
	IncSweepRun(status string) // status: "success", "failed" or "skipped"
	AddSweepDeleted(n int)
	AddSweepFailed(n int)
	ObserveSweepDuration(duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
