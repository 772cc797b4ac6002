package middleware

import "net/http"

// SweepTrigger is implemented by background sweep triggers.
type SweepTrigger interface {
	MaybeTrigger() bool
}

// TriggerSweep gives every request a chance to start a background sweep.
// The request itself never waits for the sweep.
func TriggerSweep(trigger SweepTrigger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if trigger == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			trigger.MaybeTrigger()
			next.ServeHTTP(w, r)
		})
	}
}
