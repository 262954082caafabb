package liveness

import "time"

// Default thresholds. The short threshold drives operator-facing offline
// badges; the long threshold drives availability aggregation, which fails
// safe by treating a quiet reader as unavailable. They are distinct on
// purpose, not two values for one constant.
const (
	DefaultOfflineAfter = 30 * time.Second
	DefaultStaleAfter   = 5 * time.Minute
)

// Monitor classifies readers as online or offline from their last report
// timestamp. Offline-ness is always a derived, point-in-time judgment;
// nothing is persisted, and both checks are recomputed on every poll.
//
// The zero value is not usable; construct with New.
type Monitor struct {
	offlineAfter time.Duration
	staleAfter   time.Duration
	now          func() time.Time
}

// New creates a Monitor with the given thresholds. Non-positive values
// fall back to the defaults.
func New(offlineAfter, staleAfter time.Duration) *Monitor {
	if offlineAfter <= 0 {
		offlineAfter = DefaultOfflineAfter
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Monitor{
		offlineAfter: offlineAfter,
		staleAfter:   staleAfter,
		now:          time.Now,
	}
}

// SetClock overrides the monitor's clock. For tests.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// IsOffline reports whether the reader has missed the short reporting
// window. A reader that has never reported is always offline.
func (m *Monitor) IsOffline(lastReport *time.Time) bool {
	return m.exceeds(lastReport, m.offlineAfter)
}

// IsStale reports whether the reader's last report is too old to trust
// for availability aggregation. A reader that has never reported is
// always stale.
func (m *Monitor) IsStale(lastReport *time.Time) bool {
	return m.exceeds(lastReport, m.staleAfter)
}

func (m *Monitor) exceeds(lastReport *time.Time, threshold time.Duration) bool {
	if lastReport == nil {
		return true
	}
	return m.now().Sub(*lastReport) > threshold
}
