package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/turret.aim/internal/timeutil"
)

// UpdateRateMonitor tracks how often a recurring event fires and reports
// the mean interval between firings since the last reset. It is used to
// watch telemetry ingest and detection cadence for stalls.
type UpdateRateMonitor struct {
	clock timeutil.Clock

	mu         sync.Mutex
	epochStart time.Time
	epochEnd   time.Time
	updates    int
}

// NewUpdateRateMonitor creates a monitor reading time from clock.
func NewUpdateRateMonitor(clock timeutil.Clock) *UpdateRateMonitor {
	m := &UpdateRateMonitor{clock: clock}
	m.Reset()
	return m
}

// Reset discards all recorded updates and restarts the measurement epoch.
func (m *UpdateRateMonitor) Reset() {
	now := m.clock.Now()
	m.mu.Lock()
	m.epochStart = now
	m.epochEnd = now
	m.updates = 0
	m.mu.Unlock()
}

// RecordUpdate registers one event at the current time.
func (m *UpdateRateMonitor) RecordUpdate() {
	now := m.clock.Now()
	m.mu.Lock()
	m.updates++
	m.epochEnd = now
	m.mu.Unlock()
}

// Updates returns the number of events recorded since the last reset.
func (m *UpdateRateMonitor) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

// AveragePeriod returns the mean interval between events since the last
// reset, measured through the most recent event. The second return is
// false until at least one event has been recorded.
func (m *UpdateRateMonitor) AveragePeriod() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updates == 0 {
		return 0, false
	}
	return m.epochEnd.Sub(m.epochStart) / time.Duration(m.updates), true
}

// Watch logs the monitored cadence every interval until ctx is done,
// restarting the measurement epoch after each report. name prefixes the
// log lines.
func (m *UpdateRateMonitor) Watch(ctx context.Context, name string, interval time.Duration) {
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if period, ok := m.AveragePeriod(); ok {
				Logf("[Monitor] %s cadence: %d samples, mean period %v", name, m.Updates(), period)
			} else {
				Logf("[Monitor] %s cadence: no samples received", name)
			}
			m.Reset()
		}
	}
}
