package maintenance

import (
	"sync"
	"time"
)

// Monitor tracks the health of one maintenance job.
type Monitor struct {
	mu                sync.RWMutex
	healthyWindow     time.Duration
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string
}

// NewMonitor creates a monitor that considers the job unhealthy when it
// has not succeeded within the window.
func NewMonitor(healthyWindow time.Duration) *Monitor {
	return &Monitor{healthyWindow: healthyWindow}
}

// RecordSuccess records a successful run.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSuccess = time.Now()
	m.lastAttempt = time.Now()
	m.consecutiveErrors = 0
	m.lastError = ""
}

// RecordFailure records a failed run.
func (m *Monitor) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAttempt = time.Now()
	m.consecutiveErrors++
	if err != nil {
		m.lastError = err.Error()
	}
}

// IsHealthy reports whether the job has succeeded recently without piling
// up failures.
func (m *Monitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastSuccess.IsZero() {
		return false
	}
	if time.Since(m.lastSuccess) > m.healthyWindow {
		return false
	}
	return m.consecutiveErrors <= 3
}

// Status is a point-in-time health snapshot.
type Status struct {
	Healthy           bool   `json:"healthy"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns the current snapshot.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{Healthy: m.isHealthyLocked()}
	if !m.lastSuccess.IsZero() {
		status.LastSuccess = m.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(m.lastSuccess).String()
	}
	if !m.lastAttempt.IsZero() {
		status.LastAttempt = m.lastAttempt.Format(time.RFC3339)
	}
	if m.consecutiveErrors > 0 {
		status.ConsecutiveErrors = m.consecutiveErrors
		status.LastError = m.lastError
	}
	return status
}

func (m *Monitor) isHealthyLocked() bool {
	if m.lastSuccess.IsZero() {
		return false
	}
	if time.Since(m.lastSuccess) > m.healthyWindow {
		return false
	}
	return m.consecutiveErrors <= 3
}
