// pkg/instrument/health.go
package instrument

import (
	"sync"
	"time"
)

const slowResponse = 2 * time.Second

// HealthMetrics contains instrument health information
type HealthMetrics struct {
	HealthScore     int           `json:"health_score"` // 0-100
	ResponseTime    time.Duration `json:"response_time"`
	SuccessRate     float64       `json:"success_rate"` // 0.0-1.0
	ErrorCount      int64         `json:"error_count"`
	TotalOperations int64         `json:"total_operations"`
	LastError       string        `json:"last_error,omitempty"`
	LastErrorTime   *time.Time    `json:"last_error_time,omitempty"`
	LastSuccessTime *time.Time    `json:"last_success_time,omitempty"`
}

// HealthTracker accumulates per-operation outcomes into HealthMetrics
type HealthTracker struct {
	mutex   sync.Mutex
	metrics HealthMetrics
}

// NewHealthTracker returns a tracker that reports full health until the first operation
func NewHealthTracker() *HealthTracker {
	return &HealthTracker{metrics: HealthMetrics{HealthScore: 100, SuccessRate: 1}}
}

// Record adds one operation outcome
func (h *HealthTracker) Record(err error, responseTime time.Duration) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	m := &h.metrics
	m.TotalOperations++
	m.ResponseTime = responseTime

	now := time.Now()
	if err != nil {
		m.ErrorCount++
		m.LastError = err.Error()
		m.LastErrorTime = &now
	} else {
		m.LastSuccessTime = &now
	}

	m.SuccessRate = float64(m.TotalOperations-m.ErrorCount) / float64(m.TotalOperations)
	m.HealthScore = int(m.SuccessRate * 100)
	if responseTime > slowResponse {
		m.HealthScore -= 10
	}
	if m.HealthScore < 0 {
		m.HealthScore = 0
	}
}

// Snapshot returns a copy of the current metrics
func (h *HealthTracker) Snapshot() HealthMetrics {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.metrics
}
