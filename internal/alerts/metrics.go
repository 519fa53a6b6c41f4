package alerts

import (
	"sync/atomic"
	"time"
)

type ServiceMetrics struct {
	totalDelivered  int64
	totalFailed     int64
	totalDurationNs int64
	startedNs       int64
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{
		startedNs: time.Now().UnixNano(),
	}
}

func (m *ServiceMetrics) RecordSuccess(duration time.Duration) {
	atomic.AddInt64(&m.totalDelivered, 1)
	atomic.AddInt64(&m.totalDurationNs, int64(duration))
}

func (m *ServiceMetrics) RecordFailure() {
	atomic.AddInt64(&m.totalFailed, 1)
}

func (m *ServiceMetrics) GetStats() map[string]interface{} {
	delivered := atomic.LoadInt64(&m.totalDelivered)
	failed := atomic.LoadInt64(&m.totalFailed)
	durationNs := atomic.LoadInt64(&m.totalDurationNs)
	startedNs := atomic.LoadInt64(&m.startedNs)

	elapsed := time.Since(time.Unix(0, startedNs)).Seconds()

	rate := 0.0
	if elapsed > 0 {
		rate = float64(delivered) / elapsed
	}
	avgDuration := time.Duration(0)
	if delivered > 0 {
		avgDuration = time.Duration(durationNs / delivered)
	}

	return map[string]interface{}{
		"total_delivered": delivered,
		"total_failed":    failed,
		"rate_per_second": rate,
		"avg_duration_ms": avgDuration.Milliseconds(),
		"uptime_seconds":  elapsed,
	}
}
