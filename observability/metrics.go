package observability

import (
	"fmt"
	"sync"
	"time"
)

// Metrics tracks request counters, cumulative latency and per-agent usage.
type Metrics struct {
	mu           sync.Mutex
	total        int64
	successful   int64
	failed       int64
	totalLatency time.Duration
	agentUsage   map[string]int64
}

// NewMetrics constructs a zeroed metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{agentUsage: make(map[string]int64)}
}

// RecordRequest counts one completed request with its duration.
func (m *Metrics) RecordRequest(duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	if success {
		m.successful++
	} else {
		m.failed++
	}
	m.totalLatency += duration
}

// RecordAgentUsage counts one invocation of the named agent.
func (m *Metrics) RecordAgentUsage(agentName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agentUsage[agentName]++
}

// Snapshot is a point-in-time view of the collected metrics.
type Snapshot struct {
	TotalRequests      int64            `json:"total_requests"`
	SuccessfulRequests int64            `json:"successful_requests"`
	FailedRequests     int64            `json:"failed_requests"`
	SuccessRate        string           `json:"success_rate"`
	AvgLatency         string           `json:"avg_latency"`
	AgentUsage         map[string]int64 `json:"agent_usage"`
}

// Snapshot returns current totals with derived success rate and average latency.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	usage := make(map[string]int64, len(m.agentUsage))
	for k, v := range m.agentUsage {
		usage[k] = v
	}

	snap := Snapshot{
		TotalRequests:      m.total,
		SuccessfulRequests: m.successful,
		FailedRequests:     m.failed,
		SuccessRate:        "0.0%",
		AvgLatency:         "0.00s",
		AgentUsage:         usage,
	}
	if m.total > 0 {
		snap.SuccessRate = fmt.Sprintf("%.1f%%", float64(m.successful)/float64(m.total)*100)
		avg := m.totalLatency / time.Duration(m.total)
		snap.AvgLatency = fmt.Sprintf("%.2fs", avg.Seconds())
	}
	return snap
}
