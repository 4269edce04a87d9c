package metrics

import (
	"sort"
	"sync"
	"time"
)

// Metrics is the thread-safe store behind the collector.
type Metrics struct {
	mutex         sync.RWMutex
	checks        map[string]int64
	failures      map[string]int64
	latencies     map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	queued        int64
	healthState   string
	healthChanges int64
	startTime     time.Time
}

// Snapshot is the JSON view served by the metrics handler.
type Snapshot struct {
	TotalChecks   int64                      `json:"total_checks"`
	TotalFailures int64                      `json:"total_failures"`
	ChecksQueued  int64                      `json:"checks_queued"`
	Uptime        time.Duration              `json:"uptime"`
	HealthState   string                     `json:"health_state"`
	HealthChanges int64                      `json:"health_changes"`
	Endpoints     map[string]EndpointMetrics `json:"endpoints"`
}

// EndpointMetrics aggregates per-endpoint check outcomes.
type EndpointMetrics struct {
	Checks      int64         `json:"checks"`
	Failures    int64         `json:"failures"`
	AvgLatency  time.Duration `json:"avg_latency"`
	P50Latency  time.Duration `json:"p50_latency"`
	P95Latency  time.Duration `json:"p95_latency"`
	P99Latency  time.Duration `json:"p99_latency"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		checks:      make(map[string]int64),
		failures:    make(map[string]int64),
		latencies:   make(map[string][]time.Duration),
		statusCodes: make(map[string]map[int]int64),
		startTime:   time.Now(),
	}
}

func (m *Metrics) RecordQueued() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.queued++
}

func (m *Metrics) RecordCheck(endpointID string, duration time.Duration, statusCode int, success bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.checks[endpointID]++
	if !success {
		m.failures[endpointID]++
	}

	m.latencies[endpointID] = append(m.latencies[endpointID], duration)
	if len(m.latencies[endpointID]) > 1000 {
		m.latencies[endpointID] = m.latencies[endpointID][1:]
	}

	if statusCode > 0 {
		if m.statusCodes[endpointID] == nil {
			m.statusCodes[endpointID] = make(map[int]int64)
		}
		m.statusCodes[endpointID][statusCode]++
	}
}

func (m *Metrics) UpdateHealthState(state string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.healthState != state {
		m.healthChanges++
	}
	m.healthState = state
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		ChecksQueued:  m.queued,
		Uptime:        time.Since(m.startTime),
		HealthState:   m.healthState,
		HealthChanges: m.healthChanges,
		Endpoints:     make(map[string]EndpointMetrics),
	}

	for endpointID, count := range m.checks {
		snap.TotalChecks += count
		snap.TotalFailures += m.failures[endpointID]

		em := EndpointMetrics{
			Checks:      count,
			Failures:    m.failures[endpointID],
			StatusCodes: m.statusCodes[endpointID],
		}

		durations := m.latencies[endpointID]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			em.AvgLatency = average(sorted)
			em.P50Latency = percentile(sorted, 0.50)
			em.P95Latency = percentile(sorted, 0.95)
			em.P99Latency = percentile(sorted, 0.99)
		}

		snap.Endpoints[endpointID] = em
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
