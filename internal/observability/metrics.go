package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects pipeline run and stage counters. It is safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	runTotal     atomic.Int64
	runConfirmed atomic.Int64
	runRejected  atomic.Int64
	runFailed    atomic.Int64

	// outcomes counts rejections by reason and failures by error kind.
	outcomes map[string]int64
	stages   map[string]*StageMetrics

	durations    []time.Duration
	maxDurations int
}

// StageMetrics represents metrics for a single pipeline stage.
type StageMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // milliseconds
	errorCount     atomic.Int64
}

// NewMetrics creates a new metrics collector keeping the last maxDurations run durations.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		outcomes:     make(map[string]int64),
		stages:       make(map[string]*StageMetrics),
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// RecordStage records one stage execution.
func (m *Metrics) RecordStage(stage string, duration time.Duration, failed bool) {
	sm := m.stage(stage)
	sm.executionCount.Add(1)
	sm.totalDuration.Add(duration.Milliseconds())
	if failed {
		sm.errorCount.Add(1)
	}
}

// RecordConfirmed records a run that produced a confirmation.
func (m *Metrics) RecordConfirmed(duration time.Duration) {
	m.runTotal.Add(1)
	m.runConfirmed.Add(1)
	m.recordDuration(duration)
}

// RecordRejected records a run stopped by the gate or the router.
func (m *Metrics) RecordRejected(reason string, duration time.Duration) {
	m.runTotal.Add(1)
	m.runRejected.Add(1)
	m.recordOutcome("rejected:" + reason)
	m.recordDuration(duration)
}

// RecordFailed records a run aborted by a gateway error.
func (m *Metrics) RecordFailed(kind string, duration time.Duration) {
	m.runTotal.Add(1)
	m.runFailed.Add(1)
	m.recordOutcome("failed:" + kind)
	m.recordDuration(duration)
}

func (m *Metrics) recordOutcome(key string) {
	m.mu.Lock()
	m.outcomes[key]++
	m.mu.Unlock()
}

func (m *Metrics) recordDuration(d time.Duration) {
	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		// Remove oldest duration (FIFO)
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, d)
	m.mu.Unlock()
}

func (m *Metrics) stage(name string) *StageMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	sm, ok := m.stages[name]
	if !ok {
		sm = &StageMetrics{}
		m.stages[name] = sm
	}
	return sm
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.runTotal.Store(0)
	m.runConfirmed.Store(0)
	m.runRejected.Store(0)
	m.runFailed.Store(0)

	m.mu.Lock()
	m.outcomes = make(map[string]int64)
	m.stages = make(map[string]*StageMetrics)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	stages := make(map[string]*StageSnapshot, len(m.stages))
	for name, sm := range m.stages {
		count := sm.executionCount.Load()
		snap := &StageSnapshot{
			ExecutionCount: count,
			TotalDuration:  sm.totalDuration.Load(),
			ErrorCount:     sm.errorCount.Load(),
		}
		if count > 0 {
			snap.AverageDuration = snap.TotalDuration / count
		}
		stages[name] = snap
	}

	outcomes := make(map[string]int64, len(m.outcomes))
	for k, v := range m.outcomes {
		outcomes[k] = v
	}

	sorted := make([]time.Duration, len(m.durations))
	copy(sorted, m.durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return &MetricsSnapshot{
		RunTotal:     m.runTotal.Load(),
		RunConfirmed: m.runConfirmed.Load(),
		RunRejected:  m.runRejected.Load(),
		RunFailed:    m.runFailed.Load(),
		Outcomes:     outcomes,
		Stages:       stages,
		P50:          percentile(sorted, 0.50),
		P95:          percentile(sorted, 0.95),
	}
}

// percentile returns the nearest-rank percentile of sorted durations.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted))*p+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RunTotal     int64                     `json:"run_total"`
	RunConfirmed int64                     `json:"run_confirmed"`
	RunRejected  int64                     `json:"run_rejected"`
	RunFailed    int64                     `json:"run_failed"`
	Outcomes     map[string]int64          `json:"outcomes"`
	Stages       map[string]*StageSnapshot `json:"stages"`
	P50          time.Duration             `json:"-"`
	P95          time.Duration             `json:"-"`
}

// StageSnapshot represents metrics for a specific stage. Durations are in milliseconds.
type StageSnapshot struct {
	ExecutionCount  int64 `json:"execution_count"`
	TotalDuration   int64 `json:"total_duration_ms"`
	ErrorCount      int64 `json:"error_count"`
	AverageDuration int64 `json:"average_duration_ms"`
}

// SuccessRate returns the share of runs that did not fail, as a percentage (0-100).
// Rejections count as successes: they are expected outcomes.
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RunTotal == 0 {
		return 100.0
	}
	return float64(s.RunTotal-s.RunFailed) / float64(s.RunTotal) * 100.0
}
