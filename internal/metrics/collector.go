// Package metrics collects in-memory statistics for a single pipeline run.
package metrics

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token metrics (only for LLM operations)
	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	Failures    int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	// Token totals (nil if not applicable)
	InputTokens  *int64
	OutputTokens *int64
}

// Snapshot is the run's statistics at a point in time.
type Snapshot struct {
	ElapsedSeconds float64
	Scrape         *OperationSnapshot
	Extract        *OperationSnapshot
	RateWait       *OperationSnapshot
	Recommend      *OperationSnapshot
}

// Operation names for the collector.
const (
	OpScrape    = "scrape"
	OpExtract   = "extract"
	OpRateWait  = "rate_wait"
	OpRecommend = "recommend"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

func (m *OperationMetrics) observe(d time.Duration) {
	m.Count++
	m.TotalTime += d
	if d < m.MinTime {
		m.MinTime = d
	}
	if d > m.MaxTime {
		m.MaxTime = d
	}
}

// RecordTiming records a successful operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getOrCreate(op).observe(duration)
}

// RecordFailure records a failed operation. Its duration still counts.
func (c *Collector) RecordFailure(op string, duration time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.getOrCreate(op)
	m.observe(duration)
	m.Failures++
}

// RecordLLMUsage records timing and token usage for an LLM operation.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.observe(duration)
	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics, includeTokens bool) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if includeTokens && (m.TotalInputTokens > 0 || m.TotalOutputTokens > 0) {
		in, out := m.TotalInputTokens, m.TotalOutputTokens
		snap.InputTokens = &in
		snap.OutputTokens = &out
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		ElapsedSeconds: time.Since(c.startTime).Seconds(),
		Scrape:         snapshotOp(c.ops[OpScrape], false),
		Extract:        snapshotOp(c.ops[OpExtract], false),
		RateWait:       snapshotOp(c.ops[OpRateWait], false),
		Recommend:      snapshotOp(c.ops[OpRecommend], true),
	}
}

// LogSummary writes one log line per recorded operation.
func (c *Collector) LogSummary(logger *slog.Logger) {
	if c == nil {
		return
	}
	snap := c.Snapshot()
	ops := []struct {
		name string
		s    *OperationSnapshot
	}{
		{OpScrape, snap.Scrape},
		{OpExtract, snap.Extract},
		{OpRateWait, snap.RateWait},
		{OpRecommend, snap.Recommend},
	}
	for _, op := range ops {
		if op.s == nil {
			continue
		}
		attrs := []any{
			"op", op.name,
			"count", op.s.Count,
			"failures", op.s.Failures,
			"avg_ms", int64(op.s.AvgTimeMs),
			"max_ms", op.s.MaxTimeMs,
		}
		if op.s.InputTokens != nil {
			attrs = append(attrs, "input_tokens", *op.s.InputTokens, "output_tokens", *op.s.OutputTokens)
		}
		logger.Info("run stats", attrs...)
	}
	logger.Info("run finished", "elapsed_seconds", int64(snap.ElapsedSeconds))
}
