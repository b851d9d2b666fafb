package metrics

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorAggregates(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpExtract, 100*time.Millisecond)
	c.RecordTiming(OpExtract, 300*time.Millisecond)
	c.RecordFailure(OpExtract, 200*time.Millisecond)
	c.RecordLLMUsage(OpRecommend, time.Second, 1200, 300)

	snap := c.Snapshot()
	require.NotNil(t, snap.Extract)
	assert.Equal(t, int64(3), snap.Extract.Count)
	assert.Equal(t, int64(1), snap.Extract.Failures)
	assert.Equal(t, int64(100), snap.Extract.MinTimeMs)
	assert.Equal(t, int64(300), snap.Extract.MaxTimeMs)
	assert.InDelta(t, 200.0, snap.Extract.AvgTimeMs, 0.001)
	assert.Nil(t, snap.Extract.InputTokens)

	require.NotNil(t, snap.Recommend)
	require.NotNil(t, snap.Recommend.InputTokens)
	assert.Equal(t, int64(1200), *snap.Recommend.InputTokens)
	assert.Equal(t, int64(300), *snap.Recommend.OutputTokens)

	assert.Nil(t, snap.Scrape, "unrecorded operations are nil")
}

func TestCollectorConcurrentUse(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpRateWait, time.Millisecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), c.Snapshot().RateWait.Count)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordTiming(OpScrape, time.Second)
		c.RecordFailure(OpScrape, time.Second)
		c.RecordLLMUsage(OpRecommend, time.Second, 1, 1)
	})
}

func TestLogSummary(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	c := NewCollector()
	c.RecordTiming(OpScrape, 50*time.Millisecond)
	c.RecordLLMUsage(OpRecommend, time.Second, 10, 5)
	c.LogSummary(logger)

	out := buf.String()
	assert.Contains(t, out, "op=scrape")
	assert.Contains(t, out, "op=recommend")
	assert.Contains(t, out, "input_tokens=10")
	assert.NotContains(t, out, "op=extract")
	assert.Contains(t, out, "run finished")
}
