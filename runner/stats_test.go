package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBasicStatsCollector_AccumulatesCounters(t *testing.T) {
	c := NewBasicStatsCollector()

	c.RecordBatchStart(3)
	c.RecordBatchStart(2)
	c.RecordBatchComplete(3, 10*time.Millisecond)
	c.RecordItemProcessed()
	c.RecordItemProcessed()
	c.RecordItemError()
	c.RecordReadError()
	c.RecordWriteError()

	got := c.GetStats()
	assert.Equal(t, uint64(2), got.BatchesStarted)
	assert.Equal(t, uint64(1), got.BatchesCompleted)
	assert.Equal(t, uint64(2), got.ItemsProcessed)
	assert.Equal(t, uint64(1), got.ItemErrors)
	assert.Equal(t, uint64(1), got.ReadErrors)
	assert.Equal(t, uint64(1), got.WriteErrors)
	assert.Equal(t, 10*time.Millisecond, got.TotalBatchTime)
}

func TestNoOpStatsCollector_AlwaysReturnsZeroValue(t *testing.T) {
	var c NoOpStatsCollector
	c.RecordBatchStart(5)
	c.RecordBatchComplete(5, time.Second)
	c.RecordItemProcessed()
	c.RecordItemError()
	c.RecordReadError()
	c.RecordWriteError()

	assert.Equal(t, Stats{}, c.GetStats())
}
