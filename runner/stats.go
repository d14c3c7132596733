package runner

import (
	"sync/atomic"
	"time"
)

// Timing holds the run's wall-clock accumulators, one per suspension point
// named in the spec's side-output contract. Every field except Total is a sum
// across all goroutines of that kind for the run (for example,
// TimeBlockedAtTakeRead sums the time every worker spent waiting to receive
// from the read queue); Total is the wall-clock duration of the whole run.
// All durations are derived from monotonic time.Now() deltas.
type Timing struct {
	TimeReading            time.Duration
	TimeBlockedAtPutRead   time.Duration
	TimeBlockedAtTakeRead  time.Duration
	TimeTaskApply          time.Duration
	TimeBlockedAtPutWrite  time.Duration
	TimeBlockedAtTakeWrite time.Duration
	TimeWriting            time.Duration
	Total                  time.Duration
}

// runTiming accumulates Timing fields concurrently using atomic nanosecond
// counters, then is converted to a Timing snapshot once at the end of a run.
type runTiming struct {
	reading            atomic.Int64
	blockedAtPutRead   atomic.Int64
	blockedAtTakeRead  atomic.Int64
	taskApply          atomic.Int64
	blockedAtPutWrite  atomic.Int64
	blockedAtTakeWrite atomic.Int64
	writing            atomic.Int64
}

func (t *runTiming) snapshot(total time.Duration) Timing {
	return Timing{
		TimeReading:            time.Duration(t.reading.Load()),
		TimeBlockedAtPutRead:   time.Duration(t.blockedAtPutRead.Load()),
		TimeBlockedAtTakeRead:  time.Duration(t.blockedAtTakeRead.Load()),
		TimeTaskApply:          time.Duration(t.taskApply.Load()),
		TimeBlockedAtPutWrite:  time.Duration(t.blockedAtPutWrite.Load()),
		TimeBlockedAtTakeWrite: time.Duration(t.blockedAtTakeWrite.Load()),
		TimeWriting:            time.Duration(t.writing.Load()),
		Total:                  total,
	}
}

// since adds the elapsed time since start to the counter, in nanoseconds.
func since(counter *atomic.Int64, start time.Time) {
	counter.Add(int64(time.Since(start)))
}

// logSummary writes each Timing field to the diagnostic logger, in seconds to
// nanosecond resolution, as the spec's side-output contract requires.
func (t Timing) logSummary(logger Logger, runID string) {
	logger.Info("run %s timing: timeReading=%.9fs timeBlockedAtPutRead=%.9fs timeBlockedAtTakeRead=%.9fs "+
		"timeTaskApply=%.9fs timeBlockedAtPutWrite=%.9fs timeBlockedAtTakeWrite=%.9fs timeWriting=%.9fs total=%.9fs",
		runID,
		t.TimeReading.Seconds(), t.TimeBlockedAtPutRead.Seconds(), t.TimeBlockedAtTakeRead.Seconds(),
		t.TimeTaskApply.Seconds(), t.TimeBlockedAtPutWrite.Seconds(), t.TimeBlockedAtTakeWrite.Seconds(),
		t.TimeWriting.Seconds(), t.Total.Seconds())
}

// StatsCollector is an optional seam for exporting batch-level counters to an
// external metrics system. The Runner never reports to any such system
// itself (that transport is out of scope); it only calls these methods.
// Implementations must be safe for concurrent use.
type StatsCollector interface {
	RecordBatchStart(batchSize int)
	RecordBatchComplete(batchSize int, duration time.Duration)
	RecordItemProcessed()
	RecordItemError()
	RecordReadError()
	RecordWriteError()
	GetStats() Stats
}

// Stats is a snapshot of the counters a StatsCollector maintains.
type Stats struct {
	BatchesStarted   uint64
	BatchesCompleted uint64
	ItemsProcessed   uint64
	ItemErrors       uint64
	ReadErrors       uint64
	WriteErrors      uint64
	TotalBatchTime   time.Duration
}

// NoOpStatsCollector discards every recorded metric. It is the default
// StatsCollector.
type NoOpStatsCollector struct{}

func (NoOpStatsCollector) RecordBatchStart(int)                  {}
func (NoOpStatsCollector) RecordBatchComplete(int, time.Duration) {}
func (NoOpStatsCollector) RecordItemProcessed()                  {}
func (NoOpStatsCollector) RecordItemError()                      {}
func (NoOpStatsCollector) RecordReadError()                      {}
func (NoOpStatsCollector) RecordWriteError()                     {}
func (NoOpStatsCollector) GetStats() Stats                       { return Stats{} }

// BasicStatsCollector is a thread-safe, in-memory StatsCollector reference
// implementation, for callers that want a quick summary without wiring their
// own metrics system.
type BasicStatsCollector struct {
	batchesStarted   atomic.Uint64
	batchesCompleted atomic.Uint64
	itemsProcessed   atomic.Uint64
	itemErrors       atomic.Uint64
	readErrors       atomic.Uint64
	writeErrors      atomic.Uint64
	totalBatchTime   atomic.Int64
}

// NewBasicStatsCollector creates an empty BasicStatsCollector.
func NewBasicStatsCollector() *BasicStatsCollector {
	return &BasicStatsCollector{}
}

func (c *BasicStatsCollector) RecordBatchStart(int) {
	c.batchesStarted.Add(1)
}

func (c *BasicStatsCollector) RecordBatchComplete(_ int, duration time.Duration) {
	c.batchesCompleted.Add(1)
	c.totalBatchTime.Add(int64(duration))
}

func (c *BasicStatsCollector) RecordItemProcessed() { c.itemsProcessed.Add(1) }
func (c *BasicStatsCollector) RecordItemError()     { c.itemErrors.Add(1) }
func (c *BasicStatsCollector) RecordReadError()     { c.readErrors.Add(1) }
func (c *BasicStatsCollector) RecordWriteError()    { c.writeErrors.Add(1) }

func (c *BasicStatsCollector) GetStats() Stats {
	return Stats{
		BatchesStarted:   c.batchesStarted.Load(),
		BatchesCompleted: c.batchesCompleted.Load(),
		ItemsProcessed:   c.itemsProcessed.Load(),
		ItemErrors:       c.itemErrors.Load(),
		ReadErrors:       c.readErrors.Load(),
		WriteErrors:      c.writeErrors.Load(),
		TotalBatchTime:   time.Duration(c.totalBatchTime.Load()),
	}
}
