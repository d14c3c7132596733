package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MaxShutdownRetries is the number of one-second retries the stuck-
// termination guard performs before Run gives up waiting on a worker or
// writer that is ignoring context cancellation.
const MaxShutdownRetries = 30

// Runner wires together a Reader, a pool of Task workers, and a Writer into
// one bounded batch pipeline. Exactly one of Task, NewTask, or Tasks must be
// set before calling Run. The zero Runner is not usable; at minimum Config
// and one task source must be provided.
//
// A Runner must not be reused for overlapping Run calls: Run panics if
// called while a previous call on the same Runner is still in flight,
// mirroring the teacher's "Concurrent calls to Batch.Go are not allowed"
// convention. Sequential reuse (one Run completing before the next starts)
// is fine.
type Runner[I, O any] struct {
	Config Config

	// Reader is the upstream collaborator. Nil means workers synthesize
	// their own input (see Task.Apply's doc comment).
	Reader Reader[I]

	// Writer is the downstream collaborator. Nil means worker output is
	// discarded.
	Writer Writer[O]

	// Exactly one of the following selects the worker task list.
	Task    Task[I, O]
	NewTask func() Task[I, O]
	Tasks   []Task[I, O]

	// Logger receives lifecycle and diagnostic messages. Defaults to
	// NoOpLogger.
	Logger Logger

	// Stats receives batch-level counters. Defaults to NoOpStatsCollector.
	Stats StatsCollector

	mu      sync.Mutex
	running bool

	lastRunID  string
	lastErrors []error
	lastTiming Timing
	lastStats  Stats
}

// Errors returns a copy of the errors recorded during the most recent Run
// call. It is meaningful to call after Run returns, including after a
// non-abort run that completed with errors recorded but not raised.
func (r *Runner[I, O]) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.lastErrors))
	copy(out, r.lastErrors)
	return out
}

// Timing returns the wall-clock accumulators from the most recent Run call.
func (r *Runner[I, O]) Timing() Timing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastTiming
}

// LastStats returns the StatsCollector snapshot from the most recent Run
// call (the zero value if Stats was never set).
func (r *Runner[I, O]) LastStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastStats
}

// run is the mutable state scoped to one Run invocation. Nothing here is
// shared across calls.
type run[I, O any] struct {
	id  string
	cfg Config

	reader Reader[I]
	writer Writer[O]
	tasks  []Task[I, O]

	logger Logger
	stats  StatsCollector

	readQueue  chan Batch[I]
	writeQueue chan Batch[O]

	sink        errorSink
	timing      runTiming
	liveWorkers atomic.Int64
	noReaderPos atomic.Int64

	finishMu      sync.Mutex
	finishedTasks uint

	wg sync.WaitGroup
}

// Run executes one pass of the pipeline to completion and returns when the
// reader has finished, every worker has drained, and the writer (if any) has
// consumed the terminal sentinel.
//
// Run returns a *ConfigError synchronously if the Runner is misconfigured, and
// the wrapped error if the reader's or writer's Open or Pre fails (no stage is
// started in either case). It returns a *RunError if Config.AbortOnFail is
// set and any stage recorded an error. Otherwise it returns nil;
// Runner.Errors() may still be non-empty.
func (r *Runner[I, O]) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		panic("runner: concurrent calls to Run are not allowed")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	cfg := r.Config.normalize()
	if err := cfg.validate(r.Writer != nil, r.Tasks != nil); err != nil {
		return err
	}

	tasks, err := resolveTasks(cfg.NumTasks, r.Task, r.NewTask, r.Tasks)
	if err != nil {
		return err
	}
	numTasks := uint(len(tasks))

	logger := r.Logger
	if logger == nil {
		logger = NoOpLogger{}
	}
	stats := r.Stats
	if stats == nil {
		stats = NoOpStatsCollector{}
	}

	rn := &run[I, O]{
		id:     newRunID(),
		cfg:    cfg,
		reader: r.Reader,
		writer: r.Writer,
		tasks:  tasks,
		logger: logger,
		stats:  stats,
	}
	rn.liveWorkers.Store(int64(numTasks))

	if r.Reader != nil {
		rn.readQueue = make(chan Batch[I], cfg.Capacity)
	}
	if r.Writer != nil {
		rn.writeQueue = make(chan Batch[O], cfg.Capacity)
	}

	start := time.Now()
	logger.Info("run %s starting: numTasks=%d batchSize=%d capacity=%d abortOnFail=%v",
		rn.id, numTasks, cfg.BatchSize, cfg.Capacity, cfg.AbortOnFail)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := rn.openPhase(runCtx); err != nil {
		return err
	}

	for _, task := range rn.tasks {
		rn.wg.Add(1)
		go rn.worker(runCtx, task)
	}
	if rn.writer != nil {
		rn.wg.Add(1)
		go rn.runWriterLoop(runCtx)
	}

	var interrupted bool
	if rn.reader != nil {
		interrupted = rn.runReaderLoop(runCtx)
	}

	done := make(chan struct{})
	go func() {
		rn.wg.Wait()
		close(done)
	}()

	for attempt := 0; ; attempt++ {
		select {
		case <-done:
			goto drained
		case <-time.After(time.Second):
			cancel()
			if attempt+1 >= MaxShutdownRetries {
				logger.Warn("run %s: workers did not terminate after %d shutdown retries, giving up",
					rn.id, MaxShutdownRetries)
				goto drained
			}
		}
	}

drained:
	rn.postTasks(runCtx)
	rn.closePhase(runCtx)

	total := time.Since(start)
	timing := rn.timing.snapshot(total)
	errs := rn.sink.snapshot()

	r.mu.Lock()
	r.lastRunID = rn.id
	r.lastErrors = errs
	r.lastTiming = timing
	r.lastStats = stats.GetStats()
	r.mu.Unlock()

	timing.logSummary(logger, rn.id)
	logger.Info("run %s complete: interrupted=%v errors=%d", rn.id, interrupted, len(errs))

	if cfg.AbortOnFail && len(errs) > 0 {
		return &RunError{RunID: rn.id, Count: len(errs), First: errs[0]}
	}
	return nil
}

// openPhase runs Open/Pre on the reader and writer (if present), per the
// lifecycle controller's step 2. It does not call Task.Pre: each worker
// goroutine calls Pre on its own task when it starts, before its first
// Apply, so the tasks' Pre calls run concurrently with each other.
func (rn *run[I, O]) openPhase(ctx context.Context) error {
	if rn.reader != nil {
		if err := rn.reader.Open(ctx); err != nil {
			return fmt.Errorf("runner: reader open failed: %w", err)
		}
		if err := rn.reader.Pre(ctx); err != nil {
			return fmt.Errorf("runner: reader pre failed: %w", err)
		}
	}
	if rn.writer != nil {
		if err := rn.writer.Open(ctx); err != nil {
			return fmt.Errorf("runner: writer open failed: %w", err)
		}
		if err := rn.writer.Pre(ctx); err != nil {
			return fmt.Errorf("runner: writer pre failed: %w", err)
		}
	}
	return nil
}

// postTasks calls Task.Post on every task, once each, after every worker has
// joined. This runs centrally in Run rather than inside each worker's own
// finalize step, per the lifecycle controller's step 7 ordering: all tasks'
// Post calls complete before the reader and writer are closed.
func (rn *run[I, O]) postTasks(ctx context.Context) {
	for _, task := range rn.tasks {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					rn.sink.addApply(fmt.Errorf("panic in Post: %v", rec))
				}
			}()
			if err := task.Post(ctx); err != nil {
				rn.sink.addApply(err)
			}
		}()
	}
}

// closePhase runs Post/Close on the reader and writer, in the order the
// lifecycle controller's step 7 requires. It runs once the workers and writer
// have joined (or the shutdown guard has given up on them), whether or not
// the run recorded errors, and never lets a cleanup error mask the actual run
// errors (it records them on the sink instead). It is not reached when
// openPhase fails: Run then returns that error without calling Post or Close
// on the reader or writer.
func (rn *run[I, O]) closePhase(ctx context.Context) {
	if rn.reader != nil {
		if err := rn.reader.Post(ctx); err != nil {
			rn.sink.add(fmt.Errorf("runner: reader post failed: %w", err))
		}
		if err := rn.reader.Close(ctx); err != nil {
			rn.sink.add(fmt.Errorf("runner: reader close failed: %w", err))
		}
	}
	if rn.writer != nil {
		if err := rn.writer.Post(ctx); err != nil {
			rn.sink.add(fmt.Errorf("runner: writer post failed: %w", err))
		}
		if err := rn.writer.Close(ctx); err != nil {
			rn.sink.add(fmt.Errorf("runner: writer close failed: %w", err))
		}
	}
}

// runReaderLoop implements §4.2. It returns true if it observed context
// cancellation rather than a normal or error-driven end-of-stream.
func (rn *run[I, O]) runReaderLoop(ctx context.Context) bool {
	var pos int64
	for {
		readStart := time.Now()
		items, err := rn.reader.Read(ctx, int(rn.cfg.BatchSize))
		since(&rn.timing.reading, readStart)

		if err != nil {
			rn.sink.addRead(err)
			rn.stats.RecordReadError()
			rn.postSentinelBestEffort(ctx)
			return false
		}
		if len(items) == 0 {
			rn.postSentinelBestEffort(ctx)
			return false
		}

		batch := NewBatch(items, pos)
		pos++
		rn.stats.RecordBatchStart(len(items))

		if stuck := rn.putRead(ctx, batch); stuck != nil {
			if ctx.Err() != nil {
				return true
			}
			// The queue is provably stuck: do not attempt a blocking
			// sentinel put here, since that would itself hang forever.
			rn.sink.add(stuck)
			rn.logger.Error("run %s: %v", rn.id, stuck)
			return false
		}

		if rn.cfg.AbortOnFail && rn.sink.nonEmpty() {
			rn.postSentinelBestEffort(ctx)
			return false
		}
	}
}

// putRead implements the bounded-wait offer loop from §4.2: a tight loop of
// one-second attempts, each followed by a liveness check and a running
// attempt counter checked against the configured timeout budget.
func (rn *run[I, O]) putRead(ctx context.Context, batch Batch[I]) error {
	maxAttempts := int(rn.cfg.ReadQueuePutTimeoutMs) / 1000
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	attempts := 0
	for {
		putStart := time.Now()
		select {
		case rn.readQueue <- batch:
			since(&rn.timing.blockedAtPutRead, putStart)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
		since(&rn.timing.blockedAtPutRead, putStart)
		attempts++

		if rn.liveWorkers.Load() == 0 && len(rn.readQueue) > 0 {
			return &StuckQueueError{Orphaned: true, QueueDepth: len(rn.readQueue)}
		}
		if attempts > maxAttempts {
			return &StuckQueueError{Orphaned: false, QueueDepth: len(rn.readQueue)}
		}
	}
}

// postSentinelBestEffort enqueues the read-queue sentinel. It keeps waiting
// for room while at least one worker is alive to drain the queue, and gives
// up once ctx is cancelled or no worker remains (every worker may already
// have exited through AbortOnFail or a recovered panic), since nobody would
// ever receive the sentinel then.
func (rn *run[I, O]) postSentinelBestEffort(ctx context.Context) {
	for {
		select {
		case rn.readQueue <- poisonPill[I]():
			return
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
			if rn.liveWorkers.Load() == 0 {
				return
			}
		}
	}
}

// worker implements §4.3 and §4.3.1.
func (rn *run[I, O]) worker(ctx context.Context, task Task[I, O]) {
	defer rn.wg.Done()

	var lastBatch Batch[I]
	var cancelled bool

	defer func() {
		if rec := recover(); rec != nil {
			rn.sink.addApply(fmt.Errorf("panic: %v", rec))
		} else if !cancelled {
			rn.drainTask(ctx, task, lastBatch)
		}
		rn.finalizeWorker(ctx)
	}()

	if err := task.Pre(ctx); err != nil {
		rn.sink.addApply(err)
	}

	for {
		var batch Batch[I]

		if rn.readQueue != nil {
			takeStart := time.Now()
			select {
			case batch = <-rn.readQueue:
				since(&rn.timing.blockedAtTakeRead, takeStart)
			case <-ctx.Done():
				cancelled = true
				return
			}

			if batch.IsSentinel() {
				select {
				case rn.readQueue <- batch:
				case <-ctx.Done():
					cancelled = true
					return
				}
				lastBatch = batch
				return
			}
		} else {
			pos := rn.noReaderPos.Add(1) - 1
			batch = NewBatch[I](nil, pos)
		}

		applyStart := time.Now()
		result, err := task.Apply(ctx, batch.Items())
		since(&rn.timing.taskApply, applyStart)

		if err != nil {
			rn.sink.addApply(err)
			rn.stats.RecordItemError()
			result = nil
		} else {
			rn.stats.RecordItemProcessed()
		}
		lastBatch = batch

		if rn.readQueue == nil && err == nil && len(result) == 0 {
			return
		}
		if rn.cfg.AbortOnFail && rn.sink.nonEmpty() {
			return
		}
		if rn.writeQueue != nil && len(result) > 0 {
			out := NewBatch(result, batch.Position())
			putStart := time.Now()
			select {
			case rn.writeQueue <- out:
				since(&rn.timing.blockedAtPutWrite, putStart)
			case <-ctx.Done():
				cancelled = true
				return
			}
		}
	}
}

// drainTask calls Task.Drain and forwards any residual output, completing
// the drain/finalize step described in §4.3.
func (rn *run[I, O]) drainTask(ctx context.Context, task Task[I, O], lastBatch Batch[I]) {
	drained, err := task.Drain(ctx)
	if err != nil {
		rn.sink.addApply(err)
		return
	}
	if len(drained) == 0 || rn.writeQueue == nil {
		return
	}
	out := NewBatch(drained, lastBatch.Position()+1)
	select {
	case rn.writeQueue <- out:
	case <-ctx.Done():
	}
}

// finalizeWorker folds this worker out of the live count and — if it is the
// last worker to finish — enqueues the writer sentinel. It always runs
// exactly once per worker, even after a recovered panic or a
// context-cancelled exit, so the writer sentinel guarantee in §9 holds
// regardless of how a worker stopped. Task.Post itself is called centrally
// by postTasks once every worker has joined, not here.
func (rn *run[I, O]) finalizeWorker(ctx context.Context) {
	rn.finishMu.Lock()
	rn.finishedTasks++
	sendSentinel := rn.finishedTasks == uint(len(rn.tasks)) && rn.writeQueue != nil
	rn.finishMu.Unlock()

	rn.liveWorkers.Add(-1)

	if sendSentinel {
		select {
		case rn.writeQueue <- poisonPill[O]():
		case <-ctx.Done():
		}
	}
}

// runWriterLoop implements §4.4.
func (rn *run[I, O]) runWriterLoop(ctx context.Context) {
	defer rn.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			rn.sink.add(fmt.Errorf("runner: writer panic: %v", rec))
		}
	}()

	for {
		takeStart := time.Now()
		select {
		case batch := <-rn.writeQueue:
			since(&rn.timing.blockedAtTakeWrite, takeStart)

			if batch.IsSentinel() {
				return
			}

			writeStart := time.Now()
			err := rn.writer.Write(ctx, batch.Items())
			since(&rn.timing.writing, writeStart)

			if err != nil {
				rn.sink.addWrite(err)
				rn.stats.RecordWriteError()
				if rn.cfg.AbortOnFail && rn.sink.nonEmpty() {
					return
				}
			} else {
				rn.stats.RecordBatchComplete(batch.Len(), time.Since(writeStart))
			}
		case <-ctx.Done():
			return
		}
	}
}
