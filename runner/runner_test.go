package runner_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coriolis-dev/batchpipe/reader"
	"github.com/coriolis-dev/batchpipe/runner"
	"github.com/coriolis-dev/batchpipe/writer"
)

// upperCaseTask uppercases every string it is given. It is stateless, so a
// single instance can be shared across workers via Runner.Task.
type upperCaseTask struct {
	runner.BaseTask[string, string]
}

func (upperCaseTask) Apply(_ context.Context, items []string) ([]string, error) {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = toUpper(s)
	}
	return out, nil
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func TestRunner_UpperCasePipelineSingleWorker(t *testing.T) {
	in := &reader.Slice[string]{Items: []string{"a", "b", "c", "d", "e"}}
	out := &writer.Collector[string]{}

	r := &runner.Runner[string, string]{
		Config:  runner.Config{NumTasks: 1, BatchSize: 2, Capacity: 4},
		Reader:  in,
		Writer:  out,
		NewTask: func() runner.Task[string, string] { return &upperCaseTask{} },
	}

	err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, r.Errors())
	assert.ElementsMatch(t, []string{"A", "B", "C", "D", "E"}, out.Results(false))
}

func TestRunner_TasksSliceOverridesZeroNumTasks(t *testing.T) {
	// Config.NumTasks is deliberately left at its zero value: Runner.Tasks'
	// length is what determines the worker count on this path, and Run must
	// not reject the zero value as a missing NumTasks.
	in := &reader.Slice[string]{Items: []string{"a", "b", "c"}}
	out := &writer.Collector[string]{}

	r := &runner.Runner[string, string]{
		Config: runner.Config{BatchSize: 1, Capacity: 2},
		Reader: in,
		Writer: out,
		Tasks: []runner.Task[string, string]{
			&upperCaseTask{},
			&upperCaseTask{},
		},
	}

	err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, r.Errors())
	assert.ElementsMatch(t, []string{"A", "B", "C"}, out.Results(false))
}

func TestRunner_MultipleWorkersDeliverEveryItem(t *testing.T) {
	items := make([]string, 200)
	for i := range items {
		items[i] = "x"
	}
	in := &reader.Slice[string]{Items: items}
	out := &writer.Collector[string]{}

	r := &runner.Runner[string, string]{
		Config:  runner.Config{NumTasks: 8, BatchSize: 3, Capacity: 4},
		Reader:  in,
		Writer:  out,
		NewTask: func() runner.Task[string, string] { return &upperCaseTask{} },
	}

	require.NoError(t, r.Run(context.Background()))
	assert.Len(t, out.Results(false), len(items))
}

// generatorTask synthesizes its own input: it ignores whatever Apply is
// handed and emits one item per call until it has emitted Total items.
type generatorTask struct {
	runner.BaseTask[struct{}, int]
	Total   int
	emitted atomic.Int64
}

func (g *generatorTask) Apply(context.Context, []struct{}) ([]int, error) {
	n := g.emitted.Add(1)
	if int(n) > g.Total {
		return nil, nil
	}
	return []int{int(n)}, nil
}

func TestRunner_NoReaderSynthesizesInput(t *testing.T) {
	out := &writer.Collector[int]{}
	task := &generatorTask{Total: 10}

	r := &runner.Runner[struct{}, int]{
		Config: runner.Config{NumTasks: 1, BatchSize: 1, Capacity: 4},
		Writer: out,
		Task:   task,
	}

	require.NoError(t, r.Run(context.Background()))
	assert.Len(t, out.Results(false), 10)
}

// countingTask counts how many items it has seen without producing output,
// used to exercise the no-writer (discarded output) path.
type countingTask struct {
	runner.BaseTask[string, string]
	seen *atomic.Int64
}

func (c *countingTask) Apply(_ context.Context, items []string) ([]string, error) {
	c.seen.Add(int64(len(items)))
	return nil, nil
}

func TestRunner_NoWriterDiscardsOutput(t *testing.T) {
	var seen atomic.Int64
	in := &reader.Slice[string]{Items: []string{"a", "b", "c", "d"}}

	r := &runner.Runner[string, string]{
		Config: runner.Config{NumTasks: 2, BatchSize: 1, Capacity: 2},
		Reader: in,
		Task:   &countingTask{seen: &seen},
	}

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, int64(4), seen.Load())
	assert.Empty(t, r.Errors())
}

// failEveryTask fails every Nth Apply call and otherwise passes items through.
type failEveryTask struct {
	runner.BaseTask[int, int]
	FailEvery int
	calls     atomic.Int64
}

func (f *failEveryTask) Apply(_ context.Context, items []int) ([]int, error) {
	n := f.calls.Add(1)
	if int(n)%f.FailEvery == 0 {
		return nil, errors.New("simulated task failure")
	}
	return items, nil
}

func TestRunner_AbortOnFailReturnsRunError(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}
	in := &reader.Slice[int]{Items: items}
	out := &writer.Collector[int]{}

	r := &runner.Runner[int, int]{
		Config: runner.Config{NumTasks: 2, BatchSize: 1, Capacity: 2, AbortOnFail: true},
		Reader: in,
		Writer: out,
		NewTask: func() runner.Task[int, int] {
			return &failEveryTask{FailEvery: 3}
		},
	}

	err := r.Run(context.Background())
	require.Error(t, err)

	var runErr *runner.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Greater(t, runErr.Count, 0)
	assert.NotEmpty(t, r.Errors())
}

func TestRunner_AbortOnFailFalseCollectsErrorsWithoutFailingRun(t *testing.T) {
	items := make([]int, 12)
	for i := range items {
		items[i] = i
	}
	in := &reader.Slice[int]{Items: items}
	out := &writer.Collector[int]{}

	r := &runner.Runner[int, int]{
		Config: runner.Config{NumTasks: 1, BatchSize: 1, Capacity: 2, AbortOnFail: false},
		Reader: in,
		Writer: out,
		NewTask: func() runner.Task[int, int] {
			return &failEveryTask{FailEvery: 4}
		},
	}

	require.NoError(t, r.Run(context.Background()))
	assert.NotEmpty(t, r.Errors())
}

// blockThenPanicTask panics on the first batch it is given, so the worker
// exits and never drains the read queue again.
type blockThenPanicTask struct {
	runner.BaseTask[int, int]
}

func (blockThenPanicTask) Apply(context.Context, []int) ([]int, error) {
	panic("simulated worker crash")
}

func TestRunner_StuckOrphanedReadQueueIsDetected(t *testing.T) {
	items := []int{1, 2, 3}
	in := &reader.Slice[int]{Items: items}

	r := &runner.Runner[int, int]{
		Config: runner.Config{
			NumTasks:              1,
			BatchSize:             1,
			Capacity:              1,
			ReadQueuePutTimeoutMs: 1000,
		},
		Reader:  in,
		NewTask: func() runner.Task[int, int] { return &blockThenPanicTask{} },
	}

	start := time.Now()
	err := r.Run(context.Background())
	require.NoError(t, err) // AbortOnFail is false; the error is only recorded.
	assert.Greater(t, time.Since(start), time.Second)

	var stuckErr *runner.StuckQueueError
	found := false
	for _, e := range r.Errors() {
		if errors.As(e, &stuckErr) {
			found = true
			break
		}
	}
	assert.True(t, found, "expected a recorded StuckQueueError, got %v", r.Errors())
}

func TestRunner_ContextCancellationUnblocksRun(t *testing.T) {
	items := make([]int, 1000)
	in := &reader.Slice[int]{Items: items}
	out := &writer.Collector[int]{}

	ctx, cancel := context.WithCancel(context.Background())

	r := &runner.Runner[int, int]{
		Config: runner.Config{NumTasks: 1, BatchSize: 1, Capacity: 1},
		Reader: in,
		Writer: out,
		NewTask: func() runner.Task[int, int] {
			return &slowPassthroughTask{}
		},
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := r.Run(ctx)
	require.NoError(t, err)
}

type slowPassthroughTask struct {
	runner.BaseTask[int, int]
}

func (slowPassthroughTask) Apply(ctx context.Context, items []int) ([]int, error) {
	select {
	case <-time.After(5 * time.Millisecond):
		return items, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
