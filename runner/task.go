package runner

import "context"

// Task is the user-defined transform applied to each batch. A Runner borrows
// one Task instance per worker for the duration of a single Run call.
//
// Pre and Post are each called exactly once per worker's task. A single
// instance shared through Runner.Task fills every worker's slot, so it
// receives one Pre, Drain and Post call per worker. Apply may be called any
// number of times, including zero (a Reader that yields nothing on its first
// Read means Apply is never called; a no-reader Runner whose first Apply call
// yields nothing never calls Apply again). Drain is called exactly once,
// after the last Apply call on that instance, unless the run context is
// cancelled while the worker is blocked elsewhere or the worker recovered a
// panic, in which case Drain is skipped entirely.
//
// If a single Task instance is shared across workers (Runner.Task), the
// implementation is responsible for its own thread-safety. If Runner.NewTask
// or Runner.Tasks is used instead, each worker owns a private instance and no
// synchronization is required inside Task itself.
type Task[I, O any] interface {
	// Pre runs once before the first Apply call.
	Pre(ctx context.Context) error

	// Apply transforms one batch of input items into output items. A nil or
	// empty result with a nil error is a legal "nothing produced this time"
	// response; it is only treated as end-of-stream when the Runner has no
	// Reader configured.
	Apply(ctx context.Context, items []I) ([]O, error)

	// Drain returns any residual output buffered internally by the task. It
	// runs once, after the task has seen its last Apply call. The default
	// behavior (via BaseTask) is to return nothing.
	Drain(ctx context.Context) ([]O, error)

	// Post runs once after Drain, regardless of whether earlier calls
	// returned errors.
	Post(ctx context.Context) error
}

// BaseTask implements the optional parts of Task (Pre, Drain, Post) as no-ops
// so implementations can embed it and only provide Apply, mirroring the
// teacher's no-op Processor/Source convention.
type BaseTask[I, O any] struct{}

// Pre implements Task by doing nothing.
func (BaseTask[I, O]) Pre(context.Context) error { return nil }

// Drain implements Task by yielding no residual output.
func (BaseTask[I, O]) Drain(context.Context) ([]O, error) { return nil, nil }

// Post implements Task by doing nothing.
func (BaseTask[I, O]) Post(context.Context) error { return nil }

// resolveTasks returns exactly one Task[I, O] per worker, in one of three
// ways: a shared instance reused by every worker, a supplier minting one
// instance per worker, or an explicit slice whose length overrides
// Config.NumTasks (see the "numTasks mismatch" design note). Exactly one of
// task, newTask, or tasks must be set.
func resolveTasks[I, O any](numTasks uint, task Task[I, O], newTask func() Task[I, O], tasks []Task[I, O]) ([]Task[I, O], error) {
	switch {
	case tasks != nil:
		if len(tasks) == 0 {
			return nil, &ConfigError{Reason: "Tasks must not be empty when provided"}
		}
		return tasks, nil
	case newTask != nil:
		out := make([]Task[I, O], numTasks)
		for i := range out {
			out[i] = newTask()
		}
		return out, nil
	case task != nil:
		out := make([]Task[I, O], numTasks)
		for i := range out {
			out[i] = task
		}
		return out, nil
	default:
		return nil, &ConfigError{Reason: "exactly one of Task, NewTask, or Tasks must be set"}
	}
}
