// Package runner implements a bounded, parallel batch pipeline: a single
// reader produces fixed-size batches, a pool of workers transforms each batch
// concurrently, and an optional single writer consumes the results.
//
// The three stages are connected by capacity-bounded channels. A Runner is
// created with a Config, a Reader (optional), a Writer (optional), and one or
// more Task instances, then started with Run:
//
//	r := &runner.Runner[string, string]{
//		Config: runner.Config{NumTasks: 4, BatchSize: 100, Capacity: 8, AbortOnFail: true},
//		Reader: myReader,
//		Writer: myWriter,
//		NewTask: func() runner.Task[string, string] { return &upperCase{} },
//	}
//	if err := r.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// If Reader is nil, workers synthesize their own input by calling Task.Apply
// with no items and relying on Task.Drain-style generators until they yield
// nothing. If Writer is nil, worker output is silently discarded.
//
// Run blocks until every stage has finished: the reader has exhausted its
// source (or failed), every worker has drained, and the writer (if any) has
// consumed the terminal sentinel. Errors encountered by the reader, workers,
// or writer are recorded on an internal error sink rather than unwinding the
// goroutine that hit them. Apart from a *ConfigError or a failed Open/Pre of
// the reader or writer, both returned before any stage starts, Run only
// returns a non-nil error when Config.AbortOnFail is set and the sink is
// non-empty, in which case it wraps the first recorded cause in a *RunError.
package runner
