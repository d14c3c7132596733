package runner

import (
	"fmt"
	"sync"
)

// ConfigError is returned synchronously from Run when the Runner's
// configuration or task list is invalid.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("runner: invalid configuration: %s", e.Reason)
}

// ReadError wraps an error returned by Reader.Read.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("runner: read error: %v", e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// ApplyError wraps an error returned by a Task method (Pre, Apply, Drain or
// Post), or a panic recovered from a Task.
type ApplyError struct {
	Err error
}

func (e *ApplyError) Error() string { return fmt.Sprintf("runner: apply error: %v", e.Err) }
func (e *ApplyError) Unwrap() error { return e.Err }

// WriteError wraps an error returned by Writer.Write.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("runner: write error: %v", e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// StuckQueueError is raised on the reader's goroutine when the read queue
// cannot accept a new batch and either no worker remains alive to drain it,
// or the put-timeout budget has been exhausted.
type StuckQueueError struct {
	// Orphaned is true when every worker had already exited while the queue
	// was still full — a definitive signal of a dead pipeline rather than a
	// merely slow one.
	Orphaned bool
	// QueueDepth is the number of batches sitting in the read queue at the
	// moment the error was raised.
	QueueDepth int
}

func (e *StuckQueueError) Error() string {
	if e.Orphaned {
		return fmt.Sprintf("runner: read queue stuck: depth %d, no workers remain alive", e.QueueDepth)
	}
	return fmt.Sprintf("runner: read queue stuck: depth %d, put timeout exceeded", e.QueueDepth)
}

// RunError is the composite failure Run returns when Config.AbortOnFail is
// set and the error sink is non-empty at the end of a run. It names how many
// errors were recorded and wraps the first one.
type RunError struct {
	RunID string
	Count int
	First error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("runner: run %s failed with %d error(s), first: %v", e.RunID, e.Count, e.First)
}

func (e *RunError) Unwrap() error { return e.First }

// errorSink is an append-only, concurrency-safe collection of errors
// recorded during a run. It is read only after every stage has joined.
type errorSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *errorSink) add(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *errorSink) addRead(err error) {
	if err != nil {
		s.add(&ReadError{Err: err})
	}
}

func (s *errorSink) addApply(err error) {
	if err != nil {
		s.add(&ApplyError{Err: err})
	}
}

func (s *errorSink) addWrite(err error) {
	if err != nil {
		s.add(&WriteError{Err: err})
	}
}

// nonEmpty reports whether any error has been recorded so far. Safe to call
// concurrently with add.
func (s *errorSink) nonEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs) > 0
}

// snapshot returns a copy of every error recorded so far. Intended to be
// called after every goroutine touching the sink has joined, but the
// internal lock makes it safe even when called concurrently with add.
func (s *errorSink) snapshot() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.errs))
	copy(out, s.errs)
	return out
}
