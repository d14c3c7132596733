package runner

// DefaultReadQueuePutTimeoutMs is the soft deadline, in milliseconds, that
// the reader loop allows a full read queue to stay full (with live workers)
// before declaring it stuck. It is expressed as a whole number of one-second
// offer attempts, so values under 1000 still allow at least one attempt.
const DefaultReadQueuePutTimeoutMs = 500

// Config is the immutable tuning record for a Runner. A Runner reads it once
// per Run call; changing a Config value after Run has started has no effect
// and is not supported (construct a new Config instead).
type Config struct {
	// NumTasks is the number of worker goroutines. Overridden by the length
	// of Runner.Tasks when that field is set, in which case NumTasks may be
	// left at zero. Otherwise must be >= 1.
	NumTasks uint

	// BatchSize is the maximum number of items requested per Reader.Read
	// call. Must be >= 1.
	BatchSize uint

	// Capacity bounds each of the read and write queues, in batches. Must be
	// >= 1.
	Capacity uint

	// AbortOnFail, when true, causes the first recorded error from any stage
	// to wind down the whole pipeline and makes Run return a *RunError.
	// When false, Run returns nil and errors are only visible via
	// Runner.Errors().
	AbortOnFail bool

	// Sorted is reserved for a future priority-queue writer stage keyed on
	// Batch.Position; Runner does not currently reorder batches. Setting it
	// without a Writer is a configuration error, since there would be
	// nothing to apply the ordering to.
	Sorted bool

	// ReadQueuePutTimeoutMs is the soft deadline described on
	// DefaultReadQueuePutTimeoutMs. Zero means "use the default", not "no
	// timeout" — an unbounded timeout would defeat stuck-queue detection.
	ReadQueuePutTimeoutMs uint
}

// normalize returns a copy of c with defaults filled in.
func (c Config) normalize() Config {
	if c.ReadQueuePutTimeoutMs == 0 {
		c.ReadQueuePutTimeoutMs = DefaultReadQueuePutTimeoutMs
	}
	return c
}

// validate checks c for the preconditions Run requires, returning a
// *ConfigError describing the first violation found. hasTasks reports
// whether Runner.Tasks was supplied; when it is, that slice's length
// overrides NumTasks (see the "numTasks mismatch" design note), so the
// NumTasks >= 1 rule is only enforced when there is no such slice.
func (c Config) validate(hasWriter, hasTasks bool) error {
	if !hasTasks && c.NumTasks < 1 {
		return &ConfigError{Reason: "NumTasks must be >= 1"}
	}
	if c.BatchSize < 1 {
		return &ConfigError{Reason: "BatchSize must be >= 1"}
	}
	if c.Capacity < 1 {
		return &ConfigError{Reason: "Capacity must be >= 1"}
	}
	if c.Sorted && !hasWriter {
		return &ConfigError{Reason: "Sorted requires a Writer"}
	}
	return nil
}
