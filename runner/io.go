package runner

import "context"

// Reader is the upstream collaborator a Runner pulls batches from. A Runner
// calls Open and Pre exactly once, before the first Read; Post and Close
// exactly once, after the last Read (successful or not). If Open or Pre of
// the Reader or Writer fails, Run returns without calling Post or Close.
//
// Read should return an empty slice (or a nil slice with a nil error) to
// signal end-of-stream; a short, non-empty result is a legal ordinary batch,
// not end-of-stream — the reader loop will call Read again afterward.
// Returning an error ends the reader loop; the pipeline still drains the
// workers and writer that are already running.
type Reader[I any] interface {
	Open(ctx context.Context) error
	Pre(ctx context.Context) error
	Read(ctx context.Context, max int) ([]I, error)
	Post(ctx context.Context) error
	Close(ctx context.Context) error
}

// Writer is the downstream collaborator a Runner hands result batches to. A
// Runner calls Open and Pre exactly once, before the first Write; Post and
// Close exactly once, after the writer has consumed the terminal sentinel.
type Writer[O any] interface {
	Open(ctx context.Context) error
	Pre(ctx context.Context) error
	Write(ctx context.Context, items []O) error
	Post(ctx context.Context) error
	Close(ctx context.Context) error
}
