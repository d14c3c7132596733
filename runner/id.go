package runner

import "github.com/google/uuid"

// newRunID returns a fresh correlation id for one Run call, so that log
// lines and errors from concurrent runs (of this Runner or of others sharing
// a process) can be told apart in a shared stream.
func newRunID() string {
	return uuid.NewString()
}
