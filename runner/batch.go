package runner

// Batch carries an ordered group of items handed between pipeline stages as a
// single unit, plus the sequence position the reader assigned it.
//
// Position is advisory: it increases strictly as the reader produces
// batches, but nothing downstream may assume the writer sees batches in
// position order, since workers race to drain the read queue.
//
// The zero value of Batch is an ordinary empty batch, not a sentinel. The
// only way to construct a sentinel is poisonPill; IsSentinel is the only
// sanctioned way to test for one. Do not treat an empty Items() as an
// end-of-stream marker — real empty batches are legal mid-stream (for
// example, the input batches a Runner without a Reader hands to Task.Apply).
type Batch[T any] struct {
	items    []T
	position int64
	sentinel bool
}

// NewBatch creates an ordinary (non-sentinel) batch at the given position.
func NewBatch[T any](items []T, position int64) Batch[T] {
	return Batch[T]{items: items, position: position}
}

// poisonPill returns the distinguished sentinel batch for T. Every call
// produces a value with sentinel set, which is all IsSentinel checks for;
// there is no meaningful identity to compare beyond that flag once generics
// are in play, so "referential identity" in the source language becomes "the
// tagged variant" here, per the design notes.
func poisonPill[T any]() Batch[T] {
	return Batch[T]{position: -1, sentinel: true}
}

// Items returns the batch's payload. It is empty for the sentinel batch.
func (b Batch[T]) Items() []T {
	return b.items
}

// Position returns the batch's advisory sequence position, or -1 for the
// sentinel batch.
func (b Batch[T]) Position() int64 {
	return b.position
}

// IsSentinel reports whether b is the poison pill marking end-of-stream on
// its queue.
func (b Batch[T]) IsSentinel() bool {
	return b.sentinel
}

// Len is a convenience for len(b.Items()).
func (b Batch[T]) Len() int {
	return len(b.items)
}
