package engine

import (
	"sync/atomic"
	"time"
)

// Clock is the time source every deadline is evaluated against.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Sequencer is the monotonic logical clock that orders journal records.
//
// Every invocation and completion is stamped with a strictly increasing seq
// from this sequencer. Wall time (Clock) is an input to operations; seq is
// the only ordering key.
//
// Thread-safety: Sequencer is safe for concurrent use (atomic operations).
// The engine's single-writer lock means only one goroutine typically calls
// Next().
type Sequencer struct {
	seq atomic.Int64
}

// NewSequencer creates a sequencer starting at 0.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// NewSequencerAt creates a sequencer starting at a specific position.
// Used to resume after the highest seq already in the journal.
func NewSequencerAt(start int64) *Sequencer {
	s := &Sequencer{}
	s.seq.Store(start)
	return s
}

// Next returns the next sequence number.
// Calls are linearizable - each call returns a unique, increasing value.
func (s *Sequencer) Next() int64 {
	return s.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (s *Sequencer) Current() int64 {
	return s.seq.Load()
}
