package constants

import "time"

// Default configuration constants.
const (
	// DefaultCapacity is the default number of slots in the producer/worker
	// handoff ring.
	DefaultCapacity = 1024

	// DefaultBlockSize is used when the backing filesystem does not
	// report a block size via statfs.
	DefaultBlockSize = 4096

	// DefaultPageCount is the default number of pages held by the page
	// manager's ring. A deep ring means a page can still be in flight
	// long after it stopped being active without waitIfNextPagePending
	// blocking the next rotation, which is what sustains high throughput
	// under concurrent flushes.
	DefaultPageCount = 256

	// DefaultRingEntries is the default number of submission/completion
	// queue entries requested from the kernel.
	DefaultRingEntries = 256

	// MaxRecordSize is the largest payload length the 16-bit EntryHeader
	// length field can represent.
	MaxRecordSize = 1<<16 - 1
)

// Timing constants for the flush/poll loop.
//
// The worker wakes on whichever comes first: a new record arriving on
// the handoff ring, or the poll timer. FlushInterval bounds staleness —
// a page with data in it is flushed even if it never fills — and
// PollInterval bounds how long the worker can go without checking for
// completions when the ring is otherwise idle.
const (
	// DefaultFlushInterval is the default maximum time a non-empty page
	// is held before being flushed.
	DefaultFlushInterval = 5 * time.Millisecond

	// DefaultPollInterval is the default upper bound on how long the
	// worker blocks waiting for the next record before re-checking the
	// flush deadline and draining completions.
	DefaultPollInterval = 1 * time.Millisecond
)
