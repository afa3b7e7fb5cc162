// Package global holds the process-wide monotonic counters that back
// sequence numbering, page numbering, and the durability watermark.
//
// These are process-scoped, not per-Logger: two Logger[T] instances in
// the same process share one sequence/page/ack space. That mirrors the
// original picolog design and is documented as a known limitation rather
// than hidden behind a per-instance allocator.
package global

import "sync/atomic"

var (
	sequenceID atomic.Uint64
	ackNumber  atomic.Uint64
	pageID     atomic.Uint64
)

// NextSeqID returns a fresh, monotonically increasing sequence number.
func NextSeqID() uint64 {
	return sequenceID.Add(1) - 1
}

// NextPageID returns a fresh, monotonically increasing page number.
func NextPageID() uint64 {
	return pageID.Add(1) - 1
}

// AckNumber returns the highest sequence number known to be durable.
func AckNumber() uint64 {
	return ackNumber.Load()
}

// SetAckNumber advances the durability watermark to val, unless a
// higher watermark has already been published (out-of-order completions
// must never move the watermark backwards).
func SetAckNumber(val uint64) {
	for {
		cur := ackNumber.Load()
		if val <= cur {
			return
		}
		if ackNumber.CompareAndSwap(cur, val) {
			return
		}
	}
}
