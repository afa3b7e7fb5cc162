// Package uring provides the kernel async-I/O interface the worker uses
// to submit direct-I/O page writes and harvest their completions. It
// mirrors a plain io_uring submission/completion ring (IORING_OP_WRITE),
// as opposed to the control-plane URING_CMD ring a block-device driver
// would use.
package uring

import (
	"errors"
	"syscall"
)

// ErrRingFull is returned by PrepareWrite when the submission queue has
// no free slot. Callers should Submit to drain it and retry once.
var ErrRingFull = errors.New("uring: submission queue full")

// Result is a single completion queue entry: the user_data the caller
// stamped the submission with, and the kernel's result code (bytes
// written, or a negative errno).
type Result struct {
	UserData uint64
	Res      int32
}

// Err converts a negative Res into an error, or nil on success.
func (r Result) Err() error {
	if r.Res < 0 {
		return syscall.Errno(-r.Res)
	}
	return nil
}

// Ring is the minimal surface the worker needs: prepare a write SQE,
// submit it (optionally blocking for completions), and drain
// completions one at a time.
type Ring interface {
	// Close releases the ring's kernel and mmap resources.
	Close() error

	// PrepareWrite writes a write SQE into the next free submission
	// slot, addressing fd at the given offset with buf as the source.
	// It does not make the entry visible to the kernel — Submit does
	// that. Returns ErrRingFull if the submission queue has no room.
	PrepareWrite(fd int, buf []byte, offset int64, userData uint64) error

	// Submit makes all prepared SQEs visible to the kernel and returns
	// the number accepted.
	Submit() (uint32, error)

	// SubmitAndWait is like Submit but additionally blocks until at
	// least minComplete completions are available.
	SubmitAndWait(minComplete uint32) (uint32, error)

	// PopCompletion returns the oldest unconsumed completion, if any,
	// without blocking.
	PopCompletion() (Result, bool)
}

// Config configures a new Ring.
type Config struct {
	// Entries is the submission/completion queue depth. Rounded up to
	// a power of two by the kernel.
	Entries uint32
}
