package uring

import (
	"sync"
	"syscall"
)

// fakeRing is a synchronous, in-process stand-in for a real kernel
// ring: PrepareWrite performs the pwrite immediately instead of queuing
// an SQE, and the completion it synthesizes is returned by
// PopCompletion exactly as a real completion would be. It lets unit
// tests exercise the full worker flush/completion path without root or
// a kernel io_uring.
type fakeRing struct {
	mu      sync.Mutex
	pending []Result

	// FailNext, if set, makes the next PrepareWrite's completion report
	// this errno instead of performing the write, so tests can exercise
	// the stuck-pending-flag failure path.
	FailNext syscall.Errno
}

// NewFake returns a Ring that performs writes synchronously in-process.
func NewFake() Ring {
	return &fakeRing{}
}

var _ FaultInjector = (*fakeRing)(nil)

// FaultInjector is implemented by Ring test doubles that support
// injecting a completion failure for the next PrepareWrite, so callers
// outside this package can arrange for it via a type assertion on the
// Ring returned by NewFake without needing to name the concrete type.
type FaultInjector interface {
	InjectNextFailure(errno syscall.Errno)
}

// InjectNextFailure arranges for the next PrepareWrite's completion to
// report errno instead of performing the write.
func (f *fakeRing) InjectNextFailure(errno syscall.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailNext = errno
}

func (f *fakeRing) Close() error { return nil }

func (f *fakeRing) PrepareWrite(fd int, buf []byte, offset int64, userData uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailNext != 0 {
		f.pending = append(f.pending, Result{UserData: userData, Res: -int32(f.FailNext)})
		f.FailNext = 0
		return nil
	}

	n, err := syscall.Pwrite(fd, buf, offset)
	if err != nil {
		errno, _ := err.(syscall.Errno)
		if errno == 0 {
			errno = syscall.EIO
		}
		f.pending = append(f.pending, Result{UserData: userData, Res: -int32(errno)})
		return nil
	}
	f.pending = append(f.pending, Result{UserData: userData, Res: int32(n)})
	return nil
}

func (f *fakeRing) Submit() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint32(len(f.pending)), nil
}

func (f *fakeRing) SubmitAndWait(minComplete uint32) (uint32, error) {
	return f.Submit()
}

func (f *fakeRing) PopCompletion() (Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return Result{}, false
	}
	r := f.pending[0]
	f.pending = f.pending[1:]
	return r, true
}
