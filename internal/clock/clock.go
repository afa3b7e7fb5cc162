// Package clock provides the timestamp collaborator used when stamping
// entry headers, so the worker never reads the wall clock directly and
// tests can inject a deterministic source.
package clock

import "time"

// Clock returns the current time as nanoseconds, the unit entry headers
// are stamped with.
type Clock interface {
	NowNanos() int64
}

// System is the real clock, backed by time.Now.
type System struct{}

func (System) NowNanos() int64 {
	return time.Now().UnixNano()
}
