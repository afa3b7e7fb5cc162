package picolog

import "sync/atomic"

// MockClock is a fake clock.Clock for deterministic tests: NowNanos
// returns a value that only advances when Advance is called.
type MockClock struct {
	nanos atomic.Int64
}

// NewMockClock creates a MockClock starting at startNanos.
func NewMockClock(startNanos int64) *MockClock {
	c := &MockClock{}
	c.nanos.Store(startNanos)
	return c
}

// NowNanos implements clock.Clock.
func (c *MockClock) NowNanos() int64 {
	return c.nanos.Load()
}

// Advance moves the clock forward by delta nanoseconds and returns the
// new value.
func (c *MockClock) Advance(delta int64) int64 {
	return c.nanos.Add(delta)
}

// Set pins the clock to nanos.
func (c *MockClock) Set(nanos int64) {
	c.nanos.Store(nanos)
}
