//go:build !linux

package uring

import "fmt"

// New is unavailable outside Linux; picolog's direct-I/O write path is
// Linux-only (same scope restriction as the original io_uring backend).
func New(cfg Config) (Ring, error) {
	return nil, fmt.Errorf("uring: real io_uring ring requires linux")
}
