package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCallLimitExceeded is returned when an agent turn needs more model calls
// than its tool recursion limit allows.
var ErrCallLimitExceeded = errors.New("model call limit exceeded")

// CallLimiter enforces a maximum number of model calls per agent turn.
type CallLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCallLimiter creates a new limiter. If max <= 0, unlimited calls are allowed.
func NewCallLimiter(max int) *CallLimiter {
	return &CallLimiter{max: max}
}

// Increment increases the call counter and returns an error if the limit is exceeded.
func (cl *CallLimiter) Increment() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cl.count++
	if cl.max > 0 && cl.count > cl.max {
		return fmt.Errorf("%w: %d", ErrCallLimitExceeded, cl.max)
	}

	return nil
}

// Count returns the current number of calls made.
func (cl *CallLimiter) Count() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	return cl.count
}

// Remaining returns how many calls are left before hitting the limit, or -1 when unlimited.
func (cl *CallLimiter) Remaining() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.max <= 0 {
		return -1
	}

	return cl.max - cl.count
}
