package flow

import "sync/atomic"

// PulseCounter counts edges for exactly one channel.
//
// RegisterPulse is called from the edge-callback goroutine while the window
// timer runs elsewhere. Reset must only be called between windows.
type PulseCounter struct {
	n atomic.Uint64
}

// RegisterPulse records one qualifying edge.
func (c *PulseCounter) RegisterPulse() {
	c.n.Add(1)
}

// Reset sets the count to zero.
func (c *PulseCounter) Reset() {
	c.n.Store(0)
}

// Value returns the current count.
func (c *PulseCounter) Value() uint64 {
	return c.n.Load()
}
