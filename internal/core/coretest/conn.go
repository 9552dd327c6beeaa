// Package coretest provides an in-memory SignalConnection for tests.
package coretest

import (
	"sync"

	"github.com/dkeye/chatrelay/internal/core"
)

// Conn records frames instead of writing them to a socket.
// A capacity above zero makes TrySend fail with ErrBackpressure once
// that many frames are queued.
type Conn struct {
	mu       sync.Mutex
	frames   []core.Frame
	capacity int
	closed   bool
}

func NewConn(capacity int) *Conn {
	return &Conn{capacity: capacity}
}

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.capacity > 0 && len(c.frames) >= c.capacity {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, append(core.Frame(nil), f...))
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Frames() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.Frame(nil), c.frames...)
}

// Reset drops recorded frames.
func (c *Conn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}
