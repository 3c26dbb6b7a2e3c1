// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cancel

import "sync"

// Callbacks is an ordered multicast list of zero argument listeners.
// It fires at most once. The zero value is ready to use.
type Callbacks struct {
	mu        sync.Mutex
	fired     bool
	listeners []func()
}

// Add registers f to be called when c fires. If c has already fired,
// f is called immediately on the calling goroutine.
func (c *Callbacks) Add(f func()) {
	c.mu.Lock()
	if c.fired {
		c.mu.Unlock()
		f()
		return
	}
	c.listeners = append(c.listeners, f)
	c.mu.Unlock()
}

// Call invokes every registered listener synchronously in registration
// order. Only the first call has any effect.
func (c *Callbacks) Call() {
	c.mu.Lock()
	if c.fired {
		c.mu.Unlock()
		return
	}
	c.fired = true
	listeners := c.listeners
	c.listeners = nil
	c.mu.Unlock()

	for _, f := range listeners {
		f()
	}
}

// Fired reports whether Call has been invoked.
func (c *Callbacks) Fired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}

// Len returns the number of listeners still waiting for c to fire.
func (c *Callbacks) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}
