package engine

import (
	"sync"
	"time"
)

// Coordinator serializes work per device and owns the deferred-action
// timers.
//
// Every mutation of a device funnels through With for that device's
// serial, which is the only concurrency guarantee the device model
// itself provides. ScheduleOnce keys timers by serial and kind so a
// newer deferral replaces an older pending one instead of stacking.
type Coordinator struct {
	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewCoordinator creates a coordinator with no pending work.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		locks:  make(map[string]*sync.Mutex),
		timers: make(map[string]*time.Timer),
	}
}

// With runs fn while holding the per-serial lock.
func (c *Coordinator) With(serial string, fn func()) {
	c.mu.Lock()
	lock, ok := c.locks[serial]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[serial] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	fn()
}

// ScheduleOnce arms a deferred action keyed by serial and kind. An
// already-pending action with the same key is cancelled and replaced;
// the device only needs the latest deferral.
func (c *Coordinator) ScheduleOnce(serial, kind string, delay time.Duration, fn func()) {
	key := serial + "/" + kind

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if timer, ok := c.timers[key]; ok {
		timer.Stop()
	}
	c.timers[key] = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		delete(c.timers, key)
		c.mu.Unlock()
		fn()
	})
}

// Cancel stops every pending deferred action for one device.
func (c *Coordinator) Cancel(serial string) {
	prefix := serial + "/"

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, timer := range c.timers {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			timer.Stop()
			delete(c.timers, key)
		}
	}
}

// Close stops all pending timers and rejects new deferrals. Per-serial
// locks stay usable so in-flight work can finish.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for key, timer := range c.timers {
		timer.Stop()
		delete(c.timers, key)
	}
}

// PendingTimers returns the number of armed deferred actions.
func (c *Coordinator) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
