package txn

import (
	"sync"
	"sync/atomic"
)

// ActiveCounter tracks the number of in-flight transactions and drives
// graceful shutdown (spec.md §5, §8 property 10): once TriggerShutdown
// has been called, the Done channel closes exactly once, the moment the
// active count reaches zero. Dec and TriggerShutdown can both observe
// their own termination condition true at the same time from different
// goroutines, so the close itself is guarded by doneOnce rather than by
// the triggered/count checks alone — those only decide whether to try,
// never whether it is safe to actually close.
type ActiveCounter struct {
	count     int64
	triggered int32
	done      chan struct{}
	doneOnce  sync.Once
}

func NewActiveCounter() *ActiveCounter {
	return &ActiveCounter{done: make(chan struct{})}
}

func (c *ActiveCounter) Inc() { atomic.AddInt64(&c.count, 1) }

func (c *ActiveCounter) Dec() {
	n := atomic.AddInt64(&c.count, -1)
	if n == 0 && atomic.LoadInt32(&c.triggered) == 1 {
		c.signalDone()
	}
}

func (c *ActiveCounter) Count() int64 { return atomic.LoadInt64(&c.count) }

// TriggerShutdown marks the counter as draining. If no transaction is
// currently active, Done fires immediately.
func (c *ActiveCounter) TriggerShutdown() {
	if !atomic.CompareAndSwapInt32(&c.triggered, 0, 1) {
		return
	}
	if atomic.LoadInt64(&c.count) == 0 {
		c.signalDone()
	}
}

// Done returns a channel closed exactly once, when the active count
// reaches zero after TriggerShutdown.
func (c *ActiveCounter) Done() <-chan struct{} { return c.done }

func (c *ActiveCounter) signalDone() {
	c.doneOnce.Do(func() { close(c.done) })
}
