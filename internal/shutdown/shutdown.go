// Package shutdown provides the process-wide cooperative cancellation signal
// shared by every conversion task in a batch.
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spiffcs/morph/internal/log"
)

// Coordinator is a monotonic cancellation flag: once signaled it stays set
// for the rest of the process. Blocking waits observe it cooperatively;
// an optional hook (closing the shared remote client) runs exactly once to
// unblock network calls that cannot check the flag themselves.
type Coordinator struct {
	once sync.Once
	done chan struct{}

	mu   sync.Mutex
	hook func()
}

// New creates an unsignaled Coordinator.
func New() *Coordinator {
	return &Coordinator{done: make(chan struct{})}
}

// OnSignal registers fn to run when Signal fires. At most one hook is held;
// registering again replaces it. The hook runs at most once.
func (c *Coordinator) OnSignal(fn func()) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Signal sets the cancellation flag and runs the registered hook.
// It is safe to call from any goroutine and from multiple signal handlers;
// every call after the first is a no-op.
func (c *Coordinator) Signal() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		hook := c.hook
		c.mu.Unlock()
		if hook != nil {
			hook()
		}
	})
}

// IsSet reports whether the coordinator has been signaled.
func (c *Coordinator) IsSet() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the coordinator is signaled or the timeout elapses.
// It returns true iff the signal arrived first (or was already set).
// A non-positive timeout is an immediate IsSet check.
func (c *Coordinator) Wait(timeout time.Duration) bool {
	if timeout <= 0 {
		return c.IsSet()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.done:
		return true
	case <-timer.C:
		return false
	}
}

// Done returns a channel closed when the coordinator is signaled.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Notify wires SIGINT and SIGTERM to Signal. The returned release func
// unregisters the handler and reaps the forwarding goroutine.
func (c *Coordinator) Notify() func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range ch {
			log.Debug("interrupt received", "signal", sig.String())
			c.Signal()
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}
