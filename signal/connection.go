package signal

import (
	"runtime"
	"sync/atomic"
)

// Connection is the handle returned by Connect. Its only capability is
// disconnecting the slot. A Connection that is dropped without being
// cancelled is disconnected by the garbage collector, so keep it for as long
// as the slot should stay connected.
type Connection struct {
	disconnect func()
	connected  *atomic.Bool
	cleanup    runtime.Cleanup
}

// Cancel disconnects the slot. It is idempotent, safe on a nil Connection and
// safe to call from any goroutine, including from inside the slot itself.
func (c *Connection) Cancel() {
	if c == nil || c.disconnect == nil {
		return
	}
	c.cleanup.Stop()
	c.disconnect()
}

// Close cancels the connection. It lets a Connection be used wherever an
// io.Closer is expected.
func (c *Connection) Close() error {
	c.Cancel()
	return nil
}

// Connected reports whether the slot is still connected.
func (c *Connection) Connected() bool {
	if c == nil || c.connected == nil {
		return false
	}
	return c.connected.Load()
}
