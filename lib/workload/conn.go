// Package workload simulates clients exercising a resource pool. It
// provides a fake connection type, a pool factory that dials them, and
// a runner that drives a fixed number of workers through
// acquire/use/release cycles.
package workload

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"
)

// Conn is a fake connection handed out by the pool. It records its
// activity as text lines on a shared writer instead of talking to a
// real backend.
type Conn struct {
	id  uint64
	out io.Writer
}

// NewConn creates a fake connection writing its activity to out.
// A nil out discards all output.
func NewConn(id uint64, out io.Writer) *Conn {
	if out == nil {
		out = io.Discard
	}
	return &Conn{id: id, out: out}
}

// ID returns the creation sequence number of this connection.
func (c *Conn) ID() uint64 { return c.id }

// Exec simulates running a statement that takes d to complete, then
// records one line of activity. The simulated work honors ctx.
func (c *Conn) Exec(ctx context.Context, stmt string, d time.Duration) error {
	if err := sleep(ctx, d); err != nil {
		return err
	}

	// One buffered write per statement keeps lines whole on shared sinks.
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, "conn %d: %s\n", c.id, stmt)
	_, err := c.out.Write(buf.B)
	return err
}

// SyncWriter serializes writes from concurrent workers onto one sink.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSyncWriter wraps w so concurrent Write calls do not interleave.
// A nil w discards all output.
func NewSyncWriter(w io.Writer) *SyncWriter {
	if w == nil {
		w = io.Discard
	}
	return &SyncWriter{w: w}
}

func (sw *SyncWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(p)
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
