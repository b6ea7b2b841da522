// Copyright (c) 2026 Andrey Kriulin
// Licensed under the MIT License.
// See the LICENSE file in the project root for full license text.

package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
)

// window is a named byte buffer owned by one rank and readable by all.
type window struct {
	mu  sync.RWMutex
	buf []byte
}

// Expose publishes a copy of buf as the window name of the calling rank and
// waits until every rank has exposed its own buffer under the same name.
// Exposing a name again replaces the buffer.
func (c *Comm) Expose(ctx context.Context, name string, buf []byte) error {
	c.w.mu.Lock()
	win, ok := c.w.windows[c.rank][name]
	if !ok {
		win = &window{}
		c.w.windows[c.rank][name] = win
	}
	win.mu.Lock()
	c.w.mu.Unlock()
	win.buf = append(win.buf[:0], buf...)
	win.mu.Unlock()

	c.w.logger.Debug("window exposed")
	return c.Barrier(ctx)
}

// Get reads n bytes at off from the window name of rank owner.
func (c *Comm) Get(ctx context.Context, name string, owner int, off, n int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if owner < 0 || owner >= c.w.size {
		return nil, fmt.Errorf("%w: window owner %d", ErrRank, owner)
	}
	c.w.mu.Lock()
	win, ok := c.w.windows[owner][name]
	c.w.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q on rank %d", ErrNoWindow, name, owner)
	}

	win.mu.RLock()
	defer win.mu.RUnlock()
	if off < 0 || n < 0 || off+n > int64(len(win.buf)) {
		return nil, fmt.Errorf("%w: [%d, %d) of %d bytes in %q on rank %d",
			ErrWindow, off, off+n, len(win.buf), name, owner)
	}
	out := make([]byte, n)
	copy(out, win.buf[off:off+n])
	return out, nil
}

// WindowSize returns the length of the window name of rank owner.
func (c *Comm) WindowSize(name string, owner int) (int64, error) {
	if owner < 0 || owner >= c.w.size {
		return 0, fmt.Errorf("%w: window owner %d", ErrRank, owner)
	}
	c.w.mu.Lock()
	win, ok := c.w.windows[owner][name]
	c.w.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %q on rank %d", ErrNoWindow, name, owner)
	}
	win.mu.RLock()
	defer win.mu.RUnlock()
	return int64(len(win.buf)), nil
}

func encodeInt64(v int64) []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(v))
}

func decodeInt64(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b))
}
