// Package telemetry bridges phase spans and tool output to the renderer.
package telemetry

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultSizeLimit is the buffered output size that forces a flush.
	DefaultSizeLimit = 4096
	// DefaultTimeLimit is how long output may wait before it is flushed.
	DefaultTimeLimit = 50 * time.Millisecond
)

// ErrBatcherClosed is returned by Write after Close.
var ErrBatcherClosed = errors.New("output batcher is closed")

// OutputBatcher coalesces the small writes of a build tool into larger chunks.
//
// Flushes happen when the buffer reaches its size limit or when the oldest
// buffered byte is older than the time limit. A size flush stops at the last
// newline when there is one, so compiler lines are not split across chunks.
// The timer only runs while output is pending.
type OutputBatcher struct {
	sizeLimit int
	timeLimit time.Duration
	onFlush   func([]byte)

	mu     sync.Mutex
	buffer bytes.Buffer
	timer  *time.Timer
	closed bool
}

// NewOutputBatcher returns an OutputBatcher that hands chunks to onFlush.
// Non-positive limits select the defaults.
func NewOutputBatcher(sizeLimit int, timeLimit time.Duration, onFlush func([]byte)) *OutputBatcher {
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	return &OutputBatcher{
		sizeLimit: sizeLimit,
		timeLimit: timeLimit,
		onFlush:   onFlush,
	}
}

// Write buffers p.
func (b *OutputBatcher) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrBatcherClosed
	}

	n, _ := b.buffer.Write(p)
	for b.buffer.Len() >= b.sizeLimit {
		b.emitLocked(cut(b.buffer.Bytes(), b.sizeLimit))
	}
	if b.buffer.Len() > 0 && b.timer == nil {
		b.timer = time.AfterFunc(b.timeLimit, b.Flush)
	}
	return n, nil
}

// Flush hands all buffered output to the callback.
func (b *OutputBatcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Close flushes the remaining output. Later writes fail with ErrBatcherClosed.
func (b *OutputBatcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.flushLocked()
	return nil
}

// flushLocked must be called with mu held.
func (b *OutputBatcher) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.emitLocked(b.buffer.Len())
}

// emitLocked passes the first n buffered bytes to the callback.
// The callback runs under mu so chunks keep their order.
func (b *OutputBatcher) emitLocked(n int) {
	if n == 0 {
		return
	}
	chunk := make([]byte, n)
	copy(chunk, b.buffer.Next(n))
	if b.onFlush != nil {
		b.onFlush(chunk)
	}
}

// cut returns the length of the chunk to emit from buf: up to and including
// the last newline within limit, or limit itself for a single long line.
func cut(buf []byte, limit int) int {
	if i := bytes.LastIndexByte(buf[:limit], '\n'); i >= 0 {
		return i + 1
	}
	return limit
}
