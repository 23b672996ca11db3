// Package session drives interactive management shells: it opens one session per
// target, sends a command plan line by line and always closes the session afterwards.
package session

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"sync"
)

// Channel is a bidirectional line-oriented channel to one remote shell
type Channel interface {
	// Send writes one command line
	Send(ctx context.Context, line string) error

	// Expect blocks until the shell output matches re and returns the output
	// consumed up to the end of the match
	Expect(ctx context.Context, re *regexp.Regexp) (string, error)

	// Close releases the channel and the process or connection behind it
	Close() error
}

// Transport opens channels to named targets (routers or hosts)
type Transport interface {
	Open(ctx context.Context, target string) (Channel, error)
}

// maxBufferedOutput bounds the shell output kept for prompt matching
const maxBufferedOutput = 64 * 1024

// outputBuffer collects shell output and wakes waiters when more arrives
type outputBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	changed chan struct{}
	closed  bool
	err     error
}

func newOutputBuffer() *outputBuffer {
	return &outputBuffer{changed: make(chan struct{})}
}

// Write implements io.Writer
func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf.Write(p)
	if over := b.buf.Len() - maxBufferedOutput; over > 0 {
		b.buf.Next(over)
	}
	b.notifyLocked()
	return len(p), nil
}

// closeWithError marks the stream finished; pending and future waits fail with err
func (b *outputBuffer) closeWithError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	if err == nil {
		err = io.EOF
	}
	b.err = err
	b.notifyLocked()
}

func (b *outputBuffer) notifyLocked() {
	close(b.changed)
	b.changed = make(chan struct{})
}

// waitFor blocks until the buffered output matches re, then consumes it
func (b *outputBuffer) waitFor(ctx context.Context, re *regexp.Regexp) (string, error) {
	for {
		b.mu.Lock()
		data := b.buf.Bytes()
		if loc := re.FindIndex(data); loc != nil {
			out := string(data[:loc[1]])
			b.buf.Next(loc[1])
			b.mu.Unlock()
			return out, nil
		}
		if b.closed {
			err := b.err
			b.mu.Unlock()
			return "", err
		}
		changed := b.changed
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-changed:
		}
	}
}

// writeContext writes to w in a goroutine so a blocked write honours ctx.
// A write abandoned on cancellation is unblocked when the channel is closed.
func writeContext(ctx context.Context, w io.Writer, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := w.Write(data)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
