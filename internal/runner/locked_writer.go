package runner

import (
	"io"
	"sync"
)

// lockedWriter serializes writes to an underlying writer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Fd exposes the wrapped file descriptor so TTY detection still works.
func (l *lockedWriter) Fd() uintptr {
	if fder, ok := l.w.(interface{ Fd() uintptr }); ok {
		return fder.Fd()
	}
	return ^uintptr(0)
}

// wrapVerboseWriter returns a concurrency-safe writer when workers > 1.
func wrapVerboseWriter(workers int, w io.Writer) io.Writer {
	if workers <= 1 || w == nil {
		return w
	}
	if _, ok := w.(*lockedWriter); ok {
		return w
	}
	return &lockedWriter{w: w}
}
