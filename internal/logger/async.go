package logger

import (
	"io"
	"sync"
)

// asyncWriter hands console lines to a goroutine so a stalled terminal never
// blocks the service. Lines that do not fit in the buffer are dropped.
type asyncWriter struct {
	lines chan []byte
	out   io.Writer
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func newAsyncWriter(out io.Writer, size int) *asyncWriter {
	aw := &asyncWriter{
		lines: make(chan []byte, size),
		out:   out,
		done:  make(chan struct{}),
	}
	go aw.run()
	return aw
}

// Write never blocks and never fails.
func (aw *asyncWriter) Write(p []byte) (int, error) {
	aw.mu.RLock()
	defer aw.mu.RUnlock()
	if aw.closed {
		return len(p), nil
	}

	line := append([]byte(nil), p...)
	select {
	case aw.lines <- line:
	default:
	}
	return len(p), nil
}

func (aw *asyncWriter) run() {
	defer close(aw.done)
	for line := range aw.lines {
		_, _ = aw.out.Write(line)
	}
}

// Close flushes buffered lines and stops the goroutine.
func (aw *asyncWriter) Close() {
	aw.once.Do(func() {
		aw.mu.Lock()
		aw.closed = true
		close(aw.lines)
		aw.mu.Unlock()
		<-aw.done
	})
}
