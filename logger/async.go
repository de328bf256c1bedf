package logger

import (
	"context"
	"io"
	"sync/atomic"
)

// DefaultBacklog is the number of formatted lines an AsyncWriter holds before it starts dropping.
const DefaultBacklog = 256

// AsyncWriter decouples log producers from the underlying sink. Write never blocks: a line
// that does not fit in the backlog is counted and discarded. Run drains the backlog and is
// meant to be the only goroutine touching the sink.
type AsyncWriter struct {
	sink    io.Writer
	lines   chan []byte
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewAsyncWriter creates a writer in front of sink with room for backlog lines.
func NewAsyncWriter(sink io.Writer, backlog int) *AsyncWriter {
	if backlog < 1 {
		backlog = DefaultBacklog
	}
	return &AsyncWriter{
		sink:  sink,
		lines: make(chan []byte, backlog),
	}
}

// Write implements io.Writer. p is copied since logrus reuses its buffers.
func (w *AsyncWriter) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)

	select {
	case w.lines <- line:
	default:
		w.dropped.Add(1)
	}
	return len(p), nil
}

// Dropped reports how many lines were discarded because the backlog was full.
func (w *AsyncWriter) Dropped() uint64 {
	return w.dropped.Load()
}

// WriteErrors reports how many lines the sink failed to write.
func (w *AsyncWriter) WriteErrors() uint64 {
	return w.failed.Load()
}

// Run copies queued lines to the sink until ctx is cancelled, then flushes what is left.
func (w *AsyncWriter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return nil
		case line := <-w.lines:
			w.write(line)
		}
	}
}

func (w *AsyncWriter) flush() {
	for {
		select {
		case line := <-w.lines:
			w.write(line)
		default:
			return
		}
	}
}

// write cannot report a failure through the logger it serves, so failures are only counted.
func (w *AsyncWriter) write(line []byte) {
	if _, err := w.sink.Write(line); err != nil {
		w.failed.Add(1)
	}
}
