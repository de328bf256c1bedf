package main

import (
	"bytes"
	"io"
	"sync"
)

// lineWriter serializes writes to a terminal and, when the terminal is in raw mode,
// turns "\n" into "\r\n".
type lineWriter struct {
	mu   sync.Mutex
	out  io.Writer
	crlf bool
}

func newLineWriter(out io.Writer) *lineWriter {
	return &lineWriter{out: out}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.crlf {
		return w.out.Write(p)
	}
	if _, err := w.out.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
