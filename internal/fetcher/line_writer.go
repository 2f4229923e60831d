package fetcher

import (
	"bytes"
	"io"
)

// LineWriter splits everything written to it into lines and hands each
// non-empty line to a callback.
type LineWriter struct {
	buffer   bytes.Buffer
	callback func(string)
}

var _ io.Writer = &LineWriter{}

// NewLineWriter returns a LineWriter calling callback for every line.
func NewLineWriter(callback func(string)) *LineWriter {
	return &LineWriter{callback: callback}
}

// Write buffers bytes until a newline or carriage return is found, then
// flushes the buffered line to the callback.
func (w *LineWriter) Write(p []byte) (n int, err error) {
	for i, b := range p {
		if b == '\n' || b == '\r' {
			w.flush()
		} else {
			w.buffer.WriteByte(b)
		}
		n = i + 1
	}
	return
}

// Close flushes a trailing line without terminator.
func (w *LineWriter) Close() error {
	w.flush()
	return nil
}

func (w *LineWriter) flush() {
	if w.buffer.Len() > 0 {
		w.callback(w.buffer.String())
	}
	w.buffer.Reset()
}
