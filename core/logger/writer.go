package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

var errWriterClosed = errors.New("logger: writer closed")

const defaultQueueSize = 256

// asyncWriter fans log lines out to every sink from a single goroutine.
// A failing sink does not stop delivery to the others; the first error is
// kept and reported by Flush and Close.
type asyncWriter struct {
	queue    chan []byte
	flushReq chan chan error
	done     chan struct{}

	closeMu sync.RWMutex
	closed  bool

	sinks    []*bufio.Writer
	firstErr atomic.Pointer[error]
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	aw := &asyncWriter{
		queue:    make(chan []byte, defaultQueueSize),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
	}
	for _, w := range writers {
		if w != nil {
			aw.sinks = append(aw.sinks, bufio.NewWriterSize(w, bufSize))
		}
	}
	go aw.loop()
	return aw
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case data, ok := <-w.queue:
			if !ok {
				w.record(w.flushSinks())
				return
			}
			w.record(w.writeSinks(data))
		case ack := <-w.flushReq:
			ack <- w.flushSinks()
		}
	}
}

// Write copies p and queues it. It blocks while the queue is full so no line
// is dropped, and fails once the writer is closed.
func (w *asyncWriter) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	data := append([]byte(nil), p...)

	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.queue <- data
	return nil
}

// Flush waits until everything queued so far reached the sinks.
func (w *asyncWriter) Flush() error {
	w.closeMu.RLock()
	if w.closed {
		w.closeMu.RUnlock()
		return w.err()
	}
	ack := make(chan error, 1)
	w.flushReq <- ack
	w.closeMu.RUnlock()
	if err := <-ack; err != nil {
		return err
	}
	return w.err()
}

// Close drains the queue. Calling it again is a no-op.
func (w *asyncWriter) Close() error {
	w.closeMu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.closeMu.Unlock()
	<-w.done
	return w.err()
}

func (w *asyncWriter) writeSinks(p []byte) error {
	var errs []error
	for _, sink := range w.sinks {
		if _, err := sink.Write(p); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) flushSinks() error {
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) record(err error) {
	if err != nil {
		w.firstErr.CompareAndSwap(nil, &err)
	}
}

func (w *asyncWriter) err() error {
	if p := w.firstErr.Load(); p != nil {
		return *p
	}
	return nil
}
