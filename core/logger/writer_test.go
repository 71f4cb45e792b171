package logger

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestAsyncWriterFansOut(t *testing.T) {
	var a, b bytes.Buffer
	w := newAsyncWriter([]io.Writer{&a, nil, &b}, 16)
	for _, line := range []string{"one\n", "two\n"} {
		if err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if a.String() != "one\ntwo\n" || b.String() != a.String() {
		t.Fatalf("sinks = %q, %q", a.String(), b.String())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestAsyncWriterKeepsGoingAfterSinkError(t *testing.T) {
	var ok bytes.Buffer
	w := newAsyncWriter([]io.Writer{failingWriter{}, &ok}, 16)
	_ = w.Write([]byte("line\n"))
	err := w.Close()
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("close err = %v", err)
	}
	if ok.String() != "line\n" {
		t.Fatalf("healthy sink got %q", ok.String())
	}
}

func TestAsyncWriterAfterClose(t *testing.T) {
	w := newAsyncWriter([]io.Writer{io.Discard}, 0)
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := w.Write([]byte("late")); !errors.Is(err, errWriterClosed) {
		t.Fatalf("write after close = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
}
