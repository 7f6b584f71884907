// Package file implements the line-delimited output transport of the OLT
// collector: every formatted report envelope or trap event is written as one
// JSON line to an io.Writer, typically os.Stdout or a RotatingFile.
//
// Pipeline position:
//
//	format/json → transport/file
package file

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// Transport interface
// ─────────────────────────────────────────────────────────────────────────────

// Transport delivers one pre-formatted message per Send. Close releases any
// writers the transport owns.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config controls WriterTransport behaviour.
type Config struct {
	// Writer is the destination. nil defaults to os.Stdout.
	Writer io.Writer

	// Newline appended after each message. Default "\n".
	Newline string
}

// ─────────────────────────────────────────────────────────────────────────────
// WriterTransport
// ─────────────────────────────────────────────────────────────────────────────

// WriterTransport writes each message followed by a newline. Concurrent
// Sends never interleave.
type WriterTransport struct {
	mu     sync.Mutex
	w      io.Writer
	nl     []byte
	closer io.Closer
	logger *slog.Logger
}

// New constructs a WriterTransport. When cfg.Writer is an io.Closer other
// than the standard streams (a RotatingFile, say), Close closes it.
func New(cfg Config, logger *slog.Logger) *WriterTransport {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	nl := cfg.Newline
	if nl == "" {
		nl = "\n"
	}
	return &WriterTransport{
		w:      w,
		nl:     []byte(nl),
		closer: ownedCloser(w),
		logger: logger,
	}
}

// Send writes data and the newline under the transport mutex.
func (t *WriterTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeLine(t.w, data, t.nl, "report", t.logger)
}

// Close closes the underlying writer if the transport owns it.
func (t *WriterTransport) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Shared helpers
// ─────────────────────────────────────────────────────────────────────────────

func writeLine(w io.Writer, data, nl []byte, kind string, logger *slog.Logger) error {
	if _, err := w.Write(data); err != nil {
		logger.Error("transport/file: write failed", "kind", kind, "error", err.Error(), "bytes", len(data))
		return fmt.Errorf("transport/file: %s write: %w", kind, err)
	}
	if _, err := w.Write(nl); err != nil {
		logger.Error("transport/file: newline write failed", "kind", kind, "error", err.Error())
		return fmt.Errorf("transport/file: %s write newline: %w", kind, err)
	}
	logger.Debug("transport/file: sent message", "kind", kind, "bytes", len(data))
	return nil
}

// ownedCloser returns w as an io.Closer unless it is one of the process's
// standard streams.
func ownedCloser(w io.Writer) io.Closer {
	if w == os.Stdout || w == os.Stderr {
		return nil
	}
	c, _ := w.(io.Closer)
	return c
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
