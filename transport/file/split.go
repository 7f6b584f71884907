package file

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"sync"
)

// SplitConfig controls SplitWriterTransport behaviour.
type SplitConfig struct {
	// ReportWriter receives report envelopes. nil defaults to os.Stdout.
	ReportWriter io.Writer

	// TrapWriter receives trap events. nil defaults to os.Stderr.
	TrapWriter io.Writer

	// Newline appended after each message. Default "\n".
	Newline string
}

// SplitWriterTransport routes each message to one of two writers: trap
// events (recognised by their "trap_oid" key) to TrapWriter, everything else
// to ReportWriter. Each writer has its own lock so a slow report file does
// not hold up trap lines.
type SplitWriterTransport struct {
	reportMu sync.Mutex
	trapMu   sync.Mutex
	reportW  io.Writer
	trapW    io.Writer
	nl       []byte
	closers  []io.Closer
	logger   *slog.Logger
}

// trapMarker is present in every formatted models.TrapEvent and never in a
// report envelope.
var trapMarker = []byte(`"trap_oid"`)

// NewSplit constructs a SplitWriterTransport.
func NewSplit(cfg SplitConfig, logger *slog.Logger) *SplitWriterTransport {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	rw := cfg.ReportWriter
	if rw == nil {
		rw = os.Stdout
	}
	tw := cfg.TrapWriter
	if tw == nil {
		tw = os.Stderr
	}
	nl := cfg.Newline
	if nl == "" {
		nl = "\n"
	}

	st := &SplitWriterTransport{
		reportW: rw,
		trapW:   tw,
		nl:      []byte(nl),
		logger:  logger,
	}
	for _, w := range []io.Writer{rw, tw} {
		if c := ownedCloser(w); c != nil {
			st.closers = append(st.closers, c)
		}
	}
	return st
}

// Send routes data by the trap marker.
func (st *SplitWriterTransport) Send(data []byte) error {
	if bytes.Contains(data, trapMarker) {
		st.trapMu.Lock()
		defer st.trapMu.Unlock()
		return writeLine(st.trapW, data, st.nl, "trap", st.logger)
	}
	st.reportMu.Lock()
	defer st.reportMu.Unlock()
	return writeLine(st.reportW, data, st.nl, "report", st.logger)
}

// Close closes the owned writers and returns the first error.
func (st *SplitWriterTransport) Close() error {
	var firstErr error
	for _, c := range st.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
