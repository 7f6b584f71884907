package file_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/vpbank/olt_collector/transport/file"
)

const reportLine = `{"timestamp":"2026-02-26T10:30:00Z","device":{"name":"olt-01"},"report":{"olt":{},"onu":[]},"metadata":{"poll_status":"success"}}`

func newBuf(t *testing.T) (*bytes.Buffer, *file.WriterTransport) {
	t.Helper()
	var buf bytes.Buffer
	tr := file.New(file.Config{Writer: &buf}, nil)
	return &buf, tr
}

func TestSend_WritesDataAndNewline(t *testing.T) {
	buf, tr := newBuf(t)
	if err := tr.Send([]byte(reportLine)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := buf.String(); got != reportLine+"\n" {
		t.Errorf("output = %q, want %q", got, reportLine+"\n")
	}
}

func TestSend_MultipleMessages(t *testing.T) {
	buf, tr := newBuf(t)
	msgs := []string{`{"a":1}`, `{"b":2}`, `{"c":3}`}
	for _, m := range msgs {
		if err := tr.Send([]byte(m)); err != nil {
			t.Fatalf("Send(%q): %v", m, err)
		}
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	for i, want := range msgs {
		if lines[i] != want {
			t.Errorf("line[%d] = %q, want %q", i, lines[i], want)
		}
	}
}

func TestSend_CustomNewline(t *testing.T) {
	var buf bytes.Buffer
	tr := file.New(file.Config{Writer: &buf, Newline: "\r\n"}, nil)
	_ = tr.Send([]byte(`{"x":1}`))
	if !strings.HasSuffix(buf.String(), "\r\n") {
		t.Errorf("expected CRLF newline, got %q", buf.String())
	}
}

func TestNew_ZeroConfig(t *testing.T) {
	tr := file.New(file.Config{}, nil)
	if tr == nil {
		t.Fatal("expected non-nil transport")
	}
	// The transport does not own os.Stdout.
	if err := tr.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestSend_ConcurrentSafe(t *testing.T) {
	buf, tr := newBuf(t)
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = tr.Send([]byte(reportLine))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != n {
		t.Fatalf("expected %d lines, got %d", n, len(lines))
	}
	for i, l := range lines {
		if l != reportLine {
			t.Fatalf("line %d interleaved: %q", i, l)
		}
	}
}

func TestSend_ErrorOnFailingWriter(t *testing.T) {
	tr := file.New(file.Config{Writer: errWriter{}}, nil)
	err := tr.Send([]byte(`{"x":1}`))
	if !errors.Is(err, errWrite) {
		t.Errorf("Send error = %v, want wrapping %v", err, errWrite)
	}
}

func TestClose_ClosesOwnedRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.jsonl")
	rf, err := file.NewRotatingFile(file.RotateConfig{FilePath: path}, nil)
	if err != nil {
		t.Fatalf("NewRotatingFile: %v", err)
	}
	tr := file.New(file.Config{Writer: rf}, nil)
	if err := tr.Send([]byte(reportLine)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := rf.Write([]byte("late")); !errors.Is(err, os.ErrClosed) {
		t.Errorf("write after Close = %v, want os.ErrClosed", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != reportLine+"\n" {
		t.Errorf("file = %q", data)
	}
}

var errWrite = errors.New("simulated write error")

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errWrite }

var _ file.Transport = (*file.WriterTransport)(nil)
