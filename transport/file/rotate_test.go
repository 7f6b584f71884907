package file_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vpbank/olt_collector/transport/file"
)

func newRotating(t *testing.T, cfg file.RotateConfig) *file.RotatingFile {
	t.Helper()
	rf, err := file.NewRotatingFile(cfg, nil)
	if err != nil {
		t.Fatalf("NewRotatingFile: %v", err)
	}
	t.Cleanup(func() { _ = rf.Close() })
	return rf
}

func TestRotatingFile_BasicWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.jsonl")
	rf := newRotating(t, file.RotateConfig{FilePath: path})

	data := []byte("hello world\n")
	n, err := rf.Write(data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(data) {
		t.Errorf("Write returned %d, want %d", n, len(data))
	}
	content, _ := os.ReadFile(path)
	if string(content) != "hello world\n" {
		t.Errorf("file content = %q", content)
	}
}

func TestRotatingFile_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.jsonl")
	if err := os.WriteFile(path, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rf := newRotating(t, file.RotateConfig{FilePath: path})
	_, _ = rf.Write([]byte("new\n"))

	content, _ := os.ReadFile(path)
	if string(content) != "old\nnew\n" {
		t.Errorf("file content = %q", content)
	}
}

func TestRotatingFile_RotatesOnSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.jsonl")
	rf := newRotating(t, file.RotateConfig{FilePath: path, MaxBytes: 50, MaxBackups: 3})

	first := []byte("first-record-0123456789012345\n") // 30 bytes
	second := []byte("second-record-012345678901234\n")
	for _, msg := range [][]byte{first, second} {
		if _, err := rf.Write(msg); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("backup .1: %v", err)
	}
	if !bytes.Equal(backup, first) {
		t.Errorf(".1 = %q, want %q", backup, first)
	}
	active, _ := os.ReadFile(path)
	if !bytes.Equal(active, second) {
		t.Errorf("active = %q, want %q", active, second)
	}
}

func TestRotatingFile_OversizedRecordNotSplit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.jsonl")
	rf := newRotating(t, file.RotateConfig{FilePath: path, MaxBytes: 10})

	big := bytes.Repeat([]byte("x"), 64)
	if _, err := rf.Write(big); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("an empty file should not be rotated")
	}
	content, _ := os.ReadFile(path)
	if len(content) != 64 {
		t.Errorf("active size = %d, want 64", len(content))
	}
}

func TestRotatingFile_PrunesOldBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.jsonl")
	rf := newRotating(t, file.RotateConfig{FilePath: path, MaxBytes: 20, MaxBackups: 2})

	msg := []byte("12345678901234567890\n") // 21 bytes, one rotation per write
	for i := 0; i < 5; i++ {
		if _, err := rf.Write(msg); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	for _, suffix := range []string{".1", ".2"} {
		if _, err := os.Stat(path + suffix); err != nil {
			t.Errorf("backup %s should exist: %v", suffix, err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("backup .3 should have been pruned")
	}
}

func TestRotatingFile_UnlimitedBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.jsonl")
	rf := newRotating(t, file.RotateConfig{FilePath: path, MaxBytes: 20})

	msg := []byte("12345678901234567890\n")
	for i := 0; i < 4; i++ {
		_, _ = rf.Write(msg)
	}
	for _, suffix := range []string{".1", ".2", ".3"} {
		if _, err := os.Stat(path + suffix); err != nil {
			t.Errorf("backup %s should exist: %v", suffix, err)
		}
	}
}

func TestRotatingFile_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  file.RotateConfig
	}{
		{"empty path", file.RotateConfig{}},
		{"negative size", file.RotateConfig{FilePath: filepath.Join(t.TempDir(), "x"), MaxBytes: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := file.NewRotatingFile(tt.cfg, nil); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRotatingFile_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "reports.jsonl")
	rf := newRotating(t, file.RotateConfig{FilePath: path})
	if _, err := rf.Write([]byte("ok\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func TestRotatingFile_CloseTwice(t *testing.T) {
	rf := newRotating(t, file.RotateConfig{FilePath: filepath.Join(t.TempDir(), "r.jsonl")})
	if err := rf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rf.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := rf.Write([]byte("x")); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Write after Close = %v, want os.ErrClosed", err)
	}
}

func TestSplit_WithRotatingFiles(t *testing.T) {
	dir := t.TempDir()
	reportPath := filepath.Join(dir, "reports.jsonl")
	trapPath := filepath.Join(dir, "traps.jsonl")

	rrf, err := file.NewRotatingFile(file.RotateConfig{FilePath: reportPath, MaxBytes: 4096, MaxBackups: 2}, nil)
	if err != nil {
		t.Fatalf("NewRotatingFile (reports): %v", err)
	}
	trf, err := file.NewRotatingFile(file.RotateConfig{FilePath: trapPath, MaxBytes: 4096, MaxBackups: 2}, nil)
	if err != nil {
		t.Fatalf("NewRotatingFile (traps): %v", err)
	}

	tr := file.NewSplit(file.SplitConfig{ReportWriter: rrf, TrapWriter: trf}, nil)
	for i := 0; i < 10; i++ {
		_ = tr.Send([]byte(reportLine))
		_ = tr.Send([]byte(trapLine))
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reportData, _ := os.ReadFile(reportPath)
	trapData, _ := os.ReadFile(trapPath)
	if bytes.Contains(reportData, []byte(`"trap_oid"`)) {
		t.Error("report file should not contain trap events")
	}
	if bytes.Contains(trapData, []byte(`"report"`)) {
		t.Error("trap file should not contain report envelopes")
	}
	if n := bytes.Count(trapData, []byte("\n")); n != 10 {
		t.Errorf("trap lines = %d, want 10", n)
	}
}
