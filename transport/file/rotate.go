package file

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// RotateConfig controls size-based rotation of an output file.
type RotateConfig struct {
	// FilePath is the active file, e.g. /var/lib/olt_collector/reports.jsonl.
	FilePath string

	// MaxBytes rotates the file before a write would take it past this size.
	// Zero disables rotation.
	MaxBytes int64

	// MaxBackups is the number of numbered backups (.1 newest) to keep.
	// Zero keeps every backup.
	MaxBackups int
}

// RotatingFile is an io.WriteCloser over an append-only file that is renamed
// to FilePath.1 (shifting older backups up) once it reaches MaxBytes. A single
// write is never split across files.
type RotatingFile struct {
	mu     sync.Mutex
	cfg    RotateConfig
	file   *os.File
	size   int64
	logger *slog.Logger
}

// NewRotatingFile creates the parent directory if needed and opens
// cfg.FilePath for appending.
func NewRotatingFile(cfg RotateConfig, logger *slog.Logger) (*RotatingFile, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("transport/file: rotate: FilePath is required")
	}
	if cfg.MaxBytes < 0 || cfg.MaxBackups < 0 {
		return nil, fmt.Errorf("transport/file: rotate: MaxBytes and MaxBackups must not be negative")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	dir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transport/file: rotate: mkdir %s: %w", dir, err)
	}

	rf := &RotatingFile{cfg: cfg, logger: logger}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

// Write appends p, rotating first when p would push the file past MaxBytes.
// An empty file is never rotated, so a record larger than MaxBytes still
// lands in a file of its own.
func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, os.ErrClosed
	}
	if rf.cfg.MaxBytes > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.cfg.MaxBytes {
		if err := rf.rotate(); err != nil {
			// Keep appending to whatever is open rather than drop the record.
			rf.logger.Error("transport/file: rotate failed", "file", rf.cfg.FilePath, "error", err.Error())
			if rf.file == nil {
				return 0, err
			}
		}
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// Close closes the active file. Further writes fail with os.ErrClosed and a
// second Close is a no-op.
func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}

func (rf *RotatingFile) open() error {
	f, err := os.OpenFile(rf.cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("transport/file: rotate: open %s: %w", rf.cfg.FilePath, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("transport/file: rotate: stat %s: %w", rf.cfg.FilePath, err)
	}
	rf.file = f
	rf.size = info.Size()
	return nil
}

// rotate shifts reports.jsonl.N-1 → .N down to active → .1, dropping
// anything past MaxBackups, then reopens an empty active file.
func (rf *RotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		rf.logger.Warn("transport/file: rotate: close", "error", err.Error())
	}
	rf.file = nil

	base := rf.cfg.FilePath
	top := rf.cfg.MaxBackups
	if top == 0 {
		top = rf.highestBackup()
	} else {
		_ = os.Remove(backupName(base, top))
	}
	for i := top; i >= 1; i-- {
		if err := os.Rename(backupName(base, i), backupName(base, i+1)); err != nil && !errors.Is(err, os.ErrNotExist) {
			rf.logger.Warn("transport/file: rotate: shift", "file", backupName(base, i), "error", err.Error())
		}
	}
	if err := os.Rename(base, backupName(base, 1)); err != nil && !errors.Is(err, os.ErrNotExist) {
		rf.logger.Warn("transport/file: rotate: rename", "file", base, "error", err.Error())
	}
	if rf.cfg.MaxBackups > 0 {
		rf.prune()
	}

	rf.logger.Info("transport/file: rotated", "file", base)
	return rf.open()
}

func (rf *RotatingFile) highestBackup() int {
	n := 0
	for {
		if _, err := os.Stat(backupName(rf.cfg.FilePath, n+1)); err != nil {
			return n
		}
		n++
	}
}

func (rf *RotatingFile) prune() {
	for i := rf.cfg.MaxBackups + 1; ; i++ {
		name := backupName(rf.cfg.FilePath, i)
		if err := os.Remove(name); err != nil {
			return
		}
		rf.logger.Debug("transport/file: pruned backup", "file", name)
	}
}

func backupName(base string, n int) string {
	return fmt.Sprintf("%s.%d", base, n)
}
