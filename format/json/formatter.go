// Package json implements the JSON output formatter of the OLT collector.
//
// Pipeline position:
//
//	producer/report → format/json → transport/file
//
// All json struct tags are declared on the model types, so serialisation is
// a single Encode call. HTML escaping is disabled so interface names and
// other device strings reach the consumer as the device reported them.
package json

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vpbank/olt_collector/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Formatter interface
// ─────────────────────────────────────────────────────────────────────────────

// Formatter serialises a report envelope into a byte slice.
type Formatter interface {
	Format(env *models.ReportEnvelope) ([]byte, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config controls JSONFormatter behaviour.
type Config struct {
	// PrettyPrint emits indented, human-readable JSON when true.
	PrettyPrint bool

	// Indent is the indent string used when PrettyPrint=true.
	// Defaults to two spaces.
	Indent string
}

// ─────────────────────────────────────────────────────────────────────────────
// JSONFormatter
// ─────────────────────────────────────────────────────────────────────────────

// JSONFormatter implements Formatter using encoding/json. It is safe for
// concurrent use; all fields are immutable after construction.
type JSONFormatter struct {
	cfg    Config
	logger *slog.Logger
}

// New constructs a JSONFormatter. A nil logger is replaced by a no-op one.
func New(cfg Config, logger *slog.Logger) *JSONFormatter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if cfg.PrettyPrint && cfg.Indent == "" {
		cfg.Indent = "  "
	}
	return &JSONFormatter{cfg: cfg, logger: logger}
}

// Format serialises env:
//
//	{
//	  "timestamp": "2026-02-26T10:30:00.123Z",
//	  "device": { … },
//	  "report": { "olt": { … , "interfaces": [ … ] }, "onu": [ … ] },
//	  "metadata": { "collector_id": …, "poll_duration_ms": …, "poll_status": … }
//	}
func (f *JSONFormatter) Format(env *models.ReportEnvelope) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("format/json: envelope must not be nil")
	}

	data, err := f.encode(env)
	if err != nil {
		f.logger.Error("format/json: marshal failed",
			"collector_id", env.Metadata.CollectorID,
			"device", env.Device.Name,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("format/json: marshal: %w", err)
	}

	f.logger.Debug("format/json: formatted envelope",
		"collector_id", env.Metadata.CollectorID,
		"device", env.Device.Name,
		"onu_count", len(env.Report.ONU),
		"bytes", len(data),
	)
	return data, nil
}

// FormatReport serialises a bare DeviceReport, the {"olt":…,"onu":…} shape
// printed by the one-shot CLI.
func (f *JSONFormatter) FormatReport(rep *models.DeviceReport) ([]byte, error) {
	if rep == nil {
		return nil, fmt.Errorf("format/json: report must not be nil")
	}
	data, err := f.encode(rep)
	if err != nil {
		return nil, fmt.Errorf("format/json: marshal: %w", err)
	}
	return data, nil
}

// FormatTrap serialises a received trap event. The "trap_oid" key it always
// carries is what the split transport routes on.
func (f *JSONFormatter) FormatTrap(ev *models.TrapEvent) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("format/json: trap event must not be nil")
	}
	data, err := f.encode(ev)
	if err != nil {
		return nil, fmt.Errorf("format/json: marshal trap: %w", err)
	}
	f.logger.Debug("format/json: formatted trap",
		"source_ip", ev.SourceIP,
		"trap_oid", ev.TrapOID,
	)
	return data, nil
}

func (f *JSONFormatter) encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if f.cfg.PrettyPrint {
		enc.SetIndent("", f.cfg.Indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
