// Package report turns poller results into ReportEnvelopes, the unit the
// formatter, file transport and store consume.
package report

import (
	"log/slog"

	"github.com/vpbank/olt_collector/models"
	"github.com/vpbank/olt_collector/pkg/oltcollector/poller"
)

// ─────────────────────────────────────────────────────────────────────────────
// Producer interface
// ─────────────────────────────────────────────────────────────────────────────

// Producer converts a poller.Result into a models.ReportEnvelope.
// Implementations must be safe for concurrent use.
type Producer interface {
	Produce(result poller.Result) (models.ReportEnvelope, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds constructor options for ReportProducer.
type Config struct {
	// CollectorID is a stable identifier for this collector instance, written
	// into every envelope. Typically the hostname or pod name.
	CollectorID string
}

// ─────────────────────────────────────────────────────────────────────────────
// ReportProducer
// ─────────────────────────────────────────────────────────────────────────────

// ReportProducer is the production Producer. It holds no mutable state.
type ReportProducer struct {
	cfg    Config
	logger *slog.Logger
}

// New constructs a ReportProducer. Pass nil for a no-op logger.
func New(cfg Config, logger *slog.Logger) *ReportProducer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &ReportProducer{cfg: cfg, logger: logger}
}

// Produce implements Producer. Build is infallible; the error return is kept
// for implementations that validate.
func (p *ReportProducer) Produce(result poller.Result) (models.ReportEnvelope, error) {
	env := Build(result, BuildOptions{CollectorID: p.cfg.CollectorID})

	sum := Summarize(env.Report)
	p.logger.Debug("produce: assembled report envelope",
		"device", env.Device.Name,
		"poll_status", env.Metadata.PollStatus,
		"interfaces", sum.Interfaces,
		"onus", sum.Onus,
		"onus_online", sum.Online,
		"poll_duration_ms", env.Metadata.PollDurationMs,
	)
	return env, nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
