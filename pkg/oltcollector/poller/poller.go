// Package poller turns one configured OLT into a DeviceReport. DevicePoller
// runs the identity, uptime, interface and ONU steps against any
// correlate.Source; SessionPool and WorkerPool run many such polls against
// live agents.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vpbank/olt_collector/models"
	"github.com/vpbank/olt_collector/pkg/oltcollector/correlate"
	"github.com/vpbank/olt_collector/pkg/oltcollector/profile"
	"github.com/vpbank/olt_collector/pkg/oltcollector/session"
	"github.com/vpbank/olt_collector/snmp/decoder"
)

// ErrIdentity marks a poll that could not identify the OLT. It wraps
// profile.ErrMalformedBanner, so both match with errors.Is.
var ErrIdentity = errors.New("poller: cannot identify device")

// ─────────────────────────────────────────────────────────────────────────────
// PollJob / Result
// ─────────────────────────────────────────────────────────────────────────────

// PollJob describes one poll of one OLT.
type PollJob struct {
	// Device identifies the OLT in the report and envelope.
	Device models.Device

	// Session is the transport configuration for the OLT.
	Session session.Config

	// MaxConcurrentPolls bounds in-flight polls against this OLT.
	MaxConcurrentPolls int
}

// Result is what a worker emits for every job, failed or not.
type Result struct {
	Device      models.Device
	Report      models.DeviceReport
	Identity    profile.DeviceIdentity
	StartedAt   time.Time
	CollectedAt time.Time

	// SoftFailures counts gets and walks that failed but were tolerated.
	SoftFailures int

	// Err is set when the poll could not produce a report.
	Err error
}

// Status maps the result onto a ReportMetadata poll status.
func (r Result) Status() string {
	switch {
	case r.Err != nil:
		return models.PollFailed
	case r.SoftFailures > 0:
		return models.PollDegraded
	default:
		return models.PollSuccess
	}
}

// Duration is the wall time the poll took.
func (r Result) Duration() time.Duration { return r.CollectedAt.Sub(r.StartedAt) }

// ─────────────────────────────────────────────────────────────────────────────
// Poll state
// ─────────────────────────────────────────────────────────────────────────────

// State is the lifecycle of one poll cycle.
type State int

const (
	Idle State = iota
	Polled
)

func (s State) String() string {
	if s == Polled {
		return "polled"
	}
	return "idle"
}

// Outcome is the result of DevicePoller.Run.
type Outcome struct {
	State        State
	Identity     profile.DeviceIdentity
	Report       models.DeviceReport
	SoftFailures int
}

// Degraded reports whether the report was built with missing data.
func (o Outcome) Degraded() bool { return o.SoftFailures > 0 }

// ─────────────────────────────────────────────────────────────────────────────
// DevicePoller
// ─────────────────────────────────────────────────────────────────────────────

// Poller executes a single poll job.
type Poller interface {
	PollDevice(ctx context.Context, job PollJob) (Result, error)
}

// DevicePoller is the production Poller. The zero-pool form can still Poll
// an explicit Source.
type DevicePoller struct {
	registry   *profile.Registry
	pool       *SessionPool
	logger     *slog.Logger
	onuDetails bool
}

// NewDevicePoller creates a poller resolving OID profiles from registry and
// obtaining sessions from pool. registry defaults to profile.DefaultRegistry.
func NewDevicePoller(registry *profile.Registry, pool *SessionPool, logger *slog.Logger) *DevicePoller {
	if registry == nil {
		registry = profile.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &DevicePoller{registry: registry, pool: pool, logger: logger}
}

// WithOnuDetails enables the ONU inventory walks (vendor, model, version,
// firmware, transmit level). They add five walks per poll and are off by
// default.
func (p *DevicePoller) WithOnuDetails(on bool) *DevicePoller {
	p.onuDetails = on
	return p
}

// Poll builds the report for dev from src. Only an unparseable banner is an
// error; everything else degrades to default fields.
func (p *DevicePoller) Poll(ctx context.Context, src correlate.Source, dev models.Device) (models.DeviceReport, error) {
	out, err := p.Run(ctx, src, dev)
	return out.Report, err
}

// Run is Poll with the full outcome. Steps run sequentially:
// banner, profile, uptime, interfaces, ONUs and, when enabled, ONU details.
func (p *DevicePoller) Run(ctx context.Context, src correlate.Source, dev models.Device) (Outcome, error) {
	out := Outcome{State: Idle}
	log := p.logger.With("device", dev.Name)
	base := p.registry.Base()

	var banner string
	if v, err := src.Get(ctx, base.SysDescr); err != nil {
		if !errors.Is(err, session.ErrNoValue) {
			out.SoftFailures++
		}
		log.Warn("poller: banner fetch failed", "oid", base.SysDescr, "error", err.Error())
	} else {
		banner = decoder.ToString(v)
	}

	id, err := profile.ParseBanner(banner)
	if err != nil {
		return out, fmt.Errorf("%w %s: %w", ErrIdentity, dev.Name, err)
	}
	dp := p.registry.Profile(id)
	out.Identity = dp.Identity
	oids := dp.OIDs

	olt := models.OltReport{
		ID:      dev.ID,
		Name:    dev.Name,
		IP:      dev.IPAddress,
		Port:    dev.Port,
		Model:   id.Model,
		Version: id.Version,
	}
	if id.Model != "" {
		olt.Status = 1
	}

	if v, err := src.Get(ctx, oids.Uptime); err != nil {
		if !errors.Is(err, session.ErrNoValue) {
			out.SoftFailures++
		}
		log.Warn("poller: uptime fetch failed", "oid", oids.Uptime, "error", err.Error())
	} else {
		olt.Uptime = decoder.DecodeTimeticks(v)
	}

	ifaces, t1 := correlate.Interfaces(ctx, src, oids, log)
	onus, t2 := correlate.Onus(ctx, src, oids, log)
	olt.Interfaces = ifaces
	out.SoftFailures += t1.Failed + t2.Failed
	if p.onuDetails {
		out.SoftFailures += correlate.OnuDetails(ctx, src, oids, onus, log).Failed
	}

	out.Report = models.DeviceReport{OLT: olt, ONU: onus}
	out.State = Polled

	log.Debug("poller: device polled",
		"model", id.Model,
		"interfaces", len(ifaces),
		"onus", len(onus),
		"soft_failures", out.SoftFailures,
	)
	return out, nil
}

// PollDevice runs one job against a pooled session. The session goes back to
// the pool after a clean poll and is discarded otherwise.
func (p *DevicePoller) PollDevice(ctx context.Context, job PollJob) (Result, error) {
	res := Result{Device: job.Device}
	if p.pool == nil {
		res.Err = fmt.Errorf("poller: no session pool")
		return res, res.Err
	}

	key := job.Device.Name
	sess, err := p.pool.Get(ctx, key, job.Session, job.MaxConcurrentPolls)
	if err != nil {
		res.Err = fmt.Errorf("poller: pool get %s: %w", key, err)
		return res, res.Err
	}

	res.StartedAt = time.Now()
	out, err := p.Run(ctx, sess, job.Device)
	res.CollectedAt = time.Now()
	res.Report = out.Report
	res.Identity = out.Identity
	res.SoftFailures = out.SoftFailures

	if err != nil || out.Degraded() {
		p.pool.Discard(key, sess)
	} else {
		p.pool.Put(key, sess)
	}
	if err != nil {
		res.Err = err
		return res, err
	}

	p.logger.Debug("poll completed",
		"device", key,
		"status", res.Status(),
		"duration_ms", res.Duration().Milliseconds(),
	)
	return res, nil
}
