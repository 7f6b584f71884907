// Package trapreceiver listens for SNMP traps from the OLTs and turns each
// one into an early re-poll of the sending device.
//
// Pipeline position:
//
//	UDP :162 → TrapReceiver ─┬→ Repoller.TriggerByIP (scheduler)
//	                         └→ Output() → format/json → transport/file
//
// gosnmp's TrapListener is the UDP engine; v1/v2c/v3 parsing is done by the
// snmp/trap package.
package trapreceiver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/vpbank/olt_collector/models"
	snmptrap "github.com/vpbank/olt_collector/snmp/trap"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config controls the TrapReceiver.
type Config struct {
	// ListenAddr is the UDP address to bind (default "0.0.0.0:162").
	ListenAddr string

	// OutputBufferSize is the capacity of the Output channel (default 1024).
	OutputBufferSize int

	// Community filters v1/v2c traps. Empty accepts any community.
	Community string

	// SNMPVersion the listener accepts (default gosnmp.Version2c).
	SNMPVersion gosnmp.SnmpVersion

	// CloseTimeout bounds the socket shutdown (default 3 s).
	CloseTimeout time.Duration

	// Repoller, when set, is asked to poll the OLT whose address sent the
	// trap.
	Repoller Repoller

	// ParseFunc replaces snmp/trap.Parse.
	ParseFunc ParseFunc
}

// ParseFunc converts a received packet to a TrapEvent.
type ParseFunc func(pkt *gosnmp.SnmpPacket, addr *net.UDPAddr) (models.TrapEvent, error)

// Repoller schedules an immediate poll of the device configured with ip.
// It reports the device name and whether a poll was queued.
// *scheduler.Scheduler implements it.
type Repoller interface {
	TriggerByIP(ip string) (string, bool)
}

func (c Config) withDefaults() Config {
	if c.ListenAddr == "" {
		c.ListenAddr = "0.0.0.0:162"
	}
	if c.OutputBufferSize <= 0 {
		c.OutputBufferSize = 1024
	}
	if c.SNMPVersion == 0 {
		c.SNMPVersion = gosnmp.Version2c
	}
	if c.CloseTimeout == 0 {
		c.CloseTimeout = 3 * time.Second
	}
	if c.ParseFunc == nil {
		c.ParseFunc = snmptrap.Parse
	}
	return c
}

// ─────────────────────────────────────────────────────────────────────────────
// TrapReceiver
// ─────────────────────────────────────────────────────────────────────────────

// Stats counts what the receiver has handled since Start.
type Stats struct {
	Received  uint64
	Dropped   uint64
	Repolled  uint64
	Malformed uint64
}

// TrapReceiver listens on UDP for traps and informs.
type TrapReceiver struct {
	cfg    Config
	logger *slog.Logger

	output   chan models.TrapEvent
	listener *gosnmp.TrapListener

	received  atomic.Uint64
	dropped   atomic.Uint64
	repolled  atomic.Uint64
	malformed atomic.Uint64

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a TrapReceiver; nothing is bound until Start.
func New(cfg Config, logger *slog.Logger) *TrapReceiver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	c := cfg.withDefaults()
	return &TrapReceiver{
		cfg:    c,
		logger: logger,
		output: make(chan models.TrapEvent, c.OutputBufferSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Output delivers parsed trap events. It is closed by Stop.
func (r *TrapReceiver) Output() <-chan models.TrapEvent {
	return r.output
}

// ListenAddr returns the configured bind address.
func (r *TrapReceiver) ListenAddr() string {
	return r.cfg.ListenAddr
}

// Stats returns a snapshot of the receiver counters.
func (r *TrapReceiver) Stats() Stats {
	return Stats{
		Received:  r.received.Load(),
		Dropped:   r.dropped.Load(),
		Repolled:  r.repolled.Load(),
		Malformed: r.malformed.Load(),
	}
}

// Start binds the listener and returns once it is ready, on a bind error, or
// when ctx is cancelled first. Cancelling ctx later stops the receiver.
func (r *TrapReceiver) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("trapreceiver: already running")
	}
	r.running = true
	r.mu.Unlock()

	tl := gosnmp.NewTrapListener()
	tl.Params = &gosnmp.GoSNMP{
		Version:   r.cfg.SNMPVersion,
		Community: r.cfg.Community,
		Logger:    gosnmp.NewLogger(slogAdapter{r.logger}),
	}
	tl.CloseTimeout = r.cfg.CloseTimeout
	tl.OnNewTrap = r.handleTrap
	r.listener = tl

	errCh := make(chan error, 1)
	go func() {
		defer close(r.doneCh)
		errCh <- tl.Listen(r.cfg.ListenAddr)
	}()

	select {
	case <-tl.Listening():
		r.logger.Info("trapreceiver: listening", "addr", r.cfg.ListenAddr)
	case err := <-errCh:
		r.setStopped()
		return fmt.Errorf("trapreceiver: listen %s: %w", r.cfg.ListenAddr, err)
	case <-ctx.Done():
		tl.Close()
		r.setStopped()
		return ctx.Err()
	}

	go func() {
		select {
		case <-ctx.Done():
			r.Stop()
		case <-r.stopCh:
		}
	}()
	return nil
}

// Stop closes the listener and then the Output channel. Repeated calls are
// no-ops.
func (r *TrapReceiver) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.running = false

	r.listener.Close()
	close(r.stopCh)
	<-r.doneCh
	close(r.output)

	s := r.Stats()
	r.logger.Info("trapreceiver: stopped",
		"received", s.Received,
		"repolled", s.Repolled,
		"dropped", s.Dropped,
	)
}

func (r *TrapReceiver) setStopped() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// handleTrap runs on the listener goroutine and must not block.
func (r *TrapReceiver) handleTrap(pkt *gosnmp.SnmpPacket, addr *net.UDPAddr) {
	ev, err := r.cfg.ParseFunc(pkt, addr)
	if err != nil {
		r.malformed.Add(1)
		r.logger.Warn("trapreceiver: parse error", "remote", addr, "error", err)
		return
	}
	r.received.Add(1)
	r.repoll(ev)

	select {
	case r.output <- ev:
	default:
		r.dropped.Add(1)
		r.logger.Warn("trapreceiver: output buffer full, trap dropped",
			"source_ip", ev.SourceIP,
			"trap_oid", ev.TrapOID,
		)
	}
}

func (r *TrapReceiver) repoll(ev models.TrapEvent) {
	if r.cfg.Repoller == nil || ev.SourceIP == "" {
		return
	}
	name, ok := r.cfg.Repoller.TriggerByIP(ev.SourceIP)
	if !ok {
		r.logger.Debug("trapreceiver: no re-poll",
			"source_ip", ev.SourceIP,
			"device", name,
			"trap_oid", ev.TrapOID,
		)
		return
	}
	r.repolled.Add(1)
	r.logger.Info("trapreceiver: re-poll queued",
		"device", name,
		"source_ip", ev.SourceIP,
		"trap_oid", ev.TrapOID,
		"link_event", snmptrap.IsLinkEvent(ev),
	)
}

// ─────────────────────────────────────────────────────────────────────────────
// Utilities
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }

// slogAdapter bridges slog to gosnmp's Printf-style Logger.
type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Print(v ...interface{}) {
	a.l.Debug(fmt.Sprint(v...))
}

func (a slogAdapter) Printf(format string, v ...interface{}) {
	a.l.Debug(fmt.Sprintf(format, v...))
}
