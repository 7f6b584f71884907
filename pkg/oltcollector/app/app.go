// Package app wires the OLT collector pipeline together and manages its
// lifecycle.
//
// Poll path:
//
//	Scheduler → WorkerPool → [resultCh] → Producer → [envelopeCh] →
//	  ├→ Store (SQLite) → API
//	  └→ Formatter → [formattedCh] → Transport
//
// Trap path (parallel):
//
//	TrapReceiver ─┬→ Scheduler.TriggerByIP
//	              └→ [trapCh] → Formatter → [formattedCh] → Transport
//
// Both paths converge on formattedCh so a single goroutine writes all output.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gookit/event"

	jsonformat "github.com/vpbank/olt_collector/format/json"
	"github.com/vpbank/olt_collector/models"
	"github.com/vpbank/olt_collector/pkg/oltcollector/api"
	"github.com/vpbank/olt_collector/pkg/oltcollector/config"
	"github.com/vpbank/olt_collector/pkg/oltcollector/poller"
	"github.com/vpbank/olt_collector/pkg/oltcollector/profile"
	"github.com/vpbank/olt_collector/pkg/oltcollector/scheduler"
	"github.com/vpbank/olt_collector/pkg/oltcollector/store"
	"github.com/vpbank/olt_collector/pkg/oltcollector/trapreceiver"
	"github.com/vpbank/olt_collector/producer/report"
	filetransport "github.com/vpbank/olt_collector/transport/file"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the top-level settings of the collector. Zero values fall
// back to the documented defaults.
type Config struct {
	// ConfigPaths are the YAML configuration directories.
	ConfigPaths config.Paths

	// CollectorID is written into every envelope. Default: hostname.
	CollectorID string

	// PollerWorkers is the number of concurrent device polls. Default: 16.
	PollerWorkers int

	// BufferSize is the capacity of each inter-stage channel. Default: 1024.
	BufferSize int

	// PoolOptions configures the SNMP session pool.
	PoolOptions poller.PoolOptions

	// Poller replaces the SNMP DevicePoller.
	Poller poller.Poller

	// OnuDetails adds the ONU inventory walks to every poll.
	OnuDetails bool

	// TriggerCooldown spaces out trap and API triggered polls of one OLT.
	// Default: scheduler.DefaultTriggerCooldown. Negative disables it.
	TriggerCooldown time.Duration

	// TrapEnabled starts the trap receiver.
	TrapEnabled bool

	// TrapListenAddr is the UDP trap address. Default: "0.0.0.0:162".
	TrapListenAddr string

	// TrapCommunity filters incoming v1/v2c traps. Empty accepts any.
	TrapCommunity string

	// PrettyPrint indents the JSON output.
	PrettyPrint bool

	// ReportWriter receives report lines. nil means ReportFile or os.Stdout.
	ReportWriter io.Writer

	// TrapWriter receives trap lines. nil means TrapFile or os.Stderr.
	TrapWriter io.Writer

	// ReportFile and TrapFile, when set and no writer is given, are
	// size-rotated output files.
	ReportFile string
	TrapFile   string

	// RotateMaxBytes and RotateMaxBackups apply to ReportFile and TrapFile.
	RotateMaxBytes   int64
	RotateMaxBackups int

	// DBPath enables the SQLite store. Empty disables it and the API.
	DBPath string

	// HistoryLimit caps the stored poll history per OLT.
	HistoryLimit int

	// HTTPAddr enables the HTTP API on this address. Requires DBPath.
	HTTPAddr string
}

func (c *Config) withDefaults() {
	if c.CollectorID == "" {
		name, _ := os.Hostname()
		if name == "" {
			name = "olt_collector"
		}
		c.CollectorID = name
	}
	if c.PollerWorkers <= 0 {
		c.PollerWorkers = 16
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1024
	}
	if c.TrapListenAddr == "" {
		c.TrapListenAddr = "0.0.0.0:162"
	}
	if c.TriggerCooldown == 0 {
		c.TriggerCooldown = scheduler.DefaultTriggerCooldown
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// App
// ─────────────────────────────────────────────────────────────────────────────

// App orchestrates the collector. Create one with New, run it with Start and
// shut it down with Stop.
type App struct {
	cfg    Config
	logger *slog.Logger

	loadedCfg *config.LoadedConfig
	registry  *profile.Registry

	sessionPool  *poller.SessionPool
	workerPool   *poller.WorkerPool
	sched        *scheduler.Scheduler
	trapReceiver *trapreceiver.TrapReceiver
	prod         report.Producer
	formatter    *jsonformat.JSONFormatter
	transport    filetransport.Transport
	store        *store.Store
	events       *event.Manager
	server       *api.Server

	resultCh    chan poller.Result
	envelopeCh  chan models.ReportEnvelope
	formattedCh chan []byte

	cancel     context.CancelFunc
	wg         sync.WaitGroup
	formatWg   sync.WaitGroup
	serverDone chan struct{}
}

// New constructs an App without starting anything.
func New(cfg Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cfg.withDefaults()
	return &App{cfg: cfg, logger: logger}
}

// Start loads configuration, builds every stage and launches the goroutines
// connecting them. Configuration, output file and store errors are fatal; a
// trap listener that cannot bind is logged and skipped.
func (a *App) Start(ctx context.Context) error {
	// ── 1. Configuration ────────────────────────────────────────────────
	loadedCfg, err := config.Load(a.cfg.ConfigPaths, a.logger)
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}
	a.loadedCfg = loadedCfg
	a.registry = loadedCfg.Registry()
	a.logger.Info("app: configuration loaded",
		"devices", len(loadedCfg.Devices),
		"profiles", len(loadedCfg.Profiles),
	)

	// ── 2. Sinks: transport, store, events ──────────────────────────────
	transport, err := a.buildTransport()
	if err != nil {
		return err
	}
	a.transport = transport
	a.formatter = jsonformat.New(jsonformat.Config{PrettyPrint: a.cfg.PrettyPrint}, a.logger)
	a.prod = report.New(report.Config{CollectorID: a.cfg.CollectorID}, a.logger)

	a.events = event.NewManager("olt_collector")
	a.registerEventListeners()
	if a.cfg.DBPath != "" {
		st, err := store.Open(store.Options{Path: a.cfg.DBPath, HistoryLimit: a.cfg.HistoryLimit}, a.events, a.logger)
		if err != nil {
			_ = a.transport.Close()
			return fmt.Errorf("app: %w", err)
		}
		a.store = st
	}

	// ── 3. Channels and poll path ───────────────────────────────────────
	a.resultCh = make(chan poller.Result, a.cfg.BufferSize)
	a.envelopeCh = make(chan models.ReportEnvelope, a.cfg.BufferSize)
	a.formattedCh = make(chan []byte, a.cfg.BufferSize)

	p := a.cfg.Poller
	if p == nil {
		a.sessionPool = poller.NewSessionPool(a.cfg.PoolOptions, a.logger)
		p = poller.NewDevicePoller(a.registry, a.sessionPool, a.logger).WithOnuDetails(a.cfg.OnuDetails)
	}
	a.workerPool = poller.NewWorkerPool(a.cfg.PollerWorkers, p, a.resultCh, a.logger)
	a.sched = scheduler.New(loadedCfg, a.workerPool, a.logger)
	a.sched.SetTriggerCooldown(a.cfg.TriggerCooldown)

	pipeCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	// ── 4. Trap receiver ────────────────────────────────────────────────
	trapStarted := false
	if a.cfg.TrapEnabled {
		a.trapReceiver = trapreceiver.New(trapreceiver.Config{
			ListenAddr: a.cfg.TrapListenAddr,
			Community:  a.cfg.TrapCommunity,
			Repoller:   a.sched,
		}, a.logger)
		if err := a.trapReceiver.Start(pipeCtx); err != nil {
			a.logger.Error("app: trap receiver failed to start, continuing without traps",
				"error", err.Error(),
			)
			a.trapReceiver = nil
		} else {
			trapStarted = true
		}
	}

	// formatWg gates the close of formattedCh; count every feeder before the
	// transport stage starts waiting on it.
	feeders := 1
	if trapStarted {
		feeders++
	}
	a.formatWg.Add(feeders)

	// ── 5. Stages, sinks first ──────────────────────────────────────────
	a.startTransportStage()
	a.startSinkStage(pipeCtx)
	if trapStarted {
		a.startTrapFormatStage()
	}
	a.startProduceStage()

	a.workerPool.Start(pipeCtx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.sched.Start(pipeCtx)
	}()

	// ── 6. HTTP API ─────────────────────────────────────────────────────
	if a.cfg.HTTPAddr != "" {
		if a.store == nil {
			a.logger.Warn("app: HTTP API needs a database path, not started")
		} else {
			a.server = api.New(api.Config{ListenAddr: a.cfg.HTTPAddr}, a.store, a.sched, a.logger)
			a.serverDone = make(chan struct{})
			go func() {
				defer close(a.serverDone)
				if err := a.server.Serve(pipeCtx); err != nil {
					a.logger.Error("app: HTTP API stopped", "error", err.Error())
				}
			}()
		}
	}

	a.logger.Info("app: pipeline running",
		"collector_id", a.cfg.CollectorID,
		"poller_workers", a.cfg.PollerWorkers,
		"scheduled_olts", a.sched.Entries(),
		"trap_enabled", trapStarted,
		"store_enabled", a.store != nil,
		"api_enabled", a.server != nil,
	)
	return nil
}

// Stop shuts down in dependency order: trigger sources (trap receiver, HTTP
// API) and the scheduler first, then the worker pool, then the stages drain
// through the closed channels, then sinks and pools are closed.
func (a *App) Stop() {
	a.logger.Info("app: shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	if a.trapReceiver != nil {
		a.trapReceiver.Stop()
	}
	if a.serverDone != nil {
		<-a.serverDone
	}
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.workerPool != nil {
		a.workerPool.Stop()
	}
	if a.resultCh != nil {
		close(a.resultCh)
	}

	a.wg.Wait()

	if a.transport != nil {
		if err := a.transport.Close(); err != nil {
			a.logger.Error("app: transport close error", "error", err.Error())
		}
	}
	if a.sessionPool != nil {
		_ = a.sessionPool.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("app: store close error", "error", err.Error())
		}
	}
	a.logger.Info("app: shutdown complete")
}

// Reload re-reads the configuration: new OLTs are polled immediately,
// removed ones stop and profile overrides are registered on top of the
// running registry.
func (a *App) Reload() error {
	newCfg, err := config.Load(a.cfg.ConfigPaths, a.logger)
	if err != nil {
		return fmt.Errorf("app: reload config: %w", err)
	}
	for model, o := range newCfg.Profiles {
		a.registry.Register(model, o)
	}
	a.sched.Reload(newCfg)
	a.loadedCfg = newCfg

	a.logger.Info("app: configuration reloaded",
		"devices", len(newCfg.Devices),
		"profiles", len(newCfg.Profiles),
	)
	return nil
}

// Trigger queues an immediate poll of the named OLT.
func (a *App) Trigger(name string) bool {
	return a.sched.Trigger(name)
}

// ─────────────────────────────────────────────────────────────────────────────
// Construction helpers
// ─────────────────────────────────────────────────────────────────────────────

func (a *App) buildTransport() (filetransport.Transport, error) {
	reportW, err := a.outputWriter(a.cfg.ReportWriter, a.cfg.ReportFile)
	if err != nil {
		return nil, err
	}
	trapW, err := a.outputWriter(a.cfg.TrapWriter, a.cfg.TrapFile)
	if err != nil {
		if c, ok := reportW.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}
	return filetransport.NewSplit(filetransport.SplitConfig{
		ReportWriter: reportW,
		TrapWriter:   trapW,
	}, a.logger), nil
}

// outputWriter returns w, or a RotatingFile at path, or nil for the
// transport's standard stream default.
func (a *App) outputWriter(w io.Writer, path string) (io.Writer, error) {
	if w != nil || path == "" {
		return w, nil
	}
	rf, err := filetransport.NewRotatingFile(filetransport.RotateConfig{
		FilePath:   path,
		MaxBytes:   a.cfg.RotateMaxBytes,
		MaxBackups: a.cfg.RotateMaxBackups,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return rf, nil
}

// registerEventListeners logs ONU state changes reported by the store.
// Listeners never return an error so MustFire cannot panic.
func (a *App) registerEventListeners() {
	log := func(e event.Event) error {
		tr, ok := e.Get("transition").(*store.OnuTransition)
		if !ok {
			return nil
		}
		a.logger.Info("app: onu state changed",
			"event", e.Name(),
			"mac", tr.MAC,
			"device", tr.OltName,
			"online", tr.Online,
		)
		return nil
	}
	a.events.On(store.EventOnuOnline, event.ListenerFunc(log))
	a.events.On(store.EventOnuOffline, event.ListenerFunc(log))
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline stage goroutines
// ─────────────────────────────────────────────────────────────────────────────

// startProduceStage turns poll results into envelopes. Closes envelopeCh
// once resultCh is closed and drained.
func (a *App) startProduceStage() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(a.envelopeCh)

		for r := range a.resultCh {
			env, err := a.prod.Produce(r)
			if err != nil {
				a.logger.Warn("app: produce error", "device", r.Device.Name, "error", err.Error())
				continue
			}
			a.envelopeCh <- env
		}
	}()
}

// startSinkStage stores each envelope and forwards its JSON to formattedCh.
// A store failure does not stop the line from being written.
func (a *App) startSinkStage(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.formatWg.Done()

		for env := range a.envelopeCh {
			if a.store != nil {
				// The pipeline context may already be cancelled while draining.
				saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				if err := a.store.Save(saveCtx, env); err != nil {
					a.logger.Warn("app: store error", "device", env.Device.Name, "error", err.Error())
				}
				cancel()
			}
			data, err := a.formatter.Format(&env)
			if err != nil {
				a.logger.Warn("app: format error", "device", env.Device.Name, "error", err.Error())
				continue
			}
			a.formattedCh <- data
		}
	}()
}

func (a *App) startTrapFormatStage() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.formatWg.Done()

		for ev := range a.trapReceiver.Output() {
			data, err := a.formatter.FormatTrap(&ev)
			if err != nil {
				a.logger.Warn("app: trap format error", "source_ip", ev.SourceIP, "error", err.Error())
				continue
			}
			a.formattedCh <- data
		}
	}()
}

// startTransportStage writes formatted lines and owns the goroutine that
// closes formattedCh after every feeder finished.
func (a *App) startTransportStage() {
	go func() {
		a.formatWg.Wait()
		close(a.formattedCh)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for data := range a.formattedCh {
			if err := a.transport.Send(data); err != nil {
				a.logger.Error("app: transport send error", "error", err.Error(), "bytes", len(data))
			}
		}
	}()
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
