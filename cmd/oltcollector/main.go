// Command oltcollector polls BDCOM EPON OLTs over SNMP and reports the OLT,
// its interfaces and every registered ONU as JSON.
//
// It runs in one of three modes:
//
//	oltcollector [flags]                        daemon: scheduled polling of every configured OLT
//	oltcollector -once -ip 192.0.2.1 ...        poll one OLT and print its report
//	oltcollector -once -replay walk.txt ...     build the report from an snmpwalk -On dump
//	oltcollector -set -ip ... -set.oid ...      write values to one OLT
//
// YAML configuration directories are read from environment variables (a .env
// file in the working directory is loaded first) and can be overridden with
// flags. The daemon reloads its configuration on SIGHUP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	jsonformat "github.com/vpbank/olt_collector/format/json"
	"github.com/vpbank/olt_collector/models"
	"github.com/vpbank/olt_collector/pkg/oltcollector/app"
	"github.com/vpbank/olt_collector/pkg/oltcollector/config"
	"github.com/vpbank/olt_collector/pkg/oltcollector/correlate"
	"github.com/vpbank/olt_collector/pkg/oltcollector/poller"
	"github.com/vpbank/olt_collector/pkg/oltcollector/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "oltcollector: %v\n", err)
		os.Exit(1)
	}
}

// targetFlags describes the single OLT used by -once and -set.
type targetFlags struct {
	id        int
	name      string
	ip        string
	port      int
	community string
	writeComm string
	version   string
	timeoutMs int
	retries   int
}

func (t targetFlags) device() models.Device {
	name := t.name
	if name == "" {
		name = t.ip
	}
	return models.Device{
		ID:          t.id,
		Name:        name,
		IPAddress:   t.ip,
		Port:        t.port,
		SNMPVersion: t.version,
	}
}

func (t targetFlags) session() session.Config {
	return session.Config{
		Target:         t.ip,
		Port:           t.port,
		Version:        t.version,
		Community:      t.community,
		WriteCommunity: t.writeComm,
		Timeout:        time.Duration(t.timeoutMs) * time.Millisecond,
		Retries:        t.retries,
	}
}

func run() error {
	// A missing .env is not an error.
	_ = godotenv.Load()

	// ── Flags ────────────────────────────────────────────────────────────
	var (
		logLevel string
		logFmt   string
		collID   string
		pretty   bool
		workers  int
		bufSize  int
		trapOn   bool
		trapAddr string
		trapComm string
		cooldown time.Duration

		onuDetails bool

		// Pool
		poolMaxIdle int
		poolIdleSec int

		// File transport
		reportFile     string
		trapFile       string
		fileMaxBytes   int64
		fileMaxBackups int

		// Store and API
		dbPath   string
		history  int
		httpAddr string

		// Config path overrides (defaults read from env).
		cfgDevices  string
		cfgDefaults string
		cfgProfiles string

		// One-shot and set modes
		once     bool
		replay   string
		setMode  bool
		setOIDs  string
		setTypes string
		setVals  string
		target   targetFlags
	)

	flag.StringVar(&logLevel, "log.level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFmt, "log.fmt", "json", "Log format: json, text")
	flag.StringVar(&collID, "collector.id", "", "Collector instance ID (default: hostname)")
	flag.BoolVar(&pretty, "format.pretty", false, "Pretty-print JSON output")
	flag.IntVar(&workers, "poller.workers", 16, "Number of concurrent OLT polls")
	flag.BoolVar(&onuDetails, "poller.onu.details", false, "Also walk ONU vendor, model, version, firmware and tx level")
	flag.IntVar(&bufSize, "pipeline.buffer.size", 1024, "Inter-stage channel buffer size")
	flag.BoolVar(&trapOn, "trap.enabled", false, "Enable trap receiver")
	flag.StringVar(&trapAddr, "trap.listen", "0.0.0.0:162", "Trap listener UDP address")
	flag.StringVar(&trapComm, "trap.community", "", "Accept only traps with this community (empty: any)")
	flag.DurationVar(&cooldown, "trigger.cooldown", 10*time.Second, "Minimum spacing of trap or API triggered polls per OLT")
	flag.IntVar(&poolMaxIdle, "snmp.pool.max.idle", 1, "Max idle sessions per OLT")
	flag.IntVar(&poolIdleSec, "snmp.pool.idle.timeout", 600, "Idle session timeout in seconds")

	flag.StringVar(&reportFile, "transport.file.reports", "", "Output file for OLT reports (default: stdout)")
	flag.StringVar(&trapFile, "transport.file.traps", "", "Output file for trap events (default: stderr)")
	flag.Int64Var(&fileMaxBytes, "transport.file.max.bytes", 0, "Max file size in bytes before rotation (0=disabled)")
	flag.IntVar(&fileMaxBackups, "transport.file.max.backups", 5, "Max rotated backup files to keep (0=unlimited)")

	flag.StringVar(&dbPath, "store.path", "", "SQLite database file (empty: no store, no API)")
	flag.IntVar(&history, "store.history", 288, "Poll records kept per OLT")
	flag.StringVar(&httpAddr, "http.listen", "", "HTTP API address, e.g. :8080 (requires -store.path)")

	flag.StringVar(&cfgDevices, "config.devices", "", "Override OLT_COLLECTOR_DEVICES_DIRECTORY_PATH")
	flag.StringVar(&cfgDefaults, "config.defaults", "", "Override OLT_COLLECTOR_DEFAULTS_DIRECTORY_PATH")
	flag.StringVar(&cfgProfiles, "config.profiles", "", "Override OLT_COLLECTOR_PROFILES_DIRECTORY_PATH")

	flag.BoolVar(&once, "once", false, "Poll one OLT, print its report and exit")
	flag.StringVar(&replay, "replay", "", "With -once: read agent data from an snmpwalk -On dump instead of the network")
	flag.BoolVar(&setMode, "set", false, "Write -set.oid values to one OLT and exit")
	flag.StringVar(&setOIDs, "set.oid", "", "Comma-separated OIDs to write")
	flag.StringVar(&setTypes, "set.type", "", "Comma-separated type letters (iutaosxdnb); one letter applies to all")
	flag.StringVar(&setVals, "set.value", "", "Comma-separated values")

	flag.IntVar(&target.id, "id", 0, "OLT id written into the report")
	flag.StringVar(&target.name, "name", "", "OLT name written into the report (default: ip)")
	flag.StringVar(&target.ip, "ip", "", "OLT address")
	flag.IntVar(&target.port, "port", 161, "OLT SNMP port")
	flag.StringVar(&target.community, "community", "public", "Read community")
	flag.StringVar(&target.writeComm, "write.community", "", "Write community (default: -community)")
	flag.StringVar(&target.version, "snmp.version", "2c", "SNMP version: 1, 2c")
	flag.IntVar(&target.timeoutMs, "timeout", 3000, "Request timeout in milliseconds")
	flag.IntVar(&target.retries, "retries", 2, "Retries after a timeout")

	flag.Parse()

	// ── Logger ───────────────────────────────────────────────────────────
	logger, err := buildLogger(logLevel, logFmt)
	if err != nil {
		return err
	}

	// ── Config paths ─────────────────────────────────────────────────────
	paths := config.PathsFromEnv()
	applyPathOverrides(&paths, cfgDevices, cfgDefaults, cfgProfiles)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case once && setMode:
		return errors.New("-once and -set are mutually exclusive")
	case once:
		return runOnce(ctx, target, replay, paths, pretty, onuDetails, logger)
	case setMode:
		return runSet(ctx, target, setOIDs, setTypes, setVals, logger)
	}

	// ── Build App ────────────────────────────────────────────────────────
	cfg := app.Config{
		ConfigPaths:      paths,
		CollectorID:      collID,
		PollerWorkers:    workers,
		BufferSize:       bufSize,
		TriggerCooldown:  cooldown,
		OnuDetails:       onuDetails,
		TrapEnabled:      trapOn,
		TrapListenAddr:   trapAddr,
		TrapCommunity:    trapComm,
		PrettyPrint:      pretty,
		ReportFile:       reportFile,
		TrapFile:         trapFile,
		RotateMaxBytes:   fileMaxBytes,
		RotateMaxBackups: fileMaxBackups,
		DBPath:           dbPath,
		HistoryLimit:     history,
		HTTPAddr:         httpAddr,
		PoolOptions: poller.PoolOptions{
			MaxIdlePerDevice: poolMaxIdle,
			IdleTimeout:      secondsToDuration(poolIdleSec),
		},
	}

	application := app.New(cfg, logger)

	// ── Start ────────────────────────────────────────────────────────────
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	logger.Info("oltcollector: running, press Ctrl-C to stop")

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-hup:
			if err := application.Reload(); err != nil {
				logger.Error("oltcollector: reload failed, keeping previous configuration",
					"error", err.Error(),
				)
			}
		case <-ctx.Done():
			logger.Info("oltcollector: received shutdown signal")
			application.Stop()
			return nil
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// One-shot and set modes
// ─────────────────────────────────────────────────────────────────────────────

// runOnce polls a single OLT, or a replayed dump of one, and prints the bare
// {"olt":…,"onu":…} report to stdout.
func runOnce(ctx context.Context, t targetFlags, replay string, paths config.Paths, pretty, onuDetails bool, logger *slog.Logger) error {
	// Only the profile overrides matter here; the device list is ignored.
	loaded, err := config.Load(config.Paths{Profiles: paths.Profiles}, logger)
	if err != nil {
		return err
	}
	p := poller.NewDevicePoller(loaded.Registry(), nil, logger).WithOnuDetails(onuDetails)

	var src correlate.Source
	if replay != "" {
		rp, err := session.OpenReplay(replay)
		if err != nil {
			return err
		}
		defer rp.Close()
		src = rp
		if t.ip == "" {
			t.ip = "127.0.0.1"
		}
	} else {
		if t.ip == "" {
			return errors.New("-once requires -ip or -replay")
		}
		sess, err := session.New(t.session(), logger)
		if err != nil {
			return err
		}
		defer sess.Close()
		src = sess
	}

	rep, err := p.Poll(ctx, src, t.device())
	if err != nil {
		return err
	}

	data, err := jsonformat.New(jsonformat.Config{PrettyPrint: pretty}, logger).FormatReport(&rep)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}

// runSet validates and writes one set request.
func runSet(ctx context.Context, t targetFlags, oids, types, values string, logger *slog.Logger) error {
	if t.ip == "" {
		return errors.New("-set requires -ip")
	}
	res := session.BuildSetRequest(splitList(oids), splitList(types), splitList(values))
	if !res.OK() {
		return res.Err
	}

	sess, err := session.New(t.session(), logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Set(ctx, res.Request); err != nil {
		return err
	}
	logger.Info("oltcollector: set complete", "device", t.ip, "vars", len(res.Request.Vars))
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}

	return slog.New(handler), nil
}

func applyPathOverrides(p *config.Paths, devices, defaults, profiles string) {
	if devices != "" {
		p.Devices = devices
	}
	if defaults != "" {
		p.Defaults = defaults
	}
	if profiles != "" {
		p.Profiles = profiles
	}
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func secondsToDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
