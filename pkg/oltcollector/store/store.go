// Package store persists OLT reports in SQLite through gorm: the latest
// snapshot per OLT, its interface table, per-MAC ONU state and a bounded
// poll history. ONU online/offline changes between polls are recorded and
// fired on a gookit/event manager.
//
// Pipeline position:
//
//	producer/report → store → api
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gookit/event"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vpbank/olt_collector/models"
)

// ErrNotFound is returned by lookups for an unknown OLT or ONU.
var ErrNotFound = errors.New("store: not found")

// Event names fired when an ONU changes state. The event carries the
// *OnuTransition under the "transition" key.
const (
	EventOnuOnline  = "onu.online"
	EventOnuOffline = "onu.offline"
)

// DefaultHistoryLimit keeps one day of history at the default 300 s interval.
const DefaultHistoryLimit = 288

// Options controls Open.
type Options struct {
	// Path is the SQLite database file. Required.
	Path string

	// HistoryLimit caps the PollRecord rows kept per OLT.
	HistoryLimit int
}

// Store is safe for concurrent use; SQLite access is serialised on a single
// connection.
type Store struct {
	db           *gorm.DB
	events       *event.Manager
	historyLimit int
	logger       *slog.Logger
}

// Open opens (creating if needed) the database at opts.Path and migrates the
// schema. events may be nil, in which case no events are fired.
func Open(opts Options, events *event.Manager, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("store: database path is required")
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}

	db, err := gorm.Open(sqlite.Open(opts.Path+"?_busy_timeout=5000&_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.New(gormWriter{logger}, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", opts.Path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(tables()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	logger.Info("store: opened", "path", opts.Path, "history_limit", opts.HistoryLimit)
	return &Store{db: db, events: events, historyLimit: opts.HistoryLimit, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Save
// ─────────────────────────────────────────────────────────────────────────────

// Save records one report envelope in a single transaction. A failed poll
// appends history and updates the snapshot status but keeps the last good
// report, interface rows and ONU state. Transition events are fired after
// the commit.
func (s *Store) Save(ctx context.Context, env models.ReportEnvelope) error {
	name := env.Device.Name
	if name == "" {
		return fmt.Errorf("store: envelope has no device name")
	}
	at := env.Timestamp.UTC()
	if at.IsZero() {
		at = time.Now().UTC()
	}
	online := countOnline(env.Report.ONU)

	var changes []OnuTransition
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := PollRecord{
			OltName:     name,
			PollStatus:  env.Metadata.PollStatus,
			DurationMs:  env.Metadata.PollDurationMs,
			Onus:        len(env.Report.ONU),
			OnlineOnus:  online,
			Error:       env.Metadata.Error,
			CollectedAt: at,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("history: %w", err)
		}
		if err := s.pruneHistory(tx, name); err != nil {
			return fmt.Errorf("prune history: %w", err)
		}

		if env.Metadata.PollStatus == models.PollFailed {
			return markFailed(tx, env, at)
		}
		if err := saveSnapshot(tx, env, at, online); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		if err := replaceInterfaces(tx, name, env.Report.OLT.Interfaces, at); err != nil {
			return fmt.Errorf("interfaces: %w", err)
		}
		var err error
		changes, err = upsertOnus(tx, name, env.Report.ONU, at)
		if err != nil {
			return fmt.Errorf("onus: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("store: save failed", "device", name, "error", err.Error())
		return fmt.Errorf("store: save %s: %w", name, err)
	}

	for i := range changes {
		s.fire(&changes[i])
	}
	s.logger.Debug("store: saved report",
		"device", name,
		"poll_status", env.Metadata.PollStatus,
		"onu_count", len(env.Report.ONU),
		"transitions", len(changes),
	)
	return nil
}

func (s *Store) fire(t *OnuTransition) {
	if s.events == nil {
		return
	}
	name := EventOnuOffline
	if t.Online {
		name = EventOnuOnline
	}
	s.events.MustFire(name, event.M{"transition": t})
}

func (s *Store) pruneHistory(tx *gorm.DB, name string) error {
	keep := tx.Model(&PollRecord{}).
		Select("id").
		Where("olt_name = ?", name).
		Order("id DESC").
		Limit(s.historyLimit)
	return tx.Where("olt_name = ? AND id NOT IN (?)", name, keep).Delete(&PollRecord{}).Error
}

func markFailed(tx *gorm.DB, env models.ReportEnvelope, at time.Time) error {
	var snap OltSnapshot
	if err := tx.Where("name = ?", env.Device.Name).Limit(1).Find(&snap).Error; err != nil {
		return err
	}
	if snap.ID == 0 {
		snap = OltSnapshot{
			Name:        env.Device.Name,
			DeviceID:    env.Device.ID,
			IP:          env.Device.IPAddress,
			Port:        env.Device.Port,
			PollStatus:  models.PollFailed,
			Error:       env.Metadata.Error,
			CollectedAt: at,
		}
		return tx.Create(&snap).Error
	}
	return tx.Model(&snap).Updates(map[string]interface{}{
		"poll_status":  models.PollFailed,
		"error":        env.Metadata.Error,
		"collected_at": at,
	}).Error
}

func saveSnapshot(tx *gorm.DB, env models.ReportEnvelope, at time.Time, online int) error {
	raw, err := json.Marshal(env.Report)
	if err != nil {
		return err
	}
	var existing OltSnapshot
	if err := tx.Where("name = ?", env.Device.Name).Limit(1).Find(&existing).Error; err != nil {
		return err
	}
	olt := env.Report.OLT
	snap := OltSnapshot{
		ID:          existing.ID,
		Name:        env.Device.Name,
		DeviceID:    env.Device.ID,
		IP:          env.Device.IPAddress,
		Port:        env.Device.Port,
		Model:       olt.Model,
		Version:     olt.Version,
		Uptime:      olt.Uptime,
		Status:      olt.Status,
		PollStatus:  env.Metadata.PollStatus,
		Interfaces:  len(olt.Interfaces),
		Onus:        len(env.Report.ONU),
		OnlineOnus:  online,
		Report:      raw,
		CollectedAt: at,
		ReportedAt:  at,
	}
	return tx.Save(&snap).Error
}

func replaceInterfaces(tx *gorm.DB, name string, ifaces []models.InterfaceRecord, at time.Time) error {
	if err := tx.Where("olt_name = ?", name).Delete(&InterfaceState{}).Error; err != nil {
		return err
	}
	if len(ifaces) == 0 {
		return nil
	}
	rows := make([]InterfaceState, 0, len(ifaces))
	for _, i := range ifaces {
		rows = append(rows, InterfaceState{
			OltName:      name,
			Index:        i.Index,
			Name:         i.Name,
			HasSfp:       i.HasSfp,
			TemperatureC: i.TemperatureC,
			SignalDbm:    i.SignalDbm,
			OperState:    i.OperState,
			UpdatedAt:    at,
		})
	}
	return tx.CreateInBatches(rows, 200).Error
}

// macBatch stays well under SQLite's bound-parameter limit.
const macBatch = 500

// upsertOnus writes one OnuState per MAC and returns the online/offline
// transitions against the previously stored state. An ONU without a
// distance reading keeps its previous online flag.
func upsertOnus(tx *gorm.DB, name string, onus []models.OnuRecord, at time.Time) ([]OnuTransition, error) {
	prev := make(map[string]OnuState, len(onus))
	macs := make([]string, 0, len(onus))
	for _, o := range onus {
		if o.MAC != "" {
			macs = append(macs, o.MAC)
		}
	}
	for start := 0; start < len(macs); start += macBatch {
		end := min(start+macBatch, len(macs))
		var rows []OnuState
		if err := tx.Where("mac IN ?", macs[start:end]).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			prev[r.MAC] = r
		}
	}

	var changes []OnuTransition
	for _, o := range onus {
		if o.MAC == "" {
			continue
		}
		row, seen := prev[o.MAC]
		if !seen {
			row = OnuState{MAC: o.MAC, FirstSeen: at}
		}
		wasOnline := row.Online

		row.OltName = name
		row.Index = o.Index
		row.LastSeen = at
		if o.Ifname != nil {
			row.Ifname = *o.Ifname
		}
		if o.DeregStatus != nil {
			row.DeregStatus = *o.DeregStatus
		}
		if o.Online != nil {
			isOnline := *o.Online
			row.Online = &isOnline
			row.Distance = o.Distance
			row.SignalRx = ""
			if o.SignalRx != nil && !o.SignalRx.IsZero() {
				row.SignalRx = string(*o.SignalRx)
			}
			if isOnline {
				row.LastOnline = &at
			}
			if wasOnline != nil && *wasOnline != isOnline {
				row.LastChange = &at
				changes = append(changes, OnuTransition{MAC: o.MAC, OltName: name, Online: isOnline, At: at})
			}
		}
		if err := tx.Save(&row).Error; err != nil {
			return nil, err
		}
	}

	if len(changes) > 0 {
		if err := tx.Create(&changes).Error; err != nil {
			return nil, err
		}
	}
	return changes, nil
}

func countOnline(onus []models.OnuRecord) int {
	n := 0
	for _, o := range onus {
		if o.IsOnline() {
			n++
		}
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Utilities
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

// gormWriter bridges gorm's Printf logger to slog.
type gormWriter struct{ l *slog.Logger }

func (w gormWriter) Printf(format string, v ...interface{}) {
	w.l.Warn(fmt.Sprintf("store: "+format, v...))
}
