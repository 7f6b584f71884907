package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"gorm.io/gorm"

	"github.com/vpbank/olt_collector/models"
)

// Olts returns every OLT snapshot ordered by name.
func (s *Store) Olts(ctx context.Context) ([]OltSnapshot, error) {
	var out []OltSnapshot
	if err := s.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list olts: %w", err)
	}
	return out, nil
}

// Olt returns the snapshot of one OLT.
func (s *Store) Olt(ctx context.Context, name string) (OltSnapshot, error) {
	return s.olt(s.db.WithContext(ctx), name)
}

func (s *Store) olt(db *gorm.DB, name string) (OltSnapshot, error) {
	var snap OltSnapshot
	if err := db.Where("name = ?", name).Limit(1).Find(&snap).Error; err != nil {
		return snap, fmt.Errorf("store: olt %s: %w", name, err)
	}
	if snap.ID == 0 {
		return snap, fmt.Errorf("olt %s: %w", name, ErrNotFound)
	}
	return snap, nil
}

// Report returns the last stored report of an OLT. An OLT that has only
// ever failed has no report and yields ErrNotFound.
func (s *Store) Report(ctx context.Context, name string) (models.DeviceReport, error) {
	var rep models.DeviceReport
	snap, err := s.Olt(ctx, name)
	if err != nil {
		return rep, err
	}
	if len(snap.Report) == 0 {
		return rep, fmt.Errorf("report %s: %w", name, ErrNotFound)
	}
	if err := json.Unmarshal(snap.Report, &rep); err != nil {
		return rep, fmt.Errorf("store: decode report %s: %w", name, err)
	}
	return rep, nil
}

// Interfaces returns the interface rows of an OLT ordered by index.
func (s *Store) Interfaces(ctx context.Context, name string) ([]InterfaceState, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.olt(db, name); err != nil {
		return nil, err
	}
	out := []InterfaceState{}
	if err := db.Where("olt_name = ?", name).Order("if_index").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: interfaces %s: %w", name, err)
	}
	return out, nil
}

// OnuFilter narrows Onus.
type OnuFilter struct {
	// Online, when set, keeps only ONUs with that online flag.
	Online *bool
}

// Onus returns the ONUs last seen on an OLT ordered by numeric index.
func (s *Store) Onus(ctx context.Context, name string, f OnuFilter) ([]OnuState, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.olt(db, name); err != nil {
		return nil, err
	}
	q := db.Where("olt_name = ?", name)
	if f.Online != nil {
		q = q.Where("online = ?", *f.Online)
	}
	out := []OnuState{}
	if err := q.Order("CAST(onu_index AS INTEGER)").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: onus %s: %w", name, err)
	}
	return out, nil
}

// Onu looks an ONU up by MAC. Any notation net.ParseMAC accepts is allowed.
func (s *Store) Onu(ctx context.Context, mac string) (OnuState, error) {
	var row OnuState
	key, err := NormalizeMAC(mac)
	if err != nil {
		return row, err
	}
	if err := s.db.WithContext(ctx).Where("mac = ?", key).Limit(1).Find(&row).Error; err != nil {
		return row, fmt.Errorf("store: onu %s: %w", key, err)
	}
	if row.ID == 0 {
		return row, fmt.Errorf("onu %s: %w", key, ErrNotFound)
	}
	return row, nil
}

// Transitions returns up to limit online/offline changes of an ONU, newest
// first.
func (s *Store) Transitions(ctx context.Context, mac string, limit int) ([]OnuTransition, error) {
	key, err := NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}
	out := []OnuTransition{}
	err = s.db.WithContext(ctx).
		Where("mac = ?", key).
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: transitions %s: %w", key, err)
	}
	return out, nil
}

// History returns up to limit poll records of an OLT, newest first.
func (s *Store) History(ctx context.Context, name string, limit int) ([]PollRecord, error) {
	out := []PollRecord{}
	err := s.db.WithContext(ctx).
		Where("olt_name = ?", name).
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: history %s: %w", name, err)
	}
	return out, nil
}

// NormalizeMAC returns mac in the lower-case colon form the collector
// stores. Malformed input wraps ErrNotFound so lookups with it miss.
func NormalizeMAC(mac string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(mac))
	if err != nil || len(hw) != 6 {
		return "", fmt.Errorf("onu %q: malformed mac: %w", mac, ErrNotFound)
	}
	return hw.String(), nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return 50
	case n > 1000:
		return 1000
	}
	return n
}
