// Package config provides YAML configuration loading for the OLT collector.
//
// It reads three directory trees, located by environment variables:
//
//	OLT_COLLECTOR_DEVICES_DIRECTORY_PATH   → Devices map
//	OLT_COLLECTOR_DEFAULTS_DIRECTORY_PATH  → DeviceDefaults
//	OLT_COLLECTOR_PROFILES_DIRECTORY_PATH  → per-model OID overrides
package config

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vpbank/olt_collector/pkg/oltcollector/profile"
)

// ─────────────────────────────────────────────────────────────────────────────
// Paths
// ─────────────────────────────────────────────────────────────────────────────

// Paths holds the directory locations for every configuration tree.
type Paths struct {
	Devices  string // OLT_COLLECTOR_DEVICES_DIRECTORY_PATH
	Defaults string // OLT_COLLECTOR_DEFAULTS_DIRECTORY_PATH
	Profiles string // OLT_COLLECTOR_PROFILES_DIRECTORY_PATH
}

// PathsFromEnv reads each path from its environment variable, falling back to
// the documented default when the variable is unset or empty.
func PathsFromEnv() Paths {
	return Paths{
		Devices:  envOr("OLT_COLLECTOR_DEVICES_DIRECTORY_PATH", "/etc/olt_collector/devices"),
		Defaults: envOr("OLT_COLLECTOR_DEFAULTS_DIRECTORY_PATH", "/etc/olt_collector/defaults"),
		Profiles: envOr("OLT_COLLECTOR_PROFILES_DIRECTORY_PATH", "/etc/olt_collector/profiles"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ─────────────────────────────────────────────────────────────────────────────
// LoadedConfig
// ─────────────────────────────────────────────────────────────────────────────

// LoadedConfig is the fully parsed representation of all configuration trees.
type LoadedConfig struct {
	// Devices maps OLT name → resolved DeviceConfig (defaults merged in).
	Devices map[string]DeviceConfig

	// DeviceDefault is the merged global device default.
	DeviceDefault DeviceDefaults

	// Profiles maps a firmware model string → OID override.
	Profiles map[string]profile.Override
}

// Registry returns the default profile registry with every loaded override
// registered on top.
func (c *LoadedConfig) Registry() *profile.Registry {
	reg := profile.DefaultRegistry()
	names := make([]string, 0, len(c.Profiles))
	for m := range c.Profiles {
		names = append(names, m)
	}
	sort.Strings(names)
	for _, m := range names {
		reg.Register(m, c.Profiles[m])
	}
	return reg
}

// DeviceNames returns the configured OLT names, sorted.
func (c *LoadedConfig) DeviceNames() []string {
	names := make([]string, 0, len(c.Devices))
	for n := range c.Devices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ─────────────────────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────────────────────

// Load reads all configuration directories specified by paths and returns a
// fully resolved LoadedConfig. Errors are accumulated and returned together
// so that operators see all problems at once.
//
// A directory that does not exist is skipped silently.
func Load(paths Paths, logger *slog.Logger) (*LoadedConfig, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	var errs []string

	defaults, err := loadDeviceDefaults(paths.Defaults, logger)
	if err != nil {
		errs = append(errs, err.Error())
	}

	devices, derrs := loadDevices(paths.Devices, defaults, logger)
	errs = append(errs, derrs...)

	profiles, perrs := loadProfiles(paths.Profiles, logger)
	errs = append(errs, perrs...)

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %d error(s):\n  %s", len(errs), strings.Join(errs, "\n  "))
	}

	return &LoadedConfig{
		Devices:       devices,
		DeviceDefault: defaults,
		Profiles:      profiles,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Device defaults
// ─────────────────────────────────────────────────────────────────────────────

type rawDefaults struct {
	Default rawDeviceEntry `yaml:"default"`
}

func loadDeviceDefaults(dir string, logger *slog.Logger) (DeviceDefaults, error) {
	var merged DeviceDefaults
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return merged, nil
		}
		return merged, fmt.Errorf("list defaults dir %q: %w", dir, err)
	}

	for _, path := range files {
		var raw rawDefaults
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("config: skip malformed defaults file", "file", path, "error", err.Error())
			continue
		}
		merged = mergeDefaults(merged, raw.Default)
		logger.Debug("config: loaded device defaults", "file", path)
	}
	return merged, nil
}

// mergeDefaults fills zero fields in dst with values from src. Earlier files
// win.
func mergeDefaults(dst DeviceDefaults, src rawDeviceEntry) DeviceDefaults {
	if dst.Port == 0 {
		dst.Port = src.Port
	}
	if dst.PollInterval == 0 {
		dst.PollInterval = src.PollInterval
	}
	if dst.Timeout == 0 {
		dst.Timeout = src.Timeout
	}
	if dst.Retries == 0 {
		dst.Retries = src.Retries
	}
	if dst.Version == "" {
		dst.Version = src.Version
	}
	if dst.Community == "" {
		dst.Community = src.Community
	}
	if dst.WriteCommunity == "" {
		dst.WriteCommunity = src.WriteCommunity
	}
	if dst.MaxConcurrentPolls == 0 {
		dst.MaxConcurrentPolls = src.MaxConcurrentPolls
	}
	return dst
}

// ─────────────────────────────────────────────────────────────────────────────
// Devices
// ─────────────────────────────────────────────────────────────────────────────

func loadDevices(dir string, defaults DeviceDefaults, logger *slog.Logger) (map[string]DeviceConfig, []string) {
	result := make(map[string]DeviceConfig)
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, []string{fmt.Sprintf("list devices dir %q: %v", dir, err)}
	}

	var errs []string
	for _, path := range files {
		var raw map[string]rawDeviceEntry
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("config: skip malformed device file", "file", path, "error", err.Error())
			continue
		}
		for name, entry := range raw {
			dev := resolveDevice(entry, defaults)
			if err := dev.SessionConfig().Validate(); err != nil {
				errs = append(errs, fmt.Sprintf("device %q (%s): %v", name, path, err))
				continue
			}
			if _, dup := result[name]; dup {
				errs = append(errs, fmt.Sprintf("device %q (%s): defined more than once", name, path))
				continue
			}
			result[name] = dev
		}
		logger.Debug("config: loaded device file", "file", path, "count", len(raw))
	}
	sort.Strings(errs)
	return result, errs
}

// resolveDevice merges a raw device entry with defaults, producing a
// fully-resolved DeviceConfig.
func resolveDevice(e rawDeviceEntry, d DeviceDefaults) DeviceConfig {
	return DeviceConfig{
		ID:                 e.ID,
		IP:                 e.IP,
		Port:               firstInt(e.Port, d.Port, DefaultPort),
		PollInterval:       firstInt(e.PollInterval, d.PollInterval, DefaultPollInterval),
		Timeout:            firstInt(e.Timeout, d.Timeout, DefaultTimeout),
		Retries:            firstInt(e.Retries, d.Retries, DefaultRetries),
		ExponentialTimeout: e.ExponentialTimeout,
		Version:            firstString(e.Version, d.Version, DefaultVersion),
		Community:          firstString(e.Community, d.Community),
		WriteCommunity:     firstString(e.WriteCommunity, d.WriteCommunity),
		V3:                 e.V3,
		MaxConcurrentPolls: firstInt(e.MaxConcurrentPolls, d.MaxConcurrentPolls, DefaultMaxConcurrentPolls),
		MaxOids:            e.MaxOids,
		MaxRepetitions:     e.MaxRepetitions,
	}
}

func firstInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ─────────────────────────────────────────────────────────────────────────────
// Profiles
// ─────────────────────────────────────────────────────────────────────────────

// rawProfileFile maps model → logical OID name → OID:
//
//	P3310C:
//	  sfp_temperature: 1.3.6.1.4.1.3320.9.183.1.1.13
//	  sfp_signal: 1.3.6.1.4.1.3320.9.183.1.1.8
type rawProfileFile map[string]map[string]string

func loadProfiles(dir string, logger *slog.Logger) (map[string]profile.Override, []string) {
	result := make(map[string]profile.Override)
	files, err := yamlFiles(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, []string{fmt.Sprintf("list profiles dir %q: %v", dir, err)}
	}

	var errs []string
	for _, path := range files {
		var raw rawProfileFile
		if err := decodeFile(path, &raw); err != nil {
			logger.Warn("config: skip malformed profile file", "file", path, "error", err.Error())
			continue
		}
		for model, oids := range raw {
			o := profile.Override(oids)
			if err := o.Validate(); err != nil {
				errs = append(errs, fmt.Sprintf("profile %q (%s): %v", model, path, err))
				continue
			}
			if result[model] == nil {
				result[model] = profile.Override{}
			}
			for k, v := range o {
				result[model][k] = v
			}
		}
		logger.Debug("config: loaded profile file", "file", path, "count", len(raw))
	}
	sort.Strings(errs)
	return result, errs
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// yamlFiles returns all *.yml / *.yaml files under dir, sorted by path.
func yamlFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yml" || ext == ".yaml" {
			paths = append(paths, p)
		}
		return nil
	})
	return paths, err
}

// decodeFile opens path and unmarshals the YAML content into out.
func decodeFile(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(false)
	return dec.Decode(out)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
