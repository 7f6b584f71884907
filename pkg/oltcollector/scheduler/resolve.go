// Package scheduler dispatches one PollJob per configured OLT at the OLT's
// poll interval, and lets the trap path request an early poll.
package scheduler

import (
	"log/slog"

	"github.com/vpbank/olt_collector/pkg/oltcollector/config"
	"github.com/vpbank/olt_collector/pkg/oltcollector/poller"
)

// ResolveJobs returns one PollJob per configured OLT, ordered by name.
func ResolveJobs(cfg *config.LoadedConfig, logger *slog.Logger) []poller.PollJob {
	if cfg == nil {
		return nil
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	names := cfg.DeviceNames()
	jobs := make([]poller.PollJob, 0, len(names))
	for _, name := range names {
		dev := cfg.Devices[name]
		jobs = append(jobs, poller.PollJob{
			Device:             dev.Device(name),
			Session:            dev.SessionConfig(),
			MaxConcurrentPolls: dev.MaxConcurrentPolls,
		})
		logger.Debug("scheduler: resolved job", "device", name, "ip", dev.IP, "interval_s", dev.PollInterval)
	}
	return jobs
}
