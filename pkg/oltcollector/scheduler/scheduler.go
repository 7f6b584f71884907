package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vpbank/olt_collector/pkg/oltcollector/config"
	"github.com/vpbank/olt_collector/pkg/oltcollector/poller"
)

// ─────────────────────────────────────────────────────────────────────────────
// JobSubmitter
// ─────────────────────────────────────────────────────────────────────────────

// JobSubmitter is the subset of poller.WorkerPool consumed by the scheduler.
type JobSubmitter interface {
	Submit(poller.PollJob) bool
	TrySubmit(poller.PollJob) bool
}

// DefaultTriggerCooldown is the minimum spacing between two polls of the
// same OLT started by Trigger.
const DefaultTriggerCooldown = 10 * time.Second

// ─────────────────────────────────────────────────────────────────────────────
// Scheduler
// ─────────────────────────────────────────────────────────────────────────────

// entry tracks the next-fire time of one OLT.
type entry struct {
	name     string
	ip       string
	interval time.Duration
	nextRun  time.Time
	lastRun  time.Time
	job      poller.PollJob
}

// Scheduler dispatches PollJob values into a JobSubmitter at each OLT's
// configured PollInterval.
type Scheduler struct {
	pool     JobSubmitter
	logger   *slog.Logger
	cooldown time.Duration

	mu      sync.Mutex
	entries []entry

	wake chan struct{}
	done chan struct{}
}

// New creates a Scheduler. Call Start to begin dispatching.
func New(cfg *config.LoadedConfig, pool JobSubmitter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	s := &Scheduler{
		pool:     pool,
		logger:   logger,
		cooldown: DefaultTriggerCooldown,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	s.entries = s.buildEntries(cfg)
	return s
}

// SetTriggerCooldown overrides DefaultTriggerCooldown. Zero disables it.
func (s *Scheduler) SetTriggerCooldown(d time.Duration) {
	s.mu.Lock()
	s.cooldown = d
	s.mu.Unlock()
}

// Start runs the scheduling loop. It blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)

	for {
		s.mu.Lock()
		if len(s.entries) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			case <-time.After(500 * time.Millisecond):
				continue
			}
		}

		sort.Slice(s.entries, func(i, j int) bool {
			return s.entries[i].nextRun.Before(s.entries[j].nextRun)
		})
		next := s.entries[0].nextRun
		s.mu.Unlock()

		delay := time.Until(next)
		if delay < 0 {
			delay = 0
		}
		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
			continue
		case <-timer.C:
		}

		now := time.Now()
		s.mu.Lock()
		for i := range s.entries {
			if s.entries[i].nextRun.After(now) {
				break
			}
			s.fireEntry(&s.entries[i], now)
		}
		s.mu.Unlock()
	}
}

// Stop waits for the scheduling loop to exit. The caller must cancel the
// context passed to Start first.
func (s *Scheduler) Stop() {
	<-s.done
}

// Reload atomically replaces the running config. New OLTs are polled
// immediately; removed OLTs stop.
func (s *Scheduler) Reload(cfg *config.LoadedConfig) {
	newEntries := s.buildEntries(cfg)
	s.mu.Lock()
	s.entries = newEntries
	s.mu.Unlock()
	s.poke()
	s.logger.Info("scheduler: config reloaded", "devices", len(newEntries))
}

// Entries returns the number of active entries.
func (s *Scheduler) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Trigger polls the named OLT now, unless it was polled within the trigger
// cooldown. The regular cycle restarts from this poll. It reports whether a
// job was submitted.
func (s *Scheduler) Trigger(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].name == name {
			return s.triggerLocked(&s.entries[i])
		}
	}
	return false
}

// TriggerByIP is Trigger keyed by the OLT management address, as seen in a
// trap's source IP.
func (s *Scheduler) TriggerByIP(ip string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ip == ip {
			return s.entries[i].name, s.triggerLocked(&s.entries[i])
		}
	}
	return "", false
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

func (s *Scheduler) buildEntries(cfg *config.LoadedConfig) []entry {
	jobs := ResolveJobs(cfg, s.logger)

	now := time.Now()
	entries := make([]entry, 0, len(jobs))
	for _, job := range jobs {
		interval := time.Duration(cfg.Devices[job.Device.Name].PollInterval) * time.Second
		if interval <= 0 {
			interval = config.DefaultPollInterval * time.Second
		}
		entries = append(entries, entry{
			name:     job.Device.Name,
			ip:       job.Device.IPAddress,
			interval: interval,
			nextRun:  now,
			job:      job,
		})
	}
	return entries
}

func (s *Scheduler) triggerLocked(e *entry) bool {
	now := time.Now()
	if s.cooldown > 0 && !e.lastRun.IsZero() && now.Sub(e.lastRun) < s.cooldown {
		s.logger.Debug("scheduler: trigger within cooldown, ignored", "device", e.name)
		return false
	}
	ok := s.fireEntry(e, now)
	s.poke()
	return ok
}

// fireEntry submits the entry's job without blocking and schedules the next
// run. Callers hold mu.
func (s *Scheduler) fireEntry(e *entry, now time.Time) bool {
	e.lastRun = now
	e.nextRun = now.Add(e.interval)
	if !s.pool.TrySubmit(e.job) {
		s.logger.Warn("scheduler: job queue full, dropping job", "device", e.name)
		return false
	}
	s.logger.Debug("scheduler: fired job", "device", e.name)
	return true
}

// poke wakes the loop so it recomputes the next deadline.
func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
