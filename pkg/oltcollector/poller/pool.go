package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vpbank/olt_collector/pkg/oltcollector/session"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// PoolOptions configures the session pool.
type PoolOptions struct {
	// MaxIdlePerDevice is the maximum number of idle sessions kept per OLT
	// (default 2). Excess sessions returned via Put are closed immediately.
	MaxIdlePerDevice int

	// IdleTimeout is how long an idle session remains in the pool before being
	// discarded. Zero means no expiry.
	IdleTimeout time.Duration

	// Dial creates new sessions. Defaults to session.New.
	Dial func(session.Config, *slog.Logger) (*session.Session, error)
}

func (o *PoolOptions) defaults() {
	if o.MaxIdlePerDevice <= 0 {
		o.MaxIdlePerDevice = 2
	}
	if o.Dial == nil {
		o.Dial = session.New
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Session pool
// ─────────────────────────────────────────────────────────────────────────────

type poolEntry struct {
	sess       *session.Session
	returnedAt time.Time
}

// devicePool is the per-OLT idle list and concurrency semaphore.
type devicePool struct {
	mu   sync.Mutex
	idle []poolEntry // LIFO

	sem chan struct{}
}

// SessionPool manages sessions keyed by OLT name. It enforces per-OLT
// concurrency limits and recycles idle sessions.
type SessionPool struct {
	opts   PoolOptions
	logger *slog.Logger

	mu    sync.RWMutex
	pools map[string]*devicePool

	closed chan struct{}
}

// NewSessionPool creates a ready-to-use pool.
func NewSessionPool(opts PoolOptions, logger *slog.Logger) *SessionPool {
	opts.defaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &SessionPool{
		opts:   opts,
		logger: logger,
		pools:  make(map[string]*devicePool),
		closed: make(chan struct{}),
	}
}

// Get acquires a session for the named OLT. It blocks while maxConcurrent
// sessions are already out, and respects context cancellation.
func (p *SessionPool) Get(ctx context.Context, name string, cfg session.Config, maxConcurrent int) (*session.Session, error) {
	dp := p.getOrCreatePool(name, maxConcurrent)

	select {
	case <-p.closed:
		return nil, fmt.Errorf("pool closed")
	default:
	}

	select {
	case dp.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, fmt.Errorf("pool closed")
	}

	if sess := p.popIdle(dp); sess != nil {
		return sess, nil
	}

	sess, err := p.opts.Dial(cfg, p.logger)
	if err != nil {
		<-dp.sem
		return nil, err
	}
	return sess, nil
}

// Put returns a session for reuse and releases the concurrency slot. When
// the idle list is full the session is closed.
func (p *SessionPool) Put(name string, sess *session.Session) {
	dp := p.getPool(name)
	if dp == nil {
		_ = sess.Close()
		return
	}
	defer func() { <-dp.sem }()

	dp.mu.Lock()
	defer dp.mu.Unlock()

	if len(dp.idle) >= p.opts.MaxIdlePerDevice {
		_ = sess.Close()
		return
	}
	dp.idle = append(dp.idle, poolEntry{sess: sess, returnedAt: time.Now()})
}

// Discard closes a session known to be unhealthy and releases its slot.
func (p *SessionPool) Discard(name string, sess *session.Session) {
	_ = sess.Close()
	if dp := p.getPool(name); dp != nil {
		<-dp.sem
	}
}

// Close drains all idle sessions and prevents new Get calls.
func (p *SessionPool) Close() error {
	select {
	case <-p.closed:
		return nil
	default:
	}
	close(p.closed)

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, dp := range p.pools {
		dp.mu.Lock()
		for _, e := range dp.idle {
			_ = e.sess.Close()
		}
		dp.idle = nil
		dp.mu.Unlock()
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

func (p *SessionPool) getOrCreatePool(name string, maxConcurrent int) *devicePool {
	p.mu.RLock()
	dp, ok := p.pools[name]
	p.mu.RUnlock()
	if ok {
		return dp
	}

	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if dp, ok = p.pools[name]; ok {
		return dp
	}
	dp = &devicePool{
		idle: make([]poolEntry, 0, p.opts.MaxIdlePerDevice),
		sem:  make(chan struct{}, maxConcurrent),
	}
	p.pools[name] = dp
	return dp
}

func (p *SessionPool) getPool(name string) *devicePool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pools[name]
}

func (p *SessionPool) popIdle(dp *devicePool) *session.Session {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	for len(dp.idle) > 0 {
		n := len(dp.idle) - 1
		entry := dp.idle[n]
		dp.idle = dp.idle[:n]

		if p.opts.IdleTimeout > 0 && time.Since(entry.returnedAt) > p.opts.IdleTimeout {
			_ = entry.sess.Close()
			continue
		}
		return entry.sess
	}
	return nil
}

type noopWriter struct{}

func (noopWriter) Write(b []byte) (int, error) { return len(b), nil }
