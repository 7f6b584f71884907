package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gosnmp/gosnmp"

	"github.com/vpbank/olt_collector/snmp/decoder"
)

// ErrNoValue is returned by Get when the agent answered with an exception
// (noSuchObject, noSuchInstance, endOfMibView) or an empty value.
var ErrNoValue = errors.New("session: no value")

// ─────────────────────────────────────────────────────────────────────────────
// Session mode state machine
// ─────────────────────────────────────────────────────────────────────────────

// State is the connection state of a Session.
type State int

const (
	Disconnected State = iota
	ReadSession
	WriteSession
)

func (s State) String() string {
	switch s {
	case ReadSession:
		return "read"
	case WriteSession:
		return "write"
	default:
		return "disconnected"
	}
}

// Mode is the access mode an operation needs.
type Mode int

const (
	Read Mode = iota
	Write
)

// Transition returns the state a session must be in to serve mode, and
// whether getting there requires (re)opening the connection.
func Transition(cur State, mode Mode) (next State, reconnect bool) {
	next = ReadSession
	if mode == Write {
		next = WriteSession
	}
	return next, cur != next
}

// ─────────────────────────────────────────────────────────────────────────────
// Session
// ─────────────────────────────────────────────────────────────────────────────

// Session is a single-agent SNMP session. Reads use the read community and
// writes the write community; switching between them reopens the underlying
// connection. A Session is safe for concurrent use, but operations are
// serialised.
type Session struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	state State
	conn  *gosnmp.GoSNMP
}

// New validates cfg and returns a disconnected Session. The connection is
// opened lazily by the first operation.
func New(cfg Config, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Session{cfg: cfg.withDefaults(), logger: logger}, nil
}

// Config returns the effective (defaulted) configuration.
func (s *Session) Config() Config { return s.cfg }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close releases the connection and returns to Disconnected.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	var err error
	if s.conn != nil && s.conn.Conn != nil {
		err = s.conn.Conn.Close()
	}
	s.conn = nil
	s.state = Disconnected
	return err
}

// enter moves the session into the state required by mode. Callers hold mu.
func (s *Session) enter(ctx context.Context, mode Mode) error {
	next, reconnect := Transition(s.state, mode)
	if reconnect {
		_ = s.closeLocked()
		community := s.cfg.Community
		if next == WriteSession {
			community = s.cfg.WriteCommunity
		}
		conn, err := dial(s.cfg, community, s.logger)
		if err != nil {
			return err
		}
		s.conn = conn
		s.state = next
		s.logger.Debug("session: connected", "target", s.cfg.Target, "mode", next.String())
	}
	s.conn.Context = ctx
	return nil
}

// Get fetches a single OID.
func (s *Session) Get(ctx context.Context, oid string) (interface{}, error) {
	vals, err := s.GetMany(ctx, []string{oid})
	if err != nil {
		return nil, err
	}
	v, ok := vals[normaliseOID(oid)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoValue, oid)
	}
	return v, nil
}

// GetMany fetches several OIDs, batching requests by MaxOids. The result is
// keyed by OID without leading dot; OIDs the agent has no value for are
// absent from the map.
func (s *Session) GetMany(ctx context.Context, oids []string) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, Read); err != nil {
		return nil, err
	}

	out := make(map[string]interface{}, len(oids))
	for i := 0; i < len(oids); i += s.cfg.MaxOids {
		end := i + s.cfg.MaxOids
		if end > len(oids) {
			end = len(oids)
		}
		pkt, err := s.conn.Get(oids[i:end])
		if err != nil {
			return out, fmt.Errorf("session: get %s: %w", s.cfg.Target, err)
		}
		if pkt.Error != gosnmp.NoError {
			return out, fmt.Errorf("session: get %s: agent error %s", s.cfg.Target, pkt.Error)
		}
		for _, pdu := range pkt.Variables {
			if v, ok := pduValue(pdu); ok {
				out[normaliseOID(pdu.Name)] = v
			}
		}
	}
	return out, nil
}

// Walk fetches the subtree under root. With stripPrefix the row keys are the
// index suffixes after root; otherwise they are full OIDs. v1 agents are
// walked with GetNext, v2c/v3 with GetBulk.
func (s *Session) Walk(ctx context.Context, root string, stripPrefix bool) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, Read); err != nil {
		return Table{}, err
	}

	var (
		pdus []gosnmp.SnmpPDU
		err  error
	)
	if s.cfg.Version == "1" {
		pdus, err = s.conn.WalkAll(root)
	} else {
		pdus, err = s.conn.BulkWalkAll(root)
	}

	var t Table
	for _, pdu := range pdus {
		if v, ok := pduValue(pdu); ok {
			t.Append(rowKey(root, pdu.Name, stripPrefix), v)
		}
	}
	if err != nil {
		return t, fmt.Errorf("session: walk %s %s: %w", s.cfg.Target, root, err)
	}
	return t, nil
}

// Set writes a validated request using the write community.
func (s *Session) Set(ctx context.Context, req SetRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(ctx, Write); err != nil {
		return err
	}
	pdus := req.PDUs()
	for i := 0; i < len(pdus); i += s.cfg.MaxOids {
		end := i + s.cfg.MaxOids
		if end > len(pdus) {
			end = len(pdus)
		}
		pkt, err := s.conn.Set(pdus[i:end])
		if err != nil {
			return fmt.Errorf("session: set %s: %w", s.cfg.Target, err)
		}
		if pkt.Error != gosnmp.NoError {
			return fmt.Errorf("session: set %s: agent error %s at index %d", s.cfg.Target, pkt.Error, pkt.ErrorIndex)
		}
	}
	return nil
}

// pduValue returns the native value of pdu, or false for exceptions.
func pduValue(pdu gosnmp.SnmpPDU) (interface{}, bool) {
	if decoder.IsErrorType(pdu.Type) || pdu.Value == nil {
		return nil, false
	}
	return pdu.Value, true
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
