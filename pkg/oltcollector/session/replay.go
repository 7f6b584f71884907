package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/vpbank/olt_collector/snmp/decoder"
)

// ─────────────────────────────────────────────────────────────────────────────
// Replay — offline agent backed by snmpwalk output
// ─────────────────────────────────────────────────────────────────────────────

// Replay serves Get and Walk from a captured `snmpwalk -On` dump, so a device
// can be polled offline:
//
//	.1.3.6.1.2.1.2.2.1.2.1 = STRING: "EPON0/1"
//	.1.3.6.1.2.1.1.3.0 = Timeticks: (830779309) 96 days, 3:43:13.09
//
// Values pass through decoder.FilterValue, so they reach the decoders in the
// same textual shape a NetSNMP-based poller would see.
type Replay struct {
	rows Table
}

// namedEnum matches MIB-resolved enumerations such as "up(1)".
var namedEnum = regexp.MustCompile(`^[A-Za-z][\w-]*\((-?\d+)\)$`)

// LoadReplay parses a dump from r. Lines without " = " continue the previous
// value: inside an open quoted STRING they keep their line break (multi-line
// sysDescr banners), otherwise they are joined with a space (wrapped
// Hex-STRING output).
func LoadReplay(r io.Reader) (*Replay, error) {
	rp := &Replay{}
	var (
		lastKey string
		lastVal strings.Builder
	)
	flush := func() {
		if lastKey != "" {
			if v := replayValue(lastVal.String()); v != nil {
				rp.rows.Append(lastKey, v)
			}
		}
		lastKey = ""
		lastVal.Reset()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		oid, val, ok := strings.Cut(line, " = ")
		if !ok {
			if lastKey == "" {
				continue
			}
			if strings.Count(lastVal.String(), `"`)%2 == 1 {
				lastVal.WriteString("\n")
				lastVal.WriteString(line)
			} else if strings.TrimSpace(line) != "" {
				lastVal.WriteString(" ")
				lastVal.WriteString(strings.TrimSpace(line))
			}
			continue
		}
		flush()
		lastKey = replayOID(oid)
		lastVal.WriteString(val)
	}
	flush()
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("session: replay: %w", err)
	}
	return rp, nil
}

// OpenReplay loads a dump file.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("session: replay: %w", err)
	}
	defer f.Close()
	return LoadReplay(f)
}

// Len returns the number of captured varbinds.
func (r *Replay) Len() int { return r.rows.Len() }

// Get returns the captured value of oid.
func (r *Replay) Get(_ context.Context, oid string) (interface{}, error) {
	v, ok := r.rows.Lookup(normaliseOID(oid))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoValue, oid)
	}
	return v, nil
}

// Walk returns the captured rows under root in dump order.
func (r *Replay) Walk(_ context.Context, root string, stripPrefix bool) (Table, error) {
	prefix := normaliseOID(root) + "."
	var t Table
	for _, row := range r.rows.Rows {
		if strings.HasPrefix(row.Key, prefix) {
			t.Append(rowKey(root, row.Key, stripPrefix), row.Value)
		}
	}
	return t, nil
}

// Close is a no-op.
func (r *Replay) Close() error { return nil }

// replayOID normalises the left-hand side: numeric with or without leading
// dot, or the "iso." spelling snmpwalk uses when MIBs are not loaded.
func replayOID(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "iso.") {
		s = "1." + strings.TrimPrefix(s, "iso.")
	}
	return normaliseOID(s)
}

func replayValue(s string) interface{} {
	s = decoder.FilterValue(s)
	if m := namedEnum.FindStringSubmatch(strings.TrimSpace(s)); m != nil {
		return m[1]
	}
	if strings.HasPrefix(s, "No Such") || strings.HasPrefix(s, "No more variables") {
		return nil
	}
	return s
}
