package session

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// ─────────────────────────────────────────────────────────────────────────────
// Set validation
// ─────────────────────────────────────────────────────────────────────────────

// typeLetters are the accepted value type letters, as used by snmpset:
//
//	i INTEGER  u UNSIGNED  t TIMETICKS  a IPADDRESS  o OBJID
//	s STRING   x HEX STRING  d DECIMAL STRING  n NULLOBJ  b BITS
const typeLetters = "iutaosxdnb"

// illegalData matches characters that are never written to an agent, and
// trailing dots.
var illegalData = regexp.MustCompile(`[^.A-Za-z0-9_ !@#$%^&()+={}\[\]',~` + "`" + `\-":;\\/*|><?]|\.+$`)

// ValidationError lists every integrity problem found in a set request.
type ValidationError struct {
	OIDs   int // number of OIDs supplied
	Types  int // number of type letters supplied
	Values int // number of values supplied

	// Mismatched names the argument lists whose lengths disagree with the
	// OID list, e.g. ["types", "values"].
	Mismatched []string

	// BadTypes holds the positions and raw input of unknown type letters.
	BadTypes map[int]string

	// MissingType is set when no type letter was supplied at all.
	MissingType bool
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.MissingType {
		parts = append(parts, "missing SNMP type")
	}
	if len(e.Mismatched) > 0 {
		parts = append(parts, fmt.Sprintf("element count mismatch (oids=%d types=%d values=%d): %s",
			e.OIDs, e.Types, e.Values, strings.Join(e.Mismatched, ", ")))
	}
	if len(e.BadTypes) > 0 {
		bad := make([]string, 0, len(e.BadTypes))
		for i := 0; i < e.Types; i++ {
			if t, ok := e.BadTypes[i]; ok {
				bad = append(bad, fmt.Sprintf("%d:%q", i, t))
			}
		}
		parts = append(parts, "type mismatch at "+strings.Join(bad, ", "))
	}
	return "session: invalid set request: " + strings.Join(parts, "; ")
}

// SetVar is one validated OID/type/value triple.
type SetVar struct {
	OID   string
	Type  byte
	Value string
}

// SetRequest is a validated, correlated list of writes.
type SetRequest struct {
	Vars []SetVar
}

// SetResult is either a validated request or the reasons it was rejected.
type SetResult struct {
	Request SetRequest
	Err     *ValidationError
}

// OK reports whether the request passed validation.
func (r SetResult) OK() bool { return r.Err == nil }

// BuildSetRequest correlates parallel oid/type/value lists. A single type
// letter applies to every value. Type inputs are reduced to their first
// letter, lowercased; values are cleaned of characters an agent must not
// receive.
func BuildSetRequest(oids, types, values []string) SetResult {
	verr := &ValidationError{OIDs: len(oids), Types: len(types), Values: len(values)}

	letters := make([]byte, len(types))
	for i, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || !strings.ContainsRune(typeLetters, rune(t[0])) {
			if verr.BadTypes == nil {
				verr.BadTypes = make(map[int]string)
			}
			verr.BadTypes[i] = types[i]
			continue
		}
		letters[i] = t[0]
	}

	switch {
	case len(types) == 0:
		verr.MissingType = true
		if len(values) != len(oids) {
			verr.Mismatched = append(verr.Mismatched, "values")
		}
	case len(types) == 1:
		if len(values) != len(oids) {
			verr.Mismatched = append(verr.Mismatched, "values")
		}
	default:
		if len(types) != len(oids) {
			verr.Mismatched = append(verr.Mismatched, "types")
		}
		if len(values) != len(oids) {
			verr.Mismatched = append(verr.Mismatched, "values")
		}
	}

	if verr.MissingType || len(verr.Mismatched) > 0 || len(verr.BadTypes) > 0 {
		return SetResult{Err: verr}
	}

	req := SetRequest{Vars: make([]SetVar, len(oids))}
	for i, oid := range oids {
		letter := letters[0]
		if len(letters) > 1 {
			letter = letters[i]
		}
		req.Vars[i] = SetVar{
			OID:   normaliseOID(oid),
			Type:  letter,
			Value: illegalData.ReplaceAllString(values[i], ""),
		}
	}
	return SetResult{Request: req}
}

// PDUs converts the request into gosnmp varbinds. Values that do not parse
// for their type are sent as octet strings.
func (r SetRequest) PDUs() []gosnmp.SnmpPDU {
	pdus := make([]gosnmp.SnmpPDU, 0, len(r.Vars))
	for _, v := range r.Vars {
		pdus = append(pdus, v.pdu())
	}
	return pdus
}

func (v SetVar) pdu() gosnmp.SnmpPDU {
	p := gosnmp.SnmpPDU{Name: "." + v.OID}
	switch v.Type {
	case 'i':
		if n, err := strconv.Atoi(v.Value); err == nil {
			p.Type, p.Value = gosnmp.Integer, n
			return p
		}
	case 'u':
		if n, err := strconv.ParseUint(v.Value, 10, 32); err == nil {
			p.Type, p.Value = gosnmp.Gauge32, uint(n)
			return p
		}
	case 't':
		if n, err := strconv.ParseUint(v.Value, 10, 32); err == nil {
			p.Type, p.Value = gosnmp.TimeTicks, uint32(n)
			return p
		}
	case 'a':
		p.Type, p.Value = gosnmp.IPAddress, v.Value
		return p
	case 'o':
		p.Type, p.Value = gosnmp.ObjectIdentifier, v.Value
		return p
	case 'x':
		if b, err := hex.DecodeString(strings.ReplaceAll(v.Value, " ", "")); err == nil {
			p.Type, p.Value = gosnmp.OctetString, b
			return p
		}
	case 'd':
		if b, ok := decimalBytes(v.Value); ok {
			p.Type, p.Value = gosnmp.OctetString, b
			return p
		}
	case 'n':
		p.Type, p.Value = gosnmp.Null, nil
		return p
	}
	p.Type, p.Value = gosnmp.OctetString, []byte(v.Value)
	return p
}

// decimalBytes parses "1.2.255" or "1 2 255" into raw bytes.
func decimalBytes(s string) ([]byte, bool) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == ' ' })
	out := make([]byte, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseUint(f, 10, 8)
		if err != nil {
			return nil, false
		}
		out = append(out, byte(n))
	}
	return out, true
}
