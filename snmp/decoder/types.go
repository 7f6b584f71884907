// Package decoder turns raw SNMP values into typed OLT telemetry: temperatures,
// signal levels, distances, status enumerations, timeticks and MAC addresses.
//
// Every decoder is a pure function over the value shapes a session hands out:
// gosnmp integer kinds, []byte octet strings, and the textual NetSNMP forms
// ("INTEGER: 5", "Hex-STRING: 00 1A ...") once passed through FilterValue.
// Nothing here fails: unparseable input decodes to the documented default.
package decoder

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// IsErrorType returns true when the PDU type signals an SNMP retrieval error
// rather than an actual value. Callers should treat these as "no value".
func IsErrorType(t gosnmp.Asn1BER) bool {
	return t == gosnmp.NoSuchObject || t == gosnmp.NoSuchInstance || t == gosnmp.EndOfMibView || t == gosnmp.Null
}

// ─────────────────────────────────────────────────────────────────────────────
// Low-level conversion helpers
// ─────────────────────────────────────────────────────────────────────────────

// toInt64 converts a raw value to int64. Numeric strings are accepted so the
// textual agent output decodes the same as the binary one; fractional input
// is truncated toward zero.
func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("uint64 value %d overflows int64", x)
		}
		return int64(x), nil
	case float32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case string, []byte:
		s := toDisplayString(x)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to int64", s)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}

// toFloat64 widens any numeric type (or numeric string) to float64.
func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case string, []byte:
		s := toDisplayString(x)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to float64", s)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

// toDisplayString converts an OctetString to a string, stripping any trailing
// null bytes devices sometimes append and surrounding whitespace.
func toDisplayString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(strings.TrimRight(x, "\x00"))
	case []byte:
		return strings.TrimSpace(strings.TrimRight(string(x), "\x00"))
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToString exposes the display-string conversion for callers outside the
// package (banner and interface name values).
func ToString(v interface{}) string {
	return toDisplayString(v)
}

// roundTo rounds half away from zero to the given number of decimals.
func roundTo(f float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(f*p) / p
}
