package decoder

import (
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DecodeBinaryMac converts an ONU MAC value to "aa:bb:cc:dd:ee:ff".
//
// The value may be the 6 raw octets, a quoted hex string, or the spaced
// "Hex-STRING" rendering ("00 1A 2B 3C 4D 5E "). Cleaned values shorter than
// 10 characters are taken as raw octets and hex-encoded.
func DecodeBinaryMac(raw interface{}) string {
	var s string
	switch x := raw.(type) {
	case nil:
		return ""
	case []byte:
		if len(x) == 6 {
			return net.HardwareAddr(x).String()
		}
		s = string(x)
	case string:
		s = x
	default:
		s = fmt.Sprintf("%v", raw)
	}

	if len(s) == 18 {
		s = strings.ReplaceAll(s, " ", "")
	}
	s = strings.Trim(s, " \"")
	s = stripSlashes(s)
	if len(s) < 10 {
		s = hex.EncodeToString([]byte(s))
	}
	return colonize(strings.ToLower(s))
}

// DecodeOidSuffixToMac converts the last six components of an OID (an index
// that encodes a MAC, e.g. "...3.0.26.91.2.224.17.8") to "00:1a:5b:02:e0:11"
// form. Missing or non-numeric components decode as 00.
func DecodeOidSuffixToMac(oid string) string {
	parts := strings.Split(strings.Trim(oid, "."), ".")
	var b strings.Builder
	for i := len(parts) - 6; i < len(parts); i++ {
		var n uint64
		if i >= 0 {
			n, _ = strconv.ParseUint(parts[i], 10, 64)
		}
		fmt.Fprintf(&b, "%02x", n&0xff)
	}
	return colonize(b.String())
}

// colonize inserts ':' after each of the first five 2-character groups.
func colonize(s string) string {
	var b strings.Builder
	pos := 0
	for g := 0; g < 5 && pos+2 <= len(s); g++ {
		b.WriteString(s[pos : pos+2])
		b.WriteByte(':')
		pos += 2
	}
	b.WriteString(s[pos:])
	return b.String()
}

// stripSlashes removes backslash escapes, keeping the escaped character.
func stripSlashes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			if i < len(s) {
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
