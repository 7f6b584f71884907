package decoder

import "regexp"

// textFilters strip the type annotations a textual SNMP agent or CLI tool
// prefixes to values, leaving the bare payload.
var textFilters = []*regexp.Regexp{
	regexp.MustCompile(`"`),
	regexp.MustCompile(`(?i)Hex-`),
	regexp.MustCompile(`(?i)OID: `),
	regexp.MustCompile(`(?i)STRING: `),
	regexp.MustCompile(`Gauge32: `),
	regexp.MustCompile(`(?i)INTEGER: `),
	regexp.MustCompile(`(?i)Counter32: `),
	regexp.MustCompile(`(?i)SNMPv2-SMI::enterprises\.`),
	regexp.MustCompile(`(?i)iso\.3\.6\.1\.4\.1\.`),
}

// FilterValue removes textual type annotations from s, e.g.
// `STRING: "EPON0/1"` → `EPON0/1` and `INTEGER: 2` → `2`.
func FilterValue(s string) string {
	for _, re := range textFilters {
		s = re.ReplaceAllString(s, "")
	}
	return s
}
