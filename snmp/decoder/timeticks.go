package decoder

import (
	"fmt"
	"strings"
)

// DecodeTimeticks renders an uptime as "{d}d {h}h {m}m", omitting the day
// segment when it is zero.
//
// Accepted inputs:
//
//	830779309                              raw ticks (1/100 s)
//	"Timeticks: (830779309) 96 days, ..."  textual agent output, ticks in parens
//	"96:03:43"                             already split D:HH:MM, optionally :SS
func DecodeTimeticks(raw interface{}) string {
	if s, ok := textual(raw); ok && strings.Contains(s, ":") {
		if strings.Contains(s, ")") {
			return DecodeTimeticks(parenthesised(s))
		}
		return formatClock(s)
	}

	ticks, err := toInt64(raw)
	if err != nil || ticks < 0 {
		ticks = 0
	}
	secs := ticks / 100
	days := secs / 86400
	hours := (secs - days*86400) / 3600
	mins := (secs - days*86400 - hours*3600) / 60
	return formatUptime(fmt.Sprint(days), fmt.Sprint(hours), fmt.Sprint(mins))
}

func textual(raw interface{}) (string, bool) {
	switch x := raw.(type) {
	case string:
		return strings.TrimSpace(x), true
	case []byte:
		return strings.TrimSpace(string(x)), true
	default:
		return "", false
	}
}

// parenthesised returns the text between the first "(" and the following ")".
func parenthesised(s string) string {
	open := strings.Index(s, "(")
	if open < 0 {
		return ""
	}
	rest := s[open+1:]
	if end := strings.Index(rest, ")"); end >= 0 {
		return strings.TrimSpace(rest[:end])
	}
	return strings.TrimSpace(rest)
}

// formatClock handles the "D:HH:MM[:SS]" form. The first field is always
// days; missing trailing fields render as zero.
func formatClock(s string) string {
	parts := strings.Split(s, ":")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return formatUptime(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]))
}

func formatUptime(d, h, m string) string {
	if d == "" || d == "0" {
		return fmt.Sprintf("%sh %sm", h, m)
	}
	return fmt.Sprintf("%sd %sh %sm", d, h, m)
}
