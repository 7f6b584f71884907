// Package session is the SNMP transport used by the OLT poller. It wraps a
// gosnmp session behind an explicit, validated Config, tracks whether the
// underlying connection was opened for reading or writing, and exposes the
// three primitives the collector needs: Get, Walk and a validated Set.
package session

import (
	"fmt"
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config enumerates every supported transport option. Zero-valued optional
// fields are filled by withDefaults; Validate rejects the rest.
type Config struct {
	// Target is the agent IP address or hostname (required).
	Target string

	// Port is the agent UDP port (default 161).
	Port int

	// Version is the SNMP version: "1", "2c" (default) or "3".
	Version string

	// Community is the read community (v1/v2c).
	Community string

	// WriteCommunity is used for Set; it defaults to Community when empty.
	WriteCommunity string

	// Timeout bounds a single request (default 3s).
	Timeout time.Duration

	// Retries is the number of retransmissions after a timeout.
	Retries int

	// ExponentialTimeout doubles Timeout on every retry.
	ExponentialTimeout bool

	// MaxOids caps the number of OIDs per Get PDU (default 60).
	MaxOids int

	// MaxRepetitions is the GetBulk repetition count used by Walk on v2c/v3
	// (default 10).
	MaxRepetitions uint32

	// V3 carries USM credentials (required for version "3").
	V3 *V3Credentials
}

// V3Credentials holds a single set of SNMPv3 security parameters.
type V3Credentials struct {
	// Username is the SNMPv3 security name.
	Username string

	// AuthenticationProtocol is one of: noauth, md5, sha, sha224, sha256, sha384, sha512.
	AuthenticationProtocol string

	// AuthenticationPassphrase is the passphrase for the chosen auth protocol.
	AuthenticationPassphrase string

	// PrivacyProtocol is one of: nopriv, des, aes, aes192, aes256, aes192c, aes256c.
	PrivacyProtocol string

	// PrivacyPassphrase is the passphrase for the chosen privacy protocol.
	PrivacyPassphrase string
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 161
	}
	if c.Version == "" {
		c.Version = "2c"
	}
	if c.WriteCommunity == "" {
		c.WriteCommunity = c.Community
	}
	if c.Timeout == 0 {
		c.Timeout = 3 * time.Second
	}
	if c.MaxOids <= 0 {
		c.MaxOids = 60
	}
	if c.MaxRepetitions == 0 {
		c.MaxRepetitions = 10
	}
	return c
}

// Validate reports every problem with c at once. Defaults are applied first,
// so only genuinely invalid settings are rejected.
func (c Config) Validate() error {
	c = c.withDefaults()

	var problems []string
	if strings.TrimSpace(c.Target) == "" {
		problems = append(problems, "target is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.Timeout < 0 {
		problems = append(problems, "timeout must not be negative")
	}
	if c.Retries < 0 {
		problems = append(problems, "retries must not be negative")
	}
	switch c.Version {
	case "1", "2c":
		if c.Community == "" {
			problems = append(problems, fmt.Sprintf("community is required for version %s", c.Version))
		}
	case "3":
		if c.V3 == nil || c.V3.Username == "" {
			problems = append(problems, "v3 username is required for version 3")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported SNMP version %q", c.Version))
	}

	if len(problems) > 0 {
		return fmt.Errorf("session: invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
