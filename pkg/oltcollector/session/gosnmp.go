package session

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// ─────────────────────────────────────────────────────────────────────────────
// Dial — Config → *gosnmp.GoSNMP
// ─────────────────────────────────────────────────────────────────────────────

// dial creates and connects a gosnmp session for cfg using the given
// community (read or write, chosen by the caller).
func dial(cfg Config, community string, logger *slog.Logger) (*gosnmp.GoSNMP, error) {
	g := &gosnmp.GoSNMP{
		Target:             cfg.Target,
		Port:               uint16(cfg.Port),
		Timeout:            cfg.Timeout,
		Retries:            cfg.Retries,
		ExponentialTimeout: cfg.ExponentialTimeout,
		MaxOids:            cfg.MaxOids,
		MaxRepetitions:     cfg.MaxRepetitions,
		Logger:             gosnmp.NewLogger(slogAdapter{logger}),
	}

	switch cfg.Version {
	case "1":
		g.Version = gosnmp.Version1
		g.Community = community
	case "2c":
		g.Version = gosnmp.Version2c
		g.Community = community
	case "3":
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel
		cred := cfg.V3
		g.MsgFlags = snmpv3MsgFlags(cred)
		g.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 cred.Username,
			AuthenticationProtocol:   mapAuthProto(cred.AuthenticationProtocol),
			AuthenticationPassphrase: cred.AuthenticationPassphrase,
			PrivacyProtocol:          mapPrivProto(cred.PrivacyProtocol),
			PrivacyPassphrase:        cred.PrivacyPassphrase,
		}
	default:
		return nil, fmt.Errorf("unsupported SNMP version %q", cfg.Version)
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s:%d: %w", cfg.Target, cfg.Port, err)
	}
	return g, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SNMPv3 helpers
// ─────────────────────────────────────────────────────────────────────────────

func snmpv3MsgFlags(cred *V3Credentials) gosnmp.SnmpV3MsgFlags {
	hasAuth := cred.AuthenticationProtocol != "" &&
		!strings.EqualFold(cred.AuthenticationProtocol, "noauth")
	hasPriv := cred.PrivacyProtocol != "" &&
		!strings.EqualFold(cred.PrivacyProtocol, "nopriv")

	switch {
	case hasAuth && hasPriv:
		return gosnmp.AuthPriv
	case hasAuth:
		return gosnmp.AuthNoPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func mapAuthProto(s string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToLower(s) {
	case "md5":
		return gosnmp.MD5
	case "sha":
		return gosnmp.SHA
	case "sha224":
		return gosnmp.SHA224
	case "sha256":
		return gosnmp.SHA256
	case "sha384":
		return gosnmp.SHA384
	case "sha512":
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

func mapPrivProto(s string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToLower(s) {
	case "des":
		return gosnmp.DES
	case "aes":
		return gosnmp.AES
	case "aes192":
		return gosnmp.AES192
	case "aes256":
		return gosnmp.AES256
	case "aes192c":
		return gosnmp.AES192C
	case "aes256c":
		return gosnmp.AES256C
	default:
		return gosnmp.NoPriv
	}
}

// slogAdapter bridges slog.Logger to gosnmp's Logger interface (Printf-style).
type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Print(v ...interface{}) {
	a.l.Debug(fmt.Sprint(v...))
}

func (a slogAdapter) Printf(format string, v ...interface{}) {
	a.l.Debug(fmt.Sprintf(format, v...))
}
