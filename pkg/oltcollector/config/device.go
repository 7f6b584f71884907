package config

import (
	"time"

	"github.com/vpbank/olt_collector/models"
	"github.com/vpbank/olt_collector/pkg/oltcollector/session"
)

// Hard-coded fallbacks for fields left unset in both the device entry and
// the defaults files.
const (
	DefaultPort               = 161
	DefaultPollInterval       = 300 // seconds
	DefaultTimeout            = 3000
	DefaultRetries            = 2
	DefaultVersion            = "2c"
	DefaultMaxConcurrentPolls = 1
)

// DeviceConfig is the fully-resolved configuration for a single OLT.
type DeviceConfig struct {
	// ID is the operator-assigned OLT id echoed in the report.
	ID int

	// IP is the management IP address of the OLT.
	IP string

	// Port is the UDP port for SNMP requests (default 161).
	Port int

	// PollInterval is the polling interval in seconds (default 300).
	PollInterval int

	// Timeout is the per-request timeout in milliseconds (default 3000).
	Timeout int

	// Retries is the number of retry attempts on timeout (default 2).
	Retries int

	// ExponentialTimeout enables exponential backoff between retries.
	ExponentialTimeout bool

	// Version is the SNMP version: "1", "2c", or "3".
	Version string

	// Community is the read community (v1/v2c).
	Community string

	// WriteCommunity is the community used for Set (defaults to Community).
	WriteCommunity string

	// V3 is the SNMPv3 credential set (v3 only).
	V3 *V3Credentials

	// MaxConcurrentPolls limits in-flight polls to this OLT (default 1).
	MaxConcurrentPolls int

	// MaxOids and MaxRepetitions tune request sizes; zero keeps the
	// session defaults.
	MaxOids        int
	MaxRepetitions uint32
}

// V3Credentials holds a single set of SNMPv3 security parameters.
type V3Credentials struct {
	Username                 string `yaml:"username"`
	AuthenticationProtocol   string `yaml:"authentication_protocol"`
	AuthenticationPassphrase string `yaml:"authentication_passphrase"`
	PrivacyProtocol          string `yaml:"privacy_protocol"`
	PrivacyPassphrase        string `yaml:"privacy_passphrase"`
}

// DeviceDefaults holds the values merged into every device entry.
type DeviceDefaults struct {
	Port               int
	PollInterval       int
	Timeout            int
	Retries            int
	Version            string
	Community          string
	WriteCommunity     string
	MaxConcurrentPolls int
}

// SessionConfig converts the device entry to a transport configuration.
func (d DeviceConfig) SessionConfig() session.Config {
	cfg := session.Config{
		Target:             d.IP,
		Port:               d.Port,
		Version:            d.Version,
		Community:          d.Community,
		WriteCommunity:     d.WriteCommunity,
		Timeout:            time.Duration(d.Timeout) * time.Millisecond,
		Retries:            d.Retries,
		ExponentialTimeout: d.ExponentialTimeout,
		MaxOids:            d.MaxOids,
		MaxRepetitions:     d.MaxRepetitions,
	}
	if d.V3 != nil {
		cfg.V3 = &session.V3Credentials{
			Username:                 d.V3.Username,
			AuthenticationProtocol:   d.V3.AuthenticationProtocol,
			AuthenticationPassphrase: d.V3.AuthenticationPassphrase,
			PrivacyProtocol:          d.V3.PrivacyProtocol,
			PrivacyPassphrase:        d.V3.PrivacyPassphrase,
		}
	}
	return cfg
}

// Device returns the report identity of the OLT configured under name.
func (d DeviceConfig) Device(name string) models.Device {
	return models.Device{
		ID:          d.ID,
		Name:        name,
		IPAddress:   d.IP,
		Port:        d.Port,
		SNMPVersion: d.Version,
	}
}

// rawDeviceEntry is the YAML form of a single device. Zero-valued fields
// are filled from the defaults during resolution.
type rawDeviceEntry struct {
	ID                 int            `yaml:"id"`
	IP                 string         `yaml:"ip"`
	Port               int            `yaml:"port"`
	PollInterval       int            `yaml:"poll_interval"`
	Timeout            int            `yaml:"timeout"`
	Retries            int            `yaml:"retries"`
	ExponentialTimeout bool           `yaml:"exponential_timeout"`
	Version            string         `yaml:"version"`
	Community          string         `yaml:"community"`
	WriteCommunity     string         `yaml:"write_community"`
	V3                 *V3Credentials `yaml:"v3"`
	MaxConcurrentPolls int            `yaml:"max_concurrent_polls"`
	MaxOids            int            `yaml:"max_oids"`
	MaxRepetitions     uint32         `yaml:"max_repetitions"`
}
