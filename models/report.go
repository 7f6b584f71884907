// Package models defines the core data structures shared across all layers of
// the OLT Collector. These types represent the canonical in-memory form of a
// polled OLT and its ONUs; every other package depends on this package and
// nothing here depends on any other internal package.
package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// ReportEnvelope is the top-level payload produced per polling cycle.
// It carries the originating device, the decoded report and collection
// metadata for the downstream pipeline (formatter → transport, store).
type ReportEnvelope struct {
	Timestamp time.Time      `json:"timestamp"`
	Device    Device         `json:"device"`
	Report    DeviceReport   `json:"report"`
	Metadata  ReportMetadata `json:"metadata"`
}

// Device carries identifying information about a configured OLT.
type Device struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	IPAddress   string `json:"ip_address"`
	Port        int    `json:"port"`
	SNMPVersion string `json:"snmp_version"` // "1", "2c", or "3"
}

// ReportMetadata carries operational metadata about the collection cycle.
type ReportMetadata struct {
	CollectorID    string `json:"collector_id"`
	PollDurationMs int64  `json:"poll_duration_ms"`
	PollStatus     string `json:"poll_status"` // "success" | "degraded" | "failed"
	Error          string `json:"error,omitempty"`
}

// Poll status values used in ReportMetadata.PollStatus.
const (
	PollSuccess  = "success"
	PollDegraded = "degraded"
	PollFailed   = "failed"
)

// DeviceReport is the decoded telemetry of one OLT and its ONUs.
type DeviceReport struct {
	OLT OltReport   `json:"olt"`
	ONU []OnuRecord `json:"onu"`
}

// OltReport holds the head-end identity and its interface table.
type OltReport struct {
	ID         int               `json:"id"`
	Name       string            `json:"name"`
	IP         string            `json:"ip"`
	Port       int               `json:"port"`
	Status     int               `json:"status"` // 1 once a model string was parsed
	Uptime     string            `json:"uptime"`
	Model      string            `json:"model"`
	Version    string            `json:"version"`
	Interfaces []InterfaceRecord `json:"interfaces"`
}

// InterfaceRecord is one non sub-interface row of the OLT interface table.
type InterfaceRecord struct {
	Index        int     `json:"index"`
	Name         string  `json:"iface"`
	HasSfp       bool    `json:"sfp"`
	TemperatureC float64 `json:"temperature"`
	SignalDbm    float64 `json:"signal"`
	OperState    string  `json:"operState"`
}

// OnuRecord is one registered ONU. Ifname and DeregStatus are set only when
// the corresponding subtree carried a matching row; Distance, Online and
// SignalRx are set together, only when the distance subtree had the row.
// Detail is filled only when ONU detail collection is enabled and at least
// one detail subtree carried the row.
type OnuRecord struct {
	Index       string     `json:"index"`
	MAC         string     `json:"mac"`
	Ifname      *string    `json:"ifname,omitempty"`
	DeregStatus *string    `json:"status,omitempty"`
	Distance    *float64   `json:"distance,omitempty"`
	Online      *bool      `json:"online,omitempty"`
	SignalRx    *OnuSignal `json:"signal_rx,omitempty"`
	Detail      *OnuDetail `json:"detail,omitempty"`
}

// OnuDetail is the ONU inventory read from the OLT's ONU table.
type OnuDetail struct {
	Vendor   string    `json:"vendor,omitempty"`
	Model    string    `json:"model,omitempty"`
	Version  string    `json:"version,omitempty"`
	Firmware string    `json:"firmware,omitempty"`
	SignalTx OnuSignal `json:"signal_tx,omitempty"`
}

// IsOnline reports whether the ONU was seen with a positive distance.
func (r OnuRecord) IsOnline() bool {
	return r.Online != nil && *r.Online
}

// ─────────────────────────────────────────────────────────────────────────────
// OnuSignal
// ─────────────────────────────────────────────────────────────────────────────

// OnuSignal is an ONU receive level in dBm kept in its formatted form
// ("-21.40"), trailing zeros included. The zero value means "no reading" and
// serialises as the JSON number 0.
type OnuSignal string

// IsZero reports whether s carries no reading.
func (s OnuSignal) IsZero() bool {
	return s == "" || s == "0"
}

// Float64 parses the formatted level. Zero signals return 0.
func (s OnuSignal) Float64() float64 {
	if s.IsZero() {
		return 0
	}
	f, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// MarshalJSON implements json.Marshaler.
func (s OnuSignal) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("0"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts both the string and the numeric 0 form.
func (s *OnuSignal) UnmarshalJSON(b []byte) error {
	if string(b) == "0" || string(b) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	*s = OnuSignal(str)
	return nil
}
