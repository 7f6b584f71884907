// Package profile identifies an OLT from its firmware banner and selects the
// OID table used to poll it.
//
// Device families differ only in data: a Registry maps a parsed model string
// to a set of OID overrides applied on top of a base table. Supporting a new
// model means registering an override, in code or in the profiles config
// directory.
package profile

import (
	"fmt"
	"sort"
	"strings"
)

// OidProfile names every OID the collector reads from an OLT.
type OidProfile struct {
	SysDescr     string `yaml:"sys_descr"`
	Uptime       string `yaml:"uptime"`
	CPU          string `yaml:"cpu"`
	IfName       string `yaml:"if_name"`
	IfOperStatus string `yaml:"if_oper_status"`

	SfpTemperature string `yaml:"sfp_temperature"`
	SfpSignal      string `yaml:"sfp_signal"`

	OnuMac         string `yaml:"onu_mac"`
	OnuDistance    string `yaml:"onu_distance"`
	OnuDeregStatus string `yaml:"onu_dereg_status"`
	OnuSignalRx    string `yaml:"onu_signal_rx"`

	OnuModel    string `yaml:"onu_model"`
	OnuVendor   string `yaml:"onu_vendor"`
	OnuVersion  string `yaml:"onu_version"`
	OnuFirmware string `yaml:"onu_firmware"`
	OnuSignalTx string `yaml:"onu_signal_tx"`
}

// BDCOMP3310 returns the OID table of the BDCOM P3310 EPON family.
func BDCOMP3310() OidProfile {
	return OidProfile{
		SysDescr:     "1.3.6.1.2.1.1.1.0",
		Uptime:       "1.3.6.1.2.1.1.3.0",
		CPU:          "1.3.6.1.4.1.3320.9.109.1.1.1.1.3.1",
		IfName:       "1.3.6.1.2.1.2.2.1.2",
		IfOperStatus: "1.3.6.1.2.1.2.2.1.8",

		SfpTemperature: "1.3.6.1.4.1.3320.101.107.1.6",
		SfpSignal:      "1.3.6.1.4.1.3320.101.107.1.3",

		OnuMac:         "1.3.6.1.4.1.3320.101.10.1.1.3",
		OnuDistance:    "1.3.6.1.4.1.3320.101.10.1.1.27",
		OnuDeregStatus: "1.3.6.1.4.1.3320.101.11.1.1.11",
		OnuSignalRx:    "1.3.6.1.4.1.3320.101.10.5.1.5",

		OnuModel:    "1.3.6.1.4.1.3320.101.10.1.1.2",
		OnuVendor:   "1.3.6.1.4.1.3320.101.10.1.1.1",
		OnuVersion:  "1.3.6.1.4.1.3320.101.10.1.1.5",
		OnuFirmware: "1.3.6.1.4.1.3320.101.10.1.1.6",
		OnuSignalTx: "1.3.6.1.4.1.3320.101.10.5.1.6",
	}
}

// fields maps each logical name (the yaml key) to its slot in p.
func (p *OidProfile) fields() map[string]*string {
	return map[string]*string{
		"sys_descr":        &p.SysDescr,
		"uptime":           &p.Uptime,
		"cpu":              &p.CPU,
		"if_name":          &p.IfName,
		"if_oper_status":   &p.IfOperStatus,
		"sfp_temperature":  &p.SfpTemperature,
		"sfp_signal":       &p.SfpSignal,
		"onu_mac":          &p.OnuMac,
		"onu_distance":     &p.OnuDistance,
		"onu_dereg_status": &p.OnuDeregStatus,
		"onu_signal_rx":    &p.OnuSignalRx,
		"onu_model":        &p.OnuModel,
		"onu_vendor":       &p.OnuVendor,
		"onu_version":      &p.OnuVersion,
		"onu_firmware":     &p.OnuFirmware,
		"onu_signal_tx":    &p.OnuSignalTx,
	}
}

// Override replaces OIDs by logical name, e.g. {"sfp_signal": "1.3.6..."}.
type Override map[string]string

// Validate rejects unknown logical names and empty OIDs.
func (o Override) Validate() error {
	known := (&OidProfile{}).fields()
	var bad []string
	for name, oid := range o {
		if _, ok := known[name]; !ok {
			bad = append(bad, fmt.Sprintf("unknown oid name %q", name))
			continue
		}
		if strings.Trim(oid, ". ") == "" {
			bad = append(bad, fmt.Sprintf("empty oid for %q", name))
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return fmt.Errorf("profile: %s", strings.Join(bad, "; "))
}

// With returns a copy of p with o applied. Unknown names are ignored; use
// Override.Validate to reject them up front.
func (p OidProfile) With(o Override) OidProfile {
	f := p.fields()
	for name, oid := range o {
		if slot, ok := f[name]; ok {
			*slot = strings.TrimPrefix(strings.TrimSpace(oid), ".")
		}
	}
	return p
}

// Lookup returns the OID registered under a logical name.
func (p OidProfile) Lookup(name string) (string, bool) {
	slot, ok := p.fields()[name]
	if !ok {
		return "", false
	}
	return *slot, true
}
