package models

import "time"

// TrapEvent is a received SNMP trap or inform reduced to the fields the
// collector acts on: who sent it and which notification it was.
type TrapEvent struct {
	Timestamp time.Time `json:"timestamp"`
	SourceIP  string    `json:"source_ip"`
	Version   string    `json:"version"`            // "v1", "v2c", "v3"
	TrapOID   string    `json:"trap_oid"`           // snmpTrapOID.0 or enterprise.specific for v1
	Uptime    uint32    `json:"uptime,omitempty"`   // sysUpTime.0 in ticks
	Varbinds  int       `json:"varbinds,omitempty"` // count of payload varbinds
}
