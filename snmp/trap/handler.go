// Package trap reduces received SNMP trap and inform PDUs to a
// models.TrapEvent. It handles the v1 versus v2c/v3 PDU differences; socket
// management lives in the trapreceiver package.
package trap

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/vpbank/olt_collector/models"
)

const (
	oidSysUpTime   = "1.3.6.1.2.1.1.3.0"
	oidSnmpTrapOID = "1.3.6.1.6.3.1.1.4.1.0"

	// Standard notifications per RFC 3584 §3.1.
	oidSnmpTraps = "1.3.6.1.6.3.1.1.5"
)

// Well-known trap OIDs the collector reacts to.
const (
	OIDLinkDown = oidSnmpTraps + ".3"
	OIDLinkUp   = oidSnmpTraps + ".4"
)

// Parse converts a packet delivered by a gosnmp.TrapListener into a
// TrapEvent. remoteAddr is the UDP sender; for v1 the PDU's agent address
// takes precedence.
func Parse(pkt *gosnmp.SnmpPacket, remoteAddr *net.UDPAddr) (models.TrapEvent, error) {
	if pkt == nil {
		return models.TrapEvent{}, fmt.Errorf("trap: nil packet")
	}

	ev := models.TrapEvent{
		Timestamp: time.Now().UTC(),
		SourceIP:  sourceIP(pkt, remoteAddr),
	}

	switch pkt.Version {
	case gosnmp.Version1:
		ev.Version = "v1"
		ev.TrapOID = v1TrapOID(pkt)
		ev.Uptime = uint32(pkt.Timestamp) //nolint:gosec
		ev.Varbinds = countPayload(pkt.Variables)
	case gosnmp.Version2c, gosnmp.Version3:
		ev.Version = "v2c"
		if pkt.Version == gosnmp.Version3 {
			ev.Version = "v3"
		}
		payload := parseV2(pkt.Variables, &ev)
		ev.Varbinds = countPayload(payload)
	default:
		return ev, fmt.Errorf("trap: unsupported SNMP version %v", pkt.Version)
	}
	return ev, nil
}

// IsLinkEvent reports whether ev is a standard linkDown or linkUp
// notification.
func IsLinkEvent(ev models.TrapEvent) bool {
	return ev.TrapOID == OIDLinkDown || ev.TrapOID == OIDLinkUp
}

func sourceIP(pkt *gosnmp.SnmpPacket, remoteAddr *net.UDPAddr) string {
	if pkt.Version == gosnmp.Version1 && pkt.AgentAddress != "" && pkt.AgentAddress != "0.0.0.0" {
		return pkt.AgentAddress
	}
	if remoteAddr != nil {
		return remoteAddr.IP.String()
	}
	return ""
}

// v1TrapOID maps generic traps 0-5 to snmpTraps.<generic+1> and
// enterprise-specific ones to <enterprise>.0.<specific>.
func v1TrapOID(pkt *gosnmp.SnmpPacket) string {
	if pkt.GenericTrap >= 0 && pkt.GenericTrap < 6 {
		return fmt.Sprintf("%s.%d", oidSnmpTraps, pkt.GenericTrap+1)
	}
	return fmt.Sprintf("%s.0.%d", normaliseOID(pkt.Enterprise), pkt.SpecificTrap)
}

// parseV2 fills the uptime and trap OID from the sysUpTime.0 and
// snmpTrapOID.0 varbinds and returns the payload after them. Agents that
// omit snmpTrapOID.0 leave TrapOID empty and every varbind counts as payload.
func parseV2(vars []gosnmp.SnmpPDU, ev *models.TrapEvent) []gosnmp.SnmpPDU {
	for i, v := range vars {
		switch normaliseOID(v.Name) {
		case oidSysUpTime:
			ev.Uptime = uint32(gosnmp.ToBigInt(v.Value).Uint64()) //nolint:gosec
		case oidSnmpTrapOID:
			ev.TrapOID = normaliseOID(fmt.Sprintf("%v", v.Value))
			return vars[i+1:]
		}
	}
	return vars
}

// countPayload counts varbinds that carry a value.
func countPayload(pdus []gosnmp.SnmpPDU) int {
	n := 0
	for _, p := range pdus {
		switch p.Type {
		case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
			continue
		}
		n++
	}
	return n
}

func normaliseOID(oid string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(oid), "."), ".")
}
