package decoder

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/vpbank/olt_collector/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Numeric scalars
// ─────────────────────────────────────────────────────────────────────────────

// DecodeTemperature converts a raw SFP temperature (1/256 °C units) to °C
// rounded to two decimals.
func DecodeTemperature(raw interface{}) float64 {
	n, err := toInt64(raw)
	if err != nil {
		return 0
	}
	return roundTo(float64(n)/256, 2)
}

// DecodeInterfaceSignal converts a raw SFP level (0.1 dBm units) to dBm
// rounded to two decimals.
func DecodeInterfaceSignal(raw interface{}) float64 {
	n, err := toInt64(raw)
	if err != nil {
		return 0
	}
	return roundTo(float64(n)/10, 2)
}

// DecodeOnuSignal converts a raw ONU receive level (0.1 dBm units) to its
// formatted form with exactly two decimals. Zero, empty and nil decode to the
// zero OnuSignal.
func DecodeOnuSignal(raw interface{}) models.OnuSignal {
	if raw == nil {
		return ""
	}
	f, err := toFloat64(raw)
	if err != nil || f == 0 {
		return ""
	}
	return models.OnuSignal(fmt.Sprintf("%.2f", f/10))
}

// DecodeDistance rounds a raw ONU distance to the nearest whole unit.
func DecodeDistance(raw interface{}) float64 {
	f, err := toFloat64(raw)
	if err != nil {
		return 0
	}
	return math.Round(f)
}

// ─────────────────────────────────────────────────────────────────────────────
// Enumerations
// ─────────────────────────────────────────────────────────────────────────────

// operStates mirrors IF-MIB ifOperStatus as reported by the OLT.
var operStates = map[int64]string{
	0: "unknown",
	1: "up",
	2: "down",
	3: "unknown(3)",
	4: "unknown(4)",
}

// deregReasons is the LLID/ONU binding last deregister reason table.
var deregReasons = map[int64]string{
	0:   "registered",
	1:   "unknown",
	2:   "normal",
	3:   "mpcp-down",
	4:   "oam-down",
	5:   "firmware-download",
	6:   "illegal-mac",
	7:   "llid-admin-down",
	8:   "wire-down",
	9:   "power-off",
	255: "wire-down",
}

// DefaultEnum is returned for codes outside a known table.
const DefaultEnum = "default"

// DecodeOperState maps an ifOperStatus code to its name.
func DecodeOperState(code interface{}) string {
	return lookupEnum(operStates, code)
}

// DecodeDeregStatus maps an ONU deregistration reason code to its name.
func DecodeDeregStatus(code interface{}) string {
	return lookupEnum(deregReasons, code)
}

func lookupEnum(table map[int64]string, code interface{}) string {
	n, err := toInt64(code)
	if err != nil {
		return DefaultEnum
	}
	if s, ok := table[n]; ok {
		return s
	}
	return DefaultEnum
}

// ─────────────────────────────────────────────────────────────────────────────
// ONU firmware version
// ─────────────────────────────────────────────────────────────────────────────

// DecodeOnuVersion turns the hex-dump form of an ONU version string
// ("31 2E 30 2E 32") into text. Values that are not hex are returned as-is.
func DecodeOnuVersion(raw interface{}) string {
	s := strings.ReplaceAll(toDisplayString(raw), " ", "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return s
	}
	return strings.TrimRight(string(b), "\x00")
}
