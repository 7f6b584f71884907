package correlate

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/vpbank/olt_collector/models"
	"github.com/vpbank/olt_collector/pkg/oltcollector/profile"
	"github.com/vpbank/olt_collector/snmp/decoder"
)

// Interfaces builds the OLT interface table. The ifName walk decides which
// rows exist; sub-interfaces (names with ':') are dropped. Operational state
// and SFP temperature are joined on index, and unmatched rows are ignored.
// A record with no oper-status row keeps decoder.DefaultEnum.
// SFP ports get one extra Get for their signal level.
//
// The result is sorted by index and never nil.
func Interfaces(ctx context.Context, src Source, oids profile.OidProfile, logger *slog.Logger) ([]models.InterfaceRecord, Tally) {
	logger = discardLogger(logger)
	var tally Tally

	names := walk(ctx, src, oids.IfName, true, logger, &tally)

	records := make([]models.InterfaceRecord, 0, names.Len())
	for _, row := range names.Rows {
		name := decoder.ToString(row.Value)
		if strings.Contains(name, ":") {
			continue
		}
		idx, err := strconv.Atoi(row.Key)
		if err != nil || idx <= 0 {
			logger.Debug("correlate: skipping interface with non-numeric index", "index", row.Key)
			continue
		}
		records = append(records, models.InterfaceRecord{
			Index:     idx,
			Name:      name,
			HasSfp:    strings.Contains(name, "PON"),
			OperState: decoder.DefaultEnum,
		})
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	pos := make(map[string]int, len(records))
	for i, r := range records {
		pos[strconv.Itoa(r.Index)] = i
	}

	for i := range records {
		if !records[i].HasSfp {
			continue
		}
		if v, ok := get(ctx, src, oids.SfpSignal+"."+strconv.Itoa(records[i].Index), logger, &tally); ok {
			records[i].SignalDbm = decoder.DecodeInterfaceSignal(v)
		}
	}

	for _, row := range walk(ctx, src, oids.IfOperStatus, true, logger, &tally).Rows {
		if i, ok := pos[row.Key]; ok {
			records[i].OperState = decoder.DecodeOperState(row.Value)
		}
	}

	for _, row := range walk(ctx, src, oids.SfpTemperature, true, logger, &tally).Rows {
		if i, ok := pos[row.Key]; ok {
			records[i].TemperatureC = decoder.DecodeTemperature(row.Value)
		}
	}

	return records, tally
}
