package correlate

import (
	"context"
	"log/slog"
	"sort"

	"github.com/vpbank/olt_collector/models"
	"github.com/vpbank/olt_collector/pkg/oltcollector/profile"
	"github.com/vpbank/olt_collector/snmp/decoder"
)

// Onus builds the ONU table. The MAC walk is authoritative: only its rows
// produce records. Interface name and distance join on row index, the
// deregistration status joins on MAC (its row keys encode the MAC in the
// last six OID components). Online ONUs get one extra Get for their receive
// level.
//
// A MAC seen twice keeps its first row. The result is sorted by index and
// never nil.
func Onus(ctx context.Context, src Source, oids profile.OidProfile, logger *slog.Logger) ([]models.OnuRecord, Tally) {
	logger = discardLogger(logger)
	var tally Tally

	macs := walk(ctx, src, oids.OnuMac, true, logger, &tally)
	if macs.Len() == 0 {
		return []models.OnuRecord{}, tally
	}

	dereg := make(map[string]string)
	for _, row := range walk(ctx, src, oids.OnuDeregStatus, false, logger, &tally).Rows {
		mac := decoder.DecodeOidSuffixToMac(row.Key)
		if _, seen := dereg[mac]; !seen {
			dereg[mac] = decoder.DecodeDeregStatus(row.Value)
		}
	}
	ifnames := walk(ctx, src, oids.IfName, true, logger, &tally)
	distances := walk(ctx, src, oids.OnuDistance, true, logger, &tally)

	keys := macs.Keys()
	sort.SliceStable(keys, func(i, j int) bool { return lessIndex(keys[i], keys[j]) })

	records := make([]models.OnuRecord, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, idx := range keys {
		raw, _ := macs.Lookup(idx)
		rec := models.OnuRecord{Index: idx, MAC: decoder.DecodeBinaryMac(raw)}
		if _, dup := seen[rec.MAC]; dup {
			logger.Warn("correlate: duplicate onu mac, keeping first row",
				"mac", rec.MAC,
				"index", idx,
			)
			continue
		}
		seen[rec.MAC] = struct{}{}

		if v, ok := ifnames.Lookup(idx); ok {
			name := decoder.ToString(v)
			rec.Ifname = &name
		}
		if status, ok := dereg[rec.MAC]; ok {
			rec.DeregStatus = &status
		}
		if v, ok := distances.Lookup(idx); ok {
			distance := decoder.DecodeDistance(v)
			online := distance > 0
			var signal models.OnuSignal
			if online {
				if s, ok := get(ctx, src, oids.OnuSignalRx+"."+idx, logger, &tally); ok {
					signal = decoder.DecodeOnuSignal(s)
				}
			}
			rec.Distance = &distance
			rec.Online = &online
			rec.SignalRx = &signal
		}
		records = append(records, rec)
	}
	return records, tally
}
