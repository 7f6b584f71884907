package correlate

import (
	"context"
	"log/slog"

	"github.com/vpbank/olt_collector/models"
	"github.com/vpbank/olt_collector/pkg/oltcollector/profile"
	"github.com/vpbank/olt_collector/snmp/decoder"
)

// detailColumns lists the ONU table columns read by OnuDetails, by logical
// OID name, and how each value lands in the detail block.
var detailColumns = []struct {
	name  string
	apply func(d *models.OnuDetail, v interface{})
}{
	{"onu_vendor", func(d *models.OnuDetail, v interface{}) { d.Vendor = decoder.ToString(v) }},
	{"onu_model", func(d *models.OnuDetail, v interface{}) { d.Model = decoder.ToString(v) }},
	{"onu_version", func(d *models.OnuDetail, v interface{}) { d.Version = decoder.DecodeOnuVersion(v) }},
	{"onu_firmware", func(d *models.OnuDetail, v interface{}) { d.Firmware = decoder.ToString(v) }},
	{"onu_signal_tx", func(d *models.OnuDetail, v interface{}) { d.SignalTx = decoder.DecodeOnuSignal(v) }},
}

// OnuDetails walks the ONU inventory columns and attaches a Detail block to
// every record with at least one matching row. Columns join on the record
// index, like distance. A column whose OID is unset is skipped.
func OnuDetails(ctx context.Context, src Source, oids profile.OidProfile, records []models.OnuRecord, logger *slog.Logger) Tally {
	logger = discardLogger(logger)
	var tally Tally
	if len(records) == 0 {
		return tally
	}

	details := make(map[string]*models.OnuDetail, len(records))
	for _, col := range detailColumns {
		oid, _ := oids.Lookup(col.name)
		tbl := walk(ctx, src, oid, true, logger, &tally)
		if tbl.Len() == 0 {
			continue
		}
		for _, rec := range records {
			v, ok := tbl.Lookup(rec.Index)
			if !ok {
				continue
			}
			d := details[rec.Index]
			if d == nil {
				d = &models.OnuDetail{}
				details[rec.Index] = d
			}
			col.apply(d, v)
		}
	}

	for i := range records {
		if d, ok := details[records[i].Index]; ok {
			records[i].Detail = d
		}
	}
	return tally
}
