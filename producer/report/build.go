package report

import (
	"time"

	"github.com/vpbank/olt_collector/models"
	"github.com/vpbank/olt_collector/pkg/oltcollector/poller"
)

// BuildOptions configures envelope assembly.
type BuildOptions struct {
	// CollectorID is written into ReportMetadata.CollectorID.
	CollectorID string

	// Now stamps envelopes whose result carries no collection time. Defaults
	// to time.Now.
	Now func() time.Time
}

// Build wraps a poll result in an envelope. A failed poll still yields a
// well-formed report: the OLT identity comes from the device config and the
// record sets are empty, never nil.
func Build(r poller.Result, opts BuildOptions) models.ReportEnvelope {
	ts := r.CollectedAt
	if ts.IsZero() {
		if opts.Now != nil {
			ts = opts.Now()
		} else {
			ts = time.Now()
		}
	}

	rep := Normalize(r.Report, r.Device)

	meta := models.ReportMetadata{
		CollectorID: opts.CollectorID,
		PollStatus:  r.Status(),
	}
	if !r.StartedAt.IsZero() && !r.CollectedAt.IsZero() {
		meta.PollDurationMs = r.Duration().Milliseconds()
	}
	if r.Err != nil {
		meta.Error = r.Err.Error()
	}

	return models.ReportEnvelope{
		Timestamp: ts.UTC(),
		Device:    r.Device,
		Report:    rep,
		Metadata:  meta,
	}
}

// Normalize fills the OLT identity from dev where the report lacks it and
// replaces nil record sets with empty ones.
func Normalize(rep models.DeviceReport, dev models.Device) models.DeviceReport {
	if rep.OLT.Name == "" {
		rep.OLT.ID = dev.ID
		rep.OLT.Name = dev.Name
		rep.OLT.IP = dev.IPAddress
		rep.OLT.Port = dev.Port
	}
	if rep.OLT.Interfaces == nil {
		rep.OLT.Interfaces = []models.InterfaceRecord{}
	}
	if rep.ONU == nil {
		rep.ONU = []models.OnuRecord{}
	}
	return rep
}

// Summary counts the records of a report.
type Summary struct {
	Interfaces int `json:"interfaces"`
	SfpPorts   int `json:"sfp_ports"`
	Onus       int `json:"onus"`
	Online     int `json:"online"`
	Offline    int `json:"offline"`
}

// Summarize counts interfaces, SFP ports and ONUs by state. ONUs without a
// distance reading count as neither online nor offline.
func Summarize(rep models.DeviceReport) Summary {
	s := Summary{Interfaces: len(rep.OLT.Interfaces), Onus: len(rep.ONU)}
	for _, i := range rep.OLT.Interfaces {
		if i.HasSfp {
			s.SfpPorts++
		}
	}
	for _, o := range rep.ONU {
		switch {
		case o.Online == nil:
		case *o.Online:
			s.Online++
		default:
			s.Offline++
		}
	}
	return s
}
