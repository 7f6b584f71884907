package report_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vpbank/olt_collector/models"
	"github.com/vpbank/olt_collector/pkg/oltcollector/poller"
	"github.com/vpbank/olt_collector/producer/report"
)

func testDevice() models.Device {
	return models.Device{ID: 3, Name: "olt-3", IPAddress: "10.0.0.3", Port: 161, SNMPVersion: "2c"}
}

func boolPtr(b bool) *bool { return &b }

func sampleReport() models.DeviceReport {
	return models.DeviceReport{
		OLT: models.OltReport{
			ID: 3, Name: "olt-3", IP: "10.0.0.3", Port: 161,
			Status: 1, Model: "P3310B", Uptime: "1d 2h 3m",
			Interfaces: []models.InterfaceRecord{
				{Index: 1, Name: "GigaEthernet0/1"},
				{Index: 5, Name: "EPON0/1", HasSfp: true},
			},
		},
		ONU: []models.OnuRecord{
			{Index: "10", MAC: "fc:fa:f7:00:00:01", Online: boolPtr(true)},
			{Index: "11", MAC: "fc:fa:f7:00:00:02", Online: boolPtr(false)},
			{Index: "12", MAC: "fc:fa:f7:00:00:03"},
		},
	}
}

func TestBuild_Success(t *testing.T) {
	start := time.Date(2026, 2, 26, 10, 30, 0, 0, time.UTC)
	res := poller.Result{
		Device:      testDevice(),
		Report:      sampleReport(),
		StartedAt:   start,
		CollectedAt: start.Add(1250 * time.Millisecond),
	}

	env := report.Build(res, report.BuildOptions{CollectorID: "collector-01"})
	if !env.Timestamp.Equal(res.CollectedAt) {
		t.Errorf("Timestamp = %v, want %v", env.Timestamp, res.CollectedAt)
	}
	if env.Metadata.CollectorID != "collector-01" {
		t.Errorf("CollectorID = %q", env.Metadata.CollectorID)
	}
	if env.Metadata.PollStatus != models.PollSuccess {
		t.Errorf("PollStatus = %q, want success", env.Metadata.PollStatus)
	}
	if env.Metadata.PollDurationMs != 1250 {
		t.Errorf("PollDurationMs = %d, want 1250", env.Metadata.PollDurationMs)
	}
	if env.Metadata.Error != "" {
		t.Errorf("Error = %q, want empty", env.Metadata.Error)
	}
	if len(env.Report.ONU) != 3 {
		t.Errorf("ONU count = %d", len(env.Report.ONU))
	}
}

func TestBuild_Degraded(t *testing.T) {
	res := poller.Result{Device: testDevice(), Report: sampleReport(), SoftFailures: 1}
	env := report.Build(res, report.BuildOptions{})
	if env.Metadata.PollStatus != models.PollDegraded {
		t.Errorf("PollStatus = %q, want degraded", env.Metadata.PollStatus)
	}
}

func TestBuild_FailedPollKeepsShape(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	res := poller.Result{
		Device: testDevice(),
		Err:    fmt.Errorf("%w olt-3: bad banner", poller.ErrIdentity),
	}
	env := report.Build(res, report.BuildOptions{Now: func() time.Time { return now }})

	if env.Metadata.PollStatus != models.PollFailed {
		t.Errorf("PollStatus = %q, want failed", env.Metadata.PollStatus)
	}
	if env.Metadata.Error == "" {
		t.Error("Error should carry the poll error")
	}
	if !env.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want injected now", env.Timestamp)
	}
	olt := env.Report.OLT
	if olt.Name != "olt-3" || olt.ID != 3 || olt.IP != "10.0.0.3" || olt.Status != 0 {
		t.Errorf("olt = %+v", olt)
	}
	if olt.Interfaces == nil || env.Report.ONU == nil {
		t.Error("record sets must be empty, not nil")
	}
}

func TestSummarize(t *testing.T) {
	s := report.Summarize(sampleReport())
	want := report.Summary{Interfaces: 2, SfpPorts: 1, Onus: 3, Online: 1, Offline: 1}
	if s != want {
		t.Errorf("Summarize = %+v, want %+v", s, want)
	}
}

func TestReportProducer_Produce(t *testing.T) {
	p := report.New(report.Config{CollectorID: "c1"}, nil)
	env, err := p.Produce(poller.Result{Device: testDevice(), Err: errors.New("timeout")})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if env.Metadata.CollectorID != "c1" || env.Metadata.PollStatus != models.PollFailed {
		t.Errorf("metadata = %+v", env.Metadata)
	}
	if env.Device.Name != "olt-3" {
		t.Errorf("Device = %+v", env.Device)
	}
}
