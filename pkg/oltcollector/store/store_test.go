package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gookit/event"

	"github.com/vpbank/olt_collector/models"
	"github.com/vpbank/olt_collector/pkg/oltcollector/store"
)

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func openStore(t *testing.T, em *event.Manager, limit int) *store.Store {
	t.Helper()
	s, err := store.Open(store.Options{
		Path:         filepath.Join(t.TempDir(), "olt.db"),
		HistoryLimit: limit,
	}, em, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

// onu builds a record; distance < 0 means the distance row was absent.
func onu(idx, mac string, distance float64) models.OnuRecord {
	r := models.OnuRecord{Index: idx, MAC: mac, Ifname: strPtr("EPON0/1:" + idx)}
	if distance < 0 {
		return r
	}
	online := distance > 0
	sig := models.OnuSignal("")
	if online {
		sig = "-21.50"
	}
	r.Distance = &distance
	r.Online = &online
	r.SignalRx = &sig
	return r
}

func envelope(name string, at time.Time, onus ...models.OnuRecord) models.ReportEnvelope {
	return models.ReportEnvelope{
		Timestamp: at,
		Device:    models.Device{ID: 1, Name: name, IPAddress: "10.0.0.1", Port: 161, SNMPVersion: "2c"},
		Report: models.DeviceReport{
			OLT: models.OltReport{
				ID: 1, Name: name, IP: "10.0.0.1", Port: 161, Status: 1,
				Uptime: "1d 2h 3m", Model: "P3310B", Version: "10.1.0E",
				Interfaces: []models.InterfaceRecord{
					{Index: 10, Name: "EPON0/2"},
					{Index: 5, Name: "EPON0/1", HasSfp: true, TemperatureC: 45, SignalDbm: -6.5, OperState: "up"},
				},
			},
			ONU: onus,
		},
		Metadata: models.ReportMetadata{CollectorID: "test", PollDurationMs: 120, PollStatus: models.PollSuccess},
	}
}

func failed(name string, at time.Time) models.ReportEnvelope {
	return models.ReportEnvelope{
		Timestamp: at,
		Device:    models.Device{ID: 1, Name: name, IPAddress: "10.0.0.1", Port: 161},
		Report:    models.DeviceReport{ONU: []models.OnuRecord{}},
		Metadata:  models.ReportMetadata{PollStatus: models.PollFailed, Error: "request timeout"},
	}
}

func mustSave(t *testing.T, s *store.Store, env models.ReportEnvelope) {
	t.Helper()
	if err := s.Save(context.Background(), env); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Open
// ─────────────────────────────────────────────────────────────────────────────

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := store.Open(store.Options{}, nil, nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "olt.db")
	s, err := store.Open(store.Options{Path: path}, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mustSave(t, s, envelope("olt-a", t0))
	_ = s.Close()

	s2, err := store.Open(store.Options{Path: path}, nil, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if _, err := s2.Olt(context.Background(), "olt-a"); err != nil {
		t.Errorf("Olt after reopen: %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Save / read back
// ─────────────────────────────────────────────────────────────────────────────

func TestSave_SnapshotAndReport(t *testing.T) {
	s := openStore(t, nil, 0)
	ctx := context.Background()
	mustSave(t, s, envelope("olt-a", t0,
		onu("10", "fc:fa:f7:00:00:01", 1234),
		onu("11", "fc:fa:f7:00:00:02", 0),
	))

	snap, err := s.Olt(ctx, "olt-a")
	if err != nil {
		t.Fatalf("Olt: %v", err)
	}
	if snap.Model != "P3310B" || snap.Onus != 2 || snap.OnlineOnus != 1 || snap.Interfaces != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.PollStatus != models.PollSuccess {
		t.Errorf("PollStatus = %q", snap.PollStatus)
	}

	rep, err := s.Report(ctx, "olt-a")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(rep.ONU) != 2 || rep.ONU[0].MAC != "fc:fa:f7:00:00:01" {
		t.Errorf("report onus = %+v", rep.ONU)
	}
	if !rep.ONU[1].SignalRx.IsZero() {
		t.Errorf("offline signal = %q, want zero", *rep.ONU[1].SignalRx)
	}

	ifaces, err := s.Interfaces(ctx, "olt-a")
	if err != nil {
		t.Fatalf("Interfaces: %v", err)
	}
	if len(ifaces) != 2 || ifaces[0].Index != 5 || !ifaces[0].HasSfp {
		t.Errorf("interfaces = %+v, want index 5 first with sfp", ifaces)
	}
}

func TestSave_InterfacesReplaced(t *testing.T) {
	s := openStore(t, nil, 0)
	env := envelope("olt-a", t0)
	mustSave(t, s, env)

	env.Timestamp = t0.Add(time.Minute)
	env.Report.OLT.Interfaces = env.Report.OLT.Interfaces[:1]
	mustSave(t, s, env)

	ifaces, _ := s.Interfaces(context.Background(), "olt-a")
	if len(ifaces) != 1 || ifaces[0].Index != 10 {
		t.Errorf("interfaces = %+v, want only index 10", ifaces)
	}
}

func TestSave_RequiresDeviceName(t *testing.T) {
	s := openStore(t, nil, 0)
	if err := s.Save(context.Background(), models.ReportEnvelope{}); err == nil {
		t.Fatal("expected error for unnamed device")
	}
}

func TestSave_FailedPollKeepsLastReport(t *testing.T) {
	s := openStore(t, nil, 0)
	ctx := context.Background()
	mustSave(t, s, envelope("olt-a", t0, onu("10", "fc:fa:f7:00:00:01", 1234)))
	mustSave(t, s, failed("olt-a", t0.Add(5*time.Minute)))

	snap, _ := s.Olt(ctx, "olt-a")
	if snap.PollStatus != models.PollFailed || snap.Error != "request timeout" {
		t.Errorf("snapshot status = %q/%q", snap.PollStatus, snap.Error)
	}
	if snap.Model != "P3310B" {
		t.Errorf("Model = %q, identity should survive a failed poll", snap.Model)
	}
	rep, err := s.Report(ctx, "olt-a")
	if err != nil || len(rep.ONU) != 1 {
		t.Errorf("Report = %+v, %v; want the last good report", rep, err)
	}
	row, err := s.Onu(ctx, "fc:fa:f7:00:00:01")
	if err != nil || row.Online == nil || !*row.Online {
		t.Errorf("Onu = %+v, %v; want unchanged online state", row, err)
	}
}

func TestSave_FailedFirstPoll(t *testing.T) {
	s := openStore(t, nil, 0)
	ctx := context.Background()
	mustSave(t, s, failed("olt-b", t0))

	olts, _ := s.Olts(ctx)
	if len(olts) != 1 || olts[0].Name != "olt-b" || olts[0].PollStatus != models.PollFailed {
		t.Fatalf("Olts = %+v", olts)
	}
	if _, err := s.Report(ctx, "olt-b"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Report err = %v, want ErrNotFound", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ONU state and transitions
// ─────────────────────────────────────────────────────────────────────────────

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) listen(em *event.Manager) {
	for _, name := range []string{store.EventOnuOnline, store.EventOnuOffline} {
		em.On(name, event.ListenerFunc(func(e event.Event) error {
			tr, ok := e.Get("transition").(*store.OnuTransition)
			if !ok {
				return nil
			}
			r.mu.Lock()
			r.events = append(r.events, e.Name()+" "+tr.MAC)
			r.mu.Unlock()
			return nil
		}))
	}
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestSave_OnuTransitions(t *testing.T) {
	em := event.NewManager("test")
	rec := &recorder{}
	rec.listen(em)
	s := openStore(t, em, 0)
	ctx := context.Background()

	const a, b = "fc:fa:f7:00:00:01", "fc:fa:f7:00:00:02"

	// First sighting: no transitions.
	mustSave(t, s, envelope("olt-a", t0, onu("10", a, 1234), onu("11", b, 0)))
	if got := rec.got(); len(got) != 0 {
		t.Fatalf("events after first poll = %v, want none", got)
	}

	// a goes offline, b comes online.
	mustSave(t, s, envelope("olt-a", t0.Add(time.Minute), onu("10", a, 0), onu("11", b, 800)))
	got := rec.got()
	want := []string{store.EventOnuOffline + " " + a, store.EventOnuOnline + " " + b}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}

	// a without a distance row keeps its state.
	mustSave(t, s, envelope("olt-a", t0.Add(2*time.Minute), onu("10", a, -1), onu("11", b, 800)))
	if n := len(rec.got()); n != 2 {
		t.Errorf("events = %d, want still 2", n)
	}

	row, err := s.Onu(ctx, a)
	if err != nil {
		t.Fatalf("Onu: %v", err)
	}
	if row.Online == nil || *row.Online {
		t.Errorf("a Online = %v, want false", row.Online)
	}
	if !row.LastSeen.Equal(t0.Add(2 * time.Minute)) {
		t.Errorf("LastSeen = %v", row.LastSeen)
	}
	if row.LastOnline == nil || !row.LastOnline.Equal(t0) {
		t.Errorf("LastOnline = %v, want %v", row.LastOnline, t0)
	}

	trs, err := s.Transitions(ctx, b, 0)
	if err != nil {
		t.Fatalf("Transitions: %v", err)
	}
	if len(trs) != 1 || !trs[0].Online {
		t.Errorf("transitions of b = %+v", trs)
	}
}

func TestOnus_FilterAndOrder(t *testing.T) {
	s := openStore(t, nil, 0)
	ctx := context.Background()
	mustSave(t, s, envelope("olt-a", t0,
		onu("100", "fc:fa:f7:00:00:03", 500),
		onu("9", "fc:fa:f7:00:00:01", 1234),
		onu("10", "fc:fa:f7:00:00:02", 0),
	))

	all, err := s.Onus(ctx, "olt-a", store.OnuFilter{})
	if err != nil {
		t.Fatalf("Onus: %v", err)
	}
	var idx []string
	for _, o := range all {
		idx = append(idx, o.Index)
	}
	if len(idx) != 3 || idx[0] != "9" || idx[1] != "10" || idx[2] != "100" {
		t.Errorf("order = %v, want [9 10 100]", idx)
	}

	on := true
	online, _ := s.Onus(ctx, "olt-a", store.OnuFilter{Online: &on})
	if len(online) != 2 {
		t.Errorf("online ONUs = %d, want 2", len(online))
	}

	if _, err := s.Onus(ctx, "missing", store.OnuFilter{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown olt err = %v, want ErrNotFound", err)
	}
}

func TestOnu_Lookup(t *testing.T) {
	s := openStore(t, nil, 0)
	ctx := context.Background()
	mustSave(t, s, envelope("olt-a", t0, onu("10", "fc:fa:f7:00:00:01", 1234)))

	tests := []struct {
		name    string
		mac     string
		wantErr error
	}{
		{"colon form", "fc:fa:f7:00:00:01", nil},
		{"upper dash form", "FC-FA-F7-00-00-01", nil},
		{"dotted form", "fcfa.f700.0001", nil},
		{"unknown", "fc:fa:f7:00:00:09", store.ErrNotFound},
		{"malformed", "not-a-mac", store.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, err := s.Onu(ctx, tt.mac)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Onu: %v", err)
			}
			if row.OltName != "olt-a" || row.Ifname != "EPON0/1:10" || row.SignalRx != "-21.50" {
				t.Errorf("row = %+v", row)
			}
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// History
// ─────────────────────────────────────────────────────────────────────────────

func TestHistory_BoundedAndNewestFirst(t *testing.T) {
	s := openStore(t, nil, 3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		mustSave(t, s, envelope("olt-a", t0.Add(time.Duration(i)*time.Minute)))
	}
	mustSave(t, s, envelope("olt-b", t0))

	hist, err := s.History(ctx, "olt-a", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("history len = %d, want 3", len(hist))
	}
	if !hist[0].CollectedAt.Equal(t0.Add(4 * time.Minute)) {
		t.Errorf("newest = %v, want %v", hist[0].CollectedAt, t0.Add(4*time.Minute))
	}
	if other, _ := s.History(ctx, "olt-b", 10); len(other) != 1 {
		t.Errorf("olt-b history = %d, want 1", len(other))
	}
}

func TestNormalizeMAC(t *testing.T) {
	got, err := store.NormalizeMAC(" FC:FA:F7:00:00:01 ")
	if err != nil || got != "fc:fa:f7:00:00:01" {
		t.Errorf("NormalizeMAC = %q, %v", got, err)
	}
}
