package correlate_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/vpbank/olt_collector/pkg/oltcollector/correlate"
	"github.com/vpbank/olt_collector/pkg/oltcollector/profile"
	"github.com/vpbank/olt_collector/pkg/oltcollector/session"
	"github.com/vpbank/olt_collector/snmp/decoder"
)

// fakeSource serves walks and gets from in-memory maps.
type fakeSource struct {
	walks    map[string][]session.Row
	gets     map[string]interface{}
	walkErrs map[string]error
	getErrs  map[string]error
	getCalls []string
}

func (f *fakeSource) Get(_ context.Context, oid string) (interface{}, error) {
	f.getCalls = append(f.getCalls, oid)
	if err, ok := f.getErrs[oid]; ok {
		return nil, err
	}
	v, ok := f.gets[oid]
	if !ok {
		return nil, session.ErrNoValue
	}
	return v, nil
}

func (f *fakeSource) Walk(_ context.Context, root string, _ bool) (session.Table, error) {
	if err, ok := f.walkErrs[root]; ok {
		return session.Table{}, err
	}
	return session.NewTable(f.walks[root]...), nil
}

func rows(kv ...interface{}) []session.Row {
	out := make([]session.Row, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, session.Row{Key: kv[i].(string), Value: kv[i+1]})
	}
	return out
}

var oids = profile.BDCOMP3310()

// ─────────────────────────────────────────────────────────────────────────────
// Interfaces
// ─────────────────────────────────────────────────────────────────────────────

func TestInterfaces_JoinIgnoresUnmatchedRows(t *testing.T) {
	src := &fakeSource{walks: map[string][]session.Row{
		oids.IfName:       rows("1", "GE0/1", "2", "GE0/2", "3", "GE0/3"),
		oids.IfOperStatus: rows("2", 1, "4", 2),
	}}

	got, tally := correlate.Interfaces(context.Background(), src, oids, nil)
	if tally.Failed != 0 {
		t.Errorf("Failed = %d, want 0", tally.Failed)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3: %+v", len(got), got)
	}
	for _, r := range got {
		want := decoder.DefaultEnum
		if r.Index == 2 {
			want = "up"
		}
		if r.OperState != want {
			t.Errorf("index %d OperState = %q, want %q", r.Index, r.OperState, want)
		}
		if r.Index == 4 {
			t.Error("index 4 produced a record")
		}
	}
}

func TestInterfaces_DropsSubInterfaces(t *testing.T) {
	src := &fakeSource{walks: map[string][]session.Row{
		oids.IfName: rows("5", "EPON0/1:1", "3", "EPON0/1", "7", "EPON0/1:2", "1", "GE0/1"),
	}}

	got, _ := correlate.Interfaces(context.Background(), src, oids, nil)
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2: %+v", len(got), got)
	}
	if got[0].Index != 1 || got[1].Index != 3 {
		t.Errorf("indexes = %d,%d, want 1,3 (sorted)", got[0].Index, got[1].Index)
	}
	for _, r := range got {
		for _, c := range r.Name {
			if c == ':' {
				t.Errorf("sub-interface %q reported", r.Name)
			}
		}
	}
}

func TestInterfaces_SfpEnrichment(t *testing.T) {
	src := &fakeSource{
		walks: map[string][]session.Row{
			oids.IfName:         rows("1", "GE0/1", "2", "EPON0/1", "3", "EPON0/2"),
			oids.SfpTemperature: rows("2", 10240, "3", 2560, "9", 1),
		},
		gets: map[string]interface{}{
			oids.SfpSignal + ".2": -215,
		},
	}

	got, _ := correlate.Interfaces(context.Background(), src, oids, nil)
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}

	ge, pon1, pon2 := got[0], got[1], got[2]
	if ge.HasSfp || !pon1.HasSfp || !pon2.HasSfp {
		t.Errorf("HasSfp = %v,%v,%v, want false,true,true", ge.HasSfp, pon1.HasSfp, pon2.HasSfp)
	}
	if pon1.SignalDbm != -21.5 {
		t.Errorf("pon1 SignalDbm = %v, want -21.5", pon1.SignalDbm)
	}
	if pon2.SignalDbm != 0 {
		t.Errorf("pon2 SignalDbm = %v, want 0 (no value)", pon2.SignalDbm)
	}
	if pon1.TemperatureC != 40 || pon2.TemperatureC != 10 {
		t.Errorf("temperatures = %v,%v, want 40,10", pon1.TemperatureC, pon2.TemperatureC)
	}

	// Only SFP ports trigger a signal fetch.
	if len(src.getCalls) != 2 {
		t.Errorf("get calls = %v, want one per PON port", src.getCalls)
	}
}

func TestInterfaces_WalkFailureIsSoft(t *testing.T) {
	src := &fakeSource{
		walks: map[string][]session.Row{
			oids.IfName: rows("1", "EPON0/1"),
		},
		walkErrs: map[string]error{
			oids.IfOperStatus:   errors.New("timeout"),
			oids.SfpTemperature: errors.New("timeout"),
		},
		getErrs: map[string]error{
			oids.SfpSignal + ".1": errors.New("timeout"),
		},
	}

	got, tally := correlate.Interfaces(context.Background(), src, oids, nil)
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	if tally.Failed != 3 {
		t.Errorf("Failed = %d, want 3", tally.Failed)
	}
	if got[0].OperState != decoder.DefaultEnum || got[0].TemperatureC != 0 || got[0].SignalDbm != 0 {
		t.Errorf("record not at defaults: %+v", got[0])
	}
}

func TestInterfaces_OperStatePlaceholderIsSerialised(t *testing.T) {
	src := &fakeSource{walks: map[string][]session.Row{
		oids.IfName: rows("1", "GE0/1"),
	}}
	got, _ := correlate.Interfaces(context.Background(), src, oids, nil)
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	b, err := json.Marshal(got[0])
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(b), `"operState":"default"`) {
		t.Errorf("json = %s, want operState default", b)
	}
}

func TestInterfaces_EmptyIsNonNil(t *testing.T) {
	got, _ := correlate.Interfaces(context.Background(), &fakeSource{}, oids, nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Interfaces = %#v, want empty non-nil slice", got)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Onus
// ─────────────────────────────────────────────────────────────────────────────

func onuSource() *fakeSource {
	return &fakeSource{
		walks: map[string][]session.Row{
			oids.OnuMac: rows(
				"12", []byte{0x00, 0x1a, 0x5b, 0x02, 0xe0, 0x11},
				"10", []byte{0xfc, 0xfa, 0xf7, 0x00, 0x00, 0x01},
				"11", []byte{0xe0, 0x67, 0xb3, 0x55, 0x10, 0x20},
			),
			oids.OnuDeregStatus: rows(
				oids.OnuDeregStatus+".3.0.26.91.2.224.17", 8,
				oids.OnuDeregStatus+".3.252.250.247.0.0.1", 2,
				oids.OnuDeregStatus+".3.1.2.3.4.5.6", 9,
			),
			oids.IfName: rows(
				"10", "EPON0/1:1",
				"12", "EPON0/1:3",
				"99", "EPON0/4:1",
			),
			oids.OnuDistance: rows(
				"10", 1234,
				"11", 0,
			),
		},
		gets: map[string]interface{}{
			oids.OnuSignalRx + ".10": -215,
		},
	}
}

func TestOnus_Join(t *testing.T) {
	src := onuSource()
	got, tally := correlate.Onus(context.Background(), src, oids, nil)
	if tally.Failed != 0 {
		t.Errorf("Failed = %d, want 0", tally.Failed)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}

	online, offline, absent := got[0], got[1], got[2]
	if online.Index != "10" || offline.Index != "11" || absent.Index != "12" {
		t.Fatalf("indexes = %s,%s,%s, want 10,11,12", online.Index, offline.Index, absent.Index)
	}

	// Online: distance > 0, signal fetched.
	if online.MAC != "fc:fa:f7:00:00:01" {
		t.Errorf("MAC = %q", online.MAC)
	}
	if online.Ifname == nil || *online.Ifname != "EPON0/1:1" {
		t.Errorf("Ifname = %v", online.Ifname)
	}
	if online.DeregStatus == nil || *online.DeregStatus != "normal" {
		t.Errorf("DeregStatus = %v, want normal", online.DeregStatus)
	}
	if !online.IsOnline() || *online.Distance != 1234 {
		t.Errorf("online record = %+v", online)
	}
	if online.SignalRx == nil || *online.SignalRx != "-21.50" {
		t.Errorf("SignalRx = %v, want -21.50", online.SignalRx)
	}

	// Offline: distance 0, signal zero, no fetch.
	if offline.Online == nil || *offline.Online {
		t.Errorf("offline Online = %v, want false", offline.Online)
	}
	if offline.SignalRx == nil || !offline.SignalRx.IsZero() {
		t.Errorf("offline SignalRx = %v, want zero", offline.SignalRx)
	}
	if offline.Ifname != nil || offline.DeregStatus != nil {
		t.Errorf("offline record has unmatched fields: %+v", offline)
	}

	// No distance row: distance, online and signal unset.
	if absent.Distance != nil || absent.Online != nil || absent.SignalRx != nil {
		t.Errorf("absent record = %+v, want distance/online/signal unset", absent)
	}
	if absent.DeregStatus == nil || *absent.DeregStatus != "wire-down" {
		t.Errorf("DeregStatus = %v, want wire-down", absent.DeregStatus)
	}

	if len(src.getCalls) != 1 || src.getCalls[0] != oids.OnuSignalRx+".10" {
		t.Errorf("get calls = %v, want only the online onu", src.getCalls)
	}
}

func TestOnus_OnlineIffDistancePositive(t *testing.T) {
	got, _ := correlate.Onus(context.Background(), onuSource(), oids, nil)
	for _, r := range got {
		if r.Distance == nil {
			continue
		}
		if r.IsOnline() != (*r.Distance > 0) {
			t.Errorf("index %s: online=%v distance=%v", r.Index, r.IsOnline(), *r.Distance)
		}
		if !r.IsOnline() && !r.SignalRx.IsZero() {
			t.Errorf("index %s: offline onu has signal %q", r.Index, *r.SignalRx)
		}
	}
}

func TestOnus_EmptyMacWalk(t *testing.T) {
	src := onuSource()
	delete(src.walks, oids.OnuMac)
	got, _ := correlate.Onus(context.Background(), src, oids, nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Onus = %#v, want empty non-nil slice", got)
	}
}

func TestOnus_DuplicateMacKeepsFirst(t *testing.T) {
	mac := []byte{0x00, 0x1a, 0x5b, 0x02, 0xe0, 0x11}
	src := &fakeSource{walks: map[string][]session.Row{
		oids.OnuMac: rows("1", mac, "2", mac),
	}}
	got, _ := correlate.Onus(context.Background(), src, oids, nil)
	if len(got) != 1 || got[0].Index != "1" {
		t.Errorf("Onus = %+v, want single record with index 1", got)
	}
}

func TestOnus_SecondaryWalkFailuresAreSoft(t *testing.T) {
	src := onuSource()
	src.walkErrs = map[string]error{
		oids.OnuDeregStatus: errors.New("timeout"),
		oids.OnuDistance:    errors.New("timeout"),
	}
	got, tally := correlate.Onus(context.Background(), src, oids, nil)
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if tally.Failed != 2 {
		t.Errorf("Failed = %d, want 2", tally.Failed)
	}
	for _, r := range got {
		if r.DeregStatus != nil || r.Distance != nil {
			t.Errorf("index %s has fields from failed walks: %+v", r.Index, r)
		}
	}
}

func TestOnus_FractionalDistanceFollowsRoundedValue(t *testing.T) {
	src := &fakeSource{
		walks: map[string][]session.Row{
			oids.OnuMac: rows(
				"1", []byte{0xfc, 0xfa, 0xf7, 0x00, 0x00, 0x01},
				"2", []byte{0xfc, 0xfa, 0xf7, 0x00, 0x00, 0x02},
			),
			oids.OnuDistance: rows("1", 0.4, "2", 0.6),
		},
		gets: map[string]interface{}{
			oids.OnuSignalRx + ".2": -190,
		},
	}
	got, _ := correlate.Onus(context.Background(), src, oids, nil)
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	low, high := got[0], got[1]
	if *low.Distance != 0 || low.IsOnline() || !low.SignalRx.IsZero() {
		t.Errorf("0.4 record = distance %v online %v signal %v, want 0/false/zero", *low.Distance, low.IsOnline(), *low.SignalRx)
	}
	if *high.Distance != 1 || !high.IsOnline() || *high.SignalRx != "-19.00" {
		t.Errorf("0.6 record = distance %v online %v signal %v, want 1/true/-19.00", *high.Distance, high.IsOnline(), *high.SignalRx)
	}
	if len(src.getCalls) != 1 {
		t.Errorf("get calls = %v, want one", src.getCalls)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ONU details
// ─────────────────────────────────────────────────────────────────────────────

func TestOnuDetails_JoinOnIndex(t *testing.T) {
	src := onuSource()
	src.walks[oids.OnuVendor] = rows("10", "BDCM", "11", "BDCM")
	src.walks[oids.OnuModel] = rows("10", "P1501D1")
	src.walks[oids.OnuVersion] = rows("10", "31 2E 30 2E 32")
	src.walks[oids.OnuFirmware] = rows("10", "10.0.22B")
	src.walks[oids.OnuSignalTx] = rows("10", 25, "99", 30)

	onus, _ := correlate.Onus(context.Background(), src, oids, nil)
	tally := correlate.OnuDetails(context.Background(), src, oids, onus, nil)
	if tally.Failed != 0 {
		t.Errorf("Failed = %d, want 0", tally.Failed)
	}

	d := onus[0].Detail
	if d == nil {
		t.Fatalf("index 10 has no detail")
	}
	if d.Vendor != "BDCM" || d.Model != "P1501D1" || d.Version != "1.0.2" || d.Firmware != "10.0.22B" || d.SignalTx != "2.50" {
		t.Errorf("detail = %+v", *d)
	}
	if onus[1].Detail == nil || onus[1].Detail.Vendor != "BDCM" || onus[1].Detail.Model != "" {
		t.Errorf("index 11 detail = %+v, want vendor only", onus[1].Detail)
	}
	if onus[2].Detail != nil {
		t.Errorf("index 12 detail = %+v, want none", onus[2].Detail)
	}
}

func TestOnuDetails_WalkFailuresAreSoft(t *testing.T) {
	src := onuSource()
	src.walks[oids.OnuModel] = rows("10", "P1501D1")
	src.walkErrs = map[string]error{
		oids.OnuVendor:  errors.New("timeout"),
		oids.OnuVersion: errors.New("timeout"),
	}
	onus, _ := correlate.Onus(context.Background(), src, oids, nil)
	tally := correlate.OnuDetails(context.Background(), src, oids, onus, nil)
	if tally.Failed != 2 {
		t.Errorf("Failed = %d, want 2", tally.Failed)
	}
	if onus[0].Detail == nil || onus[0].Detail.Model != "P1501D1" {
		t.Errorf("detail = %+v, want model from the surviving walk", onus[0].Detail)
	}
}

func TestOnuDetails_UnsetOidIsSkipped(t *testing.T) {
	src := onuSource()
	noVendor := oids.With(profile.Override{"onu_vendor": ""})
	onus, _ := correlate.Onus(context.Background(), src, noVendor, nil)
	if tally := correlate.OnuDetails(context.Background(), src, noVendor, onus, nil); tally.Failed != 0 {
		t.Errorf("Failed = %d, want 0", tally.Failed)
	}
	for _, r := range onus {
		if r.Detail != nil {
			t.Errorf("index %s detail = %+v, want none", r.Index, r.Detail)
		}
	}
}
