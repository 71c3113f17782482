package reconcile_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/authority"
	"github.com/stenbroen/assetsync/pkg/identity"
	"github.com/stenbroen/assetsync/pkg/override"
	"github.com/stenbroen/assetsync/pkg/provenance"
	"github.com/stenbroen/assetsync/pkg/reconcile"
)

var (
	t0 = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func mdmRecord(at time.Time) asset.RawDeviceRecord {
	rec := asset.RawDeviceRecord{
		Source:     asset.SourceMDM,
		Serial:     "PF3KXQ7T",
		IP:         "10.0.0.12",
		ObservedAt: at,
	}
	rec.SetAttr(asset.AttrName, "LT-0042")
	rec.SetAttr(asset.AttrOS, "Windows 11")
	return rec
}

func TestMergeNewRecord(t *testing.T) {
	m := reconcile.NewMerger()
	res := identity.Resolution{Key: "serial:pf3kxq7t", Method: identity.MethodSerial}

	got, changed := m.Merge(nil, mdmRecord(t0), asset.CategoryLaptop, res)

	if !changed {
		t.Fatal("expected new record to report changed")
	}
	if got.IdentityKey != "serial:pf3kxq7t" {
		t.Errorf("IdentityKey = %q", got.IdentityKey)
	}
	if got.Category != asset.CategoryLaptop {
		t.Errorf("Category = %q, want Laptop", got.Category)
	}

	want := asset.Field{Value: "Windows 11", Source: asset.SourceMDM, UpdatedAt: t0}
	if diff := cmp.Diff(want, got.Fields[asset.AttrOS]); diff != "" {
		t.Errorf("os field mismatch (-want +got):\n%s", diff)
	}
	if got.Value(asset.AttrSerial) != "PF3KXQ7T" {
		t.Errorf("serial = %q", got.Value(asset.AttrSerial))
	}
	if got.LastUpdateSource != asset.SourceMDM || !got.LastUpdateAt.Equal(t0) {
		t.Errorf("last update = %s at %s", got.LastUpdateSource, got.LastUpdateAt)
	}
}

func TestMergeEmptyNeverDestroys(t *testing.T) {
	m := reconcile.NewMerger()
	res := identity.Resolution{Key: "serial:pf3kxq7t", Method: identity.MethodSerial}

	existing, _ := m.Merge(nil, mdmRecord(t0), asset.CategoryLaptop, res)

	// Later scan sees the device but knows nothing except its IP.
	scan := asset.RawDeviceRecord{
		Source:     asset.SourceScan,
		Serial:     "PF3KXQ7T",
		IP:         "10.0.0.12",
		ObservedAt: t1,
	}
	got, changed := m.Merge(existing, scan, asset.CategoryLaptop, res)

	if changed {
		t.Error("expected no change when incoming adds nothing")
	}
	if got.Value(asset.AttrOS) != "Windows 11" {
		t.Errorf("os was destroyed: %q", got.Value(asset.AttrOS))
	}
	if got.Fields[asset.AttrOS].Source != asset.SourceMDM {
		t.Errorf("os provenance changed: %s", got.Fields[asset.AttrOS].Source)
	}
}

func TestMergeLastWriterWins(t *testing.T) {
	m := reconcile.NewMerger()
	res := identity.Resolution{Key: "serial:pf3kxq7t", Method: identity.MethodSerial}

	existing, _ := m.Merge(nil, mdmRecord(t0), asset.CategoryLaptop, res)

	scan := asset.RawDeviceRecord{
		Source:     asset.SourceScan,
		Serial:     "PF3KXQ7T",
		IP:         "10.0.0.99",
		ObservedAt: t1,
	}
	got, changed := m.Merge(existing, scan, asset.CategoryLaptop, res)

	if !changed {
		t.Fatal("expected change")
	}
	want := asset.Field{Value: "10.0.0.99", Source: asset.SourceScan, UpdatedAt: t1}
	if diff := cmp.Diff(want, got.Fields[asset.AttrLastSeenIP]); diff != "" {
		t.Errorf("ip field mismatch (-want +got):\n%s", diff)
	}

	// The original record must be untouched.
	if existing.Value(asset.AttrLastSeenIP) != "10.0.0.12" {
		t.Error("existing record was mutated")
	}
}

func TestMergeOverrideLocksCategory(t *testing.T) {
	m := reconcile.NewMerger()
	entry := override.Entry{
		DeviceType: "Firewall",
		Name:       "Meraki MX85 Gateway",
		Location:   "Glostrup",
		Placement:  "Server Room",
	}
	res := identity.Resolution{
		Key:      "static_ip:192.168.1.1",
		Method:   identity.MethodStaticIP,
		Override: &entry,
	}

	raw := asset.RawDeviceRecord{Source: asset.SourceStatic, IP: "192.168.1.1", ObservedAt: t0}
	rec, _ := m.Merge(nil, raw, entry.AssetCategory(), res)

	if rec.Category != asset.CategoryFirewall || !rec.CategoryLocked {
		t.Fatalf("category = %q locked=%v", rec.Category, rec.CategoryLocked)
	}
	if rec.Name() != "Meraki MX85 Gateway" {
		t.Errorf("name = %q", rec.Name())
	}
	if rec.Location != "Glostrup" || rec.Placement != "Server Room" {
		t.Errorf("location/placement = %q/%q", rec.Location, rec.Placement)
	}

	// A later snmp observation classifies it as a switch; the locked
	// category must hold.
	snmp := asset.RawDeviceRecord{Source: asset.SourceSNMP, IP: "192.168.1.1", ObservedAt: t1}
	snmpRes := identity.Resolution{Key: "static_ip:192.168.1.1", Method: identity.MethodStaticIP}
	got, _ := m.Merge(rec, snmp, asset.CategorySwitch, snmpRes)

	if got.Category != asset.CategoryFirewall {
		t.Errorf("locked category replaced by %q", got.Category)
	}
}

func TestMergeRuleCategoryReplacesRuleCategory(t *testing.T) {
	m := reconcile.NewMerger()
	res := identity.Resolution{Key: "ip:10.0.0.5", Method: identity.MethodIP, LowConfidence: true}

	scan := asset.RawDeviceRecord{Source: asset.SourceScan, IP: "10.0.0.5", ObservedAt: t0}
	rec, _ := m.Merge(nil, scan, asset.CategoryOther, res)

	// The next run produces a real classification.
	snmp := asset.RawDeviceRecord{Source: asset.SourceSNMP, IP: "10.0.0.5", ObservedAt: t1}
	got, changed := m.Merge(rec, snmp, asset.CategoryPrinter, res)

	if !changed || got.Category != asset.CategoryPrinter {
		t.Errorf("changed=%v category=%q, want Printer", changed, got.Category)
	}
}

func TestMergeFieldPins(t *testing.T) {
	m := reconcile.NewMerger(reconcile.WithFieldPins([]authority.Field{
		{Path: asset.AttrPrimaryUser, Source: asset.SourceMDM, Priority: 5},
	}))
	res := identity.Resolution{Key: "serial:pf3kxq7t", Method: identity.MethodSerial}

	mdm := mdmRecord(t0)
	mdm.SetAttr(asset.AttrPrimaryUser, "jdoe")
	existing, _ := m.Merge(nil, mdm, asset.CategoryLaptop, res)

	// SNMP ranks below MDM and must not overwrite the pinned field.
	snmp := asset.RawDeviceRecord{Source: asset.SourceSNMP, Serial: "PF3KXQ7T", ObservedAt: t1}
	snmp.SetAttr(asset.AttrPrimaryUser, "admin")
	got, changed := m.Merge(existing, snmp, asset.CategoryLaptop, res)

	if changed {
		t.Error("pinned field overwrite should not count as a change")
	}
	if got.Value(asset.AttrPrimaryUser) != "jdoe" {
		t.Errorf("pinned field overwritten: %q", got.Value(asset.AttrPrimaryUser))
	}

	// The pinned source itself may update the field.
	mdm2 := mdmRecord(t1)
	mdm2.SetAttr(asset.AttrPrimaryUser, "asmith")
	got, changed = m.Merge(got, mdm2, asset.CategoryLaptop, res)
	if !changed || got.Value(asset.AttrPrimaryUser) != "asmith" {
		t.Errorf("pinned source blocked: changed=%v value=%q", changed, got.Value(asset.AttrPrimaryUser))
	}
}

func TestMergeTracksChanges(t *testing.T) {
	tracker := provenance.NewTracker(true)
	m := reconcile.NewMerger(reconcile.WithTracker(tracker))
	res := identity.Resolution{Key: "serial:pf3kxq7t", Method: identity.MethodSerial}

	rec, _ := m.Merge(nil, mdmRecord(t0), asset.CategoryLaptop, res)

	scan := asset.RawDeviceRecord{Source: asset.SourceScan, Serial: "PF3KXQ7T", IP: "10.0.0.99", ObservedAt: t1}
	_, _ = m.Merge(rec, scan, asset.CategoryLaptop, res)

	history := tracker.FindByField("serial:pf3kxq7t", asset.AttrLastSeenIP)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[1].Previous != "10.0.0.12" || history[1].Value != "10.0.0.99" {
		t.Errorf("change = %+v", history[1])
	}
}

func TestMergeIdempotent(t *testing.T) {
	m := reconcile.NewMerger()
	res := identity.Resolution{Key: "serial:pf3kxq7t", Method: identity.MethodSerial}

	first, _ := m.Merge(nil, mdmRecord(t0), asset.CategoryLaptop, res)
	second, changed := m.Merge(first, mdmRecord(t1), asset.CategoryLaptop, res)

	if changed {
		t.Error("re-merging identical data reported a change")
	}
	if !first.FieldsEqual(second) {
		t.Error("records differ after idempotent merge")
	}
}
