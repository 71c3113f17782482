package syncer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/errors"
	"github.com/stenbroen/assetsync/pkg/identity"
	"github.com/stenbroen/assetsync/pkg/override"
	"github.com/stenbroen/assetsync/pkg/syncer"
)

// fakeStore is an in-memory Store with optional injected failures.
type fakeStore struct {
	mu          sync.Mutex
	records     map[string]*asset.Record
	nextID      int
	failKeys    map[string]error
	snapshotErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*asset.Record{}, nextID: 1}
}

func (s *fakeStore) Snapshot(_ context.Context) (map[string]*asset.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshotErr != nil {
		return nil, s.snapshotErr
	}
	out := make(map[string]*asset.Record, len(s.records))
	for k, v := range s.records {
		out[k] = v.Clone()
	}
	return out, nil
}

func (s *fakeStore) Create(_ context.Context, rec *asset.Record) (*asset.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failKeys[rec.IdentityKey]; err != nil {
		return nil, err
	}
	if _, ok := s.records[rec.IdentityKey]; ok {
		return nil, errors.ErrAlreadyExists
	}
	stored := rec.Clone()
	stored.StoreID = s.nextID
	s.nextID++
	s.records[rec.IdentityKey] = stored
	return stored.Clone(), nil
}

func (s *fakeStore) Update(_ context.Context, rec *asset.Record) (*asset.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failKeys[rec.IdentityKey]; err != nil {
		return nil, err
	}
	if _, ok := s.records[rec.IdentityKey]; !ok {
		return nil, errors.ErrNotFound
	}
	s.records[rec.IdentityKey] = rec.Clone()
	return rec.Clone(), nil
}

func laptop(serial, ip string) asset.RawDeviceRecord {
	rec := asset.RawDeviceRecord{
		Source:     asset.SourceMDM,
		Serial:     serial,
		IP:         ip,
		ObservedAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}
	rec.SetAttr(asset.AttrModel, "ThinkPad T14 Gen 3")
	rec.SetAttr(asset.AttrManufacturer, "LENOVO")
	rec.SetAttr(asset.AttrOS, "Windows 11")
	return rec
}

func TestRunCreatesUpdatesSkips(t *testing.T) {
	store := newFakeStore()
	e := syncer.NewEngine(store)
	ctx := context.Background()

	// First run creates.
	out, err := e.Run(ctx, asset.SourceMDM, []asset.RawDeviceRecord{
		laptop("PF3KXQ7T", "10.0.0.12"),
		laptop("PF3KXQ8U", "10.0.0.13"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Created)
	assert.Equal(t, 0, out.Updated)
	assert.Equal(t, 0, out.Skipped)

	rec := store.records["serial:pf3kxq7t"]
	require.NotNil(t, rec)
	assert.Equal(t, asset.CategoryLaptop, rec.Category)
	assert.Equal(t, "Lenovo", rec.Value(asset.AttrManufacturer))
	assert.NotZero(t, rec.StoreID)

	// Re-running the same batch only skips.
	out, err = e.Run(ctx, asset.SourceMDM, []asset.RawDeviceRecord{
		laptop("PF3KXQ7T", "10.0.0.12"),
		laptop("PF3KXQ8U", "10.0.0.13"),
	})
	require.NoError(t, err)
	assert.False(t, out.HasChanges())
	assert.Equal(t, 2, out.Skipped)

	// A changed field updates.
	out, err = e.Run(ctx, asset.SourceMDM, []asset.RawDeviceRecord{
		laptop("PF3KXQ7T", "10.0.0.99"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Updated)
	assert.Equal(t, "10.0.0.99", store.records["serial:pf3kxq7t"].Value(asset.AttrLastSeenIP))
}

func TestRunDeduplicatesBatch(t *testing.T) {
	store := newFakeStore()
	e := syncer.NewEngine(store)

	first := laptop("PF3KXQ7T", "")
	dup := laptop("PF3KXQ7T", "10.0.0.12")
	dup.SetAttr(asset.AttrPrimaryUser, "jdoe")

	out, err := e.Run(context.Background(), asset.SourceMDM, []asset.RawDeviceRecord{first, dup})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Created)
	assert.Len(t, out.Records, 1)

	// The duplicate's extra data filled the first record's gaps.
	rec := store.records["serial:pf3kxq7t"]
	require.NotNil(t, rec)
	assert.Equal(t, "10.0.0.12", rec.Value(asset.AttrLastSeenIP))
	assert.Equal(t, "jdoe", rec.Value(asset.AttrPrimaryUser))
}

func TestRunPartialFailure(t *testing.T) {
	store := newFakeStore()
	store.failKeys = map[string]error{
		"serial:pf3kxq8u": errors.NewAPIError(500, "/api/v1/hardware", "boom"),
	}
	e := syncer.NewEngine(store)

	out, err := e.Run(context.Background(), asset.SourceMDM, []asset.RawDeviceRecord{
		laptop("PF3KXQ7T", "10.0.0.12"),
		laptop("PF3KXQ8U", "10.0.0.13"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Created)
	assert.Equal(t, 1, out.Failed)

	var failed *syncer.RecordStatus
	for i := range out.Records {
		if out.Records[i].State == syncer.StateFailed {
			failed = &out.Records[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "serial:pf3kxq8u", failed.IdentityKey)
	assert.Error(t, failed.Err)
}

func TestRunNoIdentityIsFailed(t *testing.T) {
	store := newFakeStore()
	e := syncer.NewEngine(store)

	out, err := e.Run(context.Background(), asset.SourceScan, []asset.RawDeviceRecord{
		{Source: asset.SourceScan}, // nothing to key on
		laptop("PF3KXQ7T", "10.0.0.12"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Failed)
	assert.Equal(t, 1, out.Created)
	assert.True(t, errors.Is(out.Records[0].Err, errors.ErrNoIdentity))
}

func TestRunSnapshotFailureAborts(t *testing.T) {
	store := newFakeStore()
	store.snapshotErr = errors.NewAPIError(503, "/api/v1/hardware", "unavailable")
	e := syncer.NewEngine(store)

	out, err := e.Run(context.Background(), asset.SourceMDM, []asset.RawDeviceRecord{
		laptop("PF3KXQ7T", "10.0.0.12"),
	})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Empty(t, store.records)
}

func TestRunDryRun(t *testing.T) {
	store := newFakeStore()
	e := syncer.NewEngine(store, syncer.WithDryRun(true))

	out, err := e.Run(context.Background(), asset.SourceMDM, []asset.RawDeviceRecord{
		laptop("PF3KXQ7T", "10.0.0.12"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Created)
	assert.True(t, out.DryRun)
	assert.Empty(t, store.records)
}

func TestRunStaticOverride(t *testing.T) {
	table, err := override.New(map[string]override.Entry{
		"192.168.1.1": {
			DeviceType: "Firewall",
			Name:       "Meraki MX85 Gateway",
			Location:   "Glostrup",
		},
	})
	require.NoError(t, err)

	store := newFakeStore()
	e := syncer.NewEngine(store, syncer.WithResolver(identity.NewResolver(table)))

	out, err := e.Run(context.Background(), asset.SourceSNMP, []asset.RawDeviceRecord{
		{Source: asset.SourceSNMP, IP: "192.168.1.1", ObservedAt: time.Now()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Created)

	rec := store.records["static_ip:192.168.1.1"]
	require.NotNil(t, rec)
	assert.Equal(t, asset.CategoryFirewall, rec.Category)
	assert.True(t, rec.CategoryLocked)
	assert.Equal(t, "Meraki MX85 Gateway", rec.Name())
	assert.Equal(t, "Glostrup", rec.Location)
}

func TestOutcomeSummary(t *testing.T) {
	out := &syncer.Outcome{Source: asset.SourceMDM, Created: 2, Updated: 1, Skipped: 5}
	assert.Equal(t, "mdm: 2 created, 1 updated, 5 skipped, 0 failed", out.Summary())
	assert.True(t, out.HasChanges())
}
