package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/errors"
	"github.com/stenbroen/assetsync/pkg/syncer"
)

func openLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func outcome(source asset.Source, created, updated int, started time.Time) *syncer.Outcome {
	return &syncer.Outcome{
		Source:   source,
		Created:  created,
		Updated:  updated,
		Skipped:  1,
		Started:  started,
		Finished: started.Add(3 * time.Second),
		Records:  make([]syncer.RecordStatus, created+updated+1),
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestRecordAndRecent(t *testing.T) {
	ledger := openLedger(t)
	ctx := context.Background()

	base := time.Date(2025, 11, 3, 6, 0, 0, 0, time.UTC)
	require.NoError(t, ledger.Record(ctx, outcome(asset.SourceMDM, 2, 1, base)))
	require.NoError(t, ledger.Record(ctx, outcome(asset.SourceSNMP, 0, 3, base.Add(time.Hour))))

	runs, err := ledger.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, "snmp", runs[0].Source)
	assert.Equal(t, "mdm", runs[1].Source)
	assert.Equal(t, 2, runs[1].Created)
	assert.Equal(t, 1, runs[1].Updated)
	assert.Equal(t, 1, runs[1].Skipped)
	assert.Equal(t, 4, runs[1].Records)
	assert.Equal(t, 3*time.Second, runs[1].Duration())
	assert.False(t, runs[1].DryRun)
}

func TestRecentFiltersBySource(t *testing.T) {
	ledger := openLedger(t)
	ctx := context.Background()

	base := time.Date(2025, 11, 3, 6, 0, 0, 0, time.UTC)
	require.NoError(t, ledger.Record(ctx, outcome(asset.SourceMDM, 1, 0, base)))
	require.NoError(t, ledger.Record(ctx, outcome(asset.SourceScan, 1, 0, base.Add(time.Minute))))
	require.NoError(t, ledger.Record(ctx, outcome(asset.SourceMDM, 0, 1, base.Add(2*time.Minute))))

	runs, err := ledger.Recent(ctx, "mdm", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, "mdm", run.Source)
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	ledger := openLedger(t)
	ctx := context.Background()

	base := time.Date(2025, 11, 3, 6, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, ledger.Record(ctx, outcome(asset.SourceSNMP, i, 0, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := ledger.Recent(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 4, runs[0].Created)
}

func TestClosedLedgerErrorsCarryPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ledger, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, ledger.Close())

	err = ledger.Record(context.Background(), outcome(asset.SourceMDM, 1, 0, time.Now()))
	require.Error(t, err)

	var ioErr *errors.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, path, ioErr.Path)
}

func TestRecordRejectsNil(t *testing.T) {
	ledger := openLedger(t)
	require.Error(t, ledger.Record(context.Background(), nil))
}

func TestTotalsBySource(t *testing.T) {
	ledger := openLedger(t)
	ctx := context.Background()

	base := time.Date(2025, 11, 3, 6, 0, 0, 0, time.UTC)
	require.NoError(t, ledger.Record(ctx, outcome(asset.SourceMDM, 2, 1, base)))
	require.NoError(t, ledger.Record(ctx, outcome(asset.SourceMDM, 1, 0, base.Add(time.Minute))))
	require.NoError(t, ledger.Record(ctx, outcome(asset.SourceScan, 0, 4, base.Add(2*time.Minute))))

	totals, err := ledger.TotalsBySource(ctx)
	require.NoError(t, err)

	assert.Equal(t, Totals{Runs: 2, Created: 3, Updated: 1}, totals["mdm"])
	assert.Equal(t, Totals{Runs: 1, Updated: 4}, totals["scan"])
}

func TestRunString(t *testing.T) {
	run := Run{
		Source:   "mdm",
		Started:  time.Date(2025, 11, 3, 6, 0, 0, 0, time.UTC),
		Finished: time.Date(2025, 11, 3, 6, 0, 2, 0, time.UTC),
		Created:  1,
		Updated:  2,
		DryRun:   true,
	}
	s := run.String()
	assert.Contains(t, s, "mdm")
	assert.Contains(t, s, "1 created, 2 updated")
	assert.Contains(t, s, "[dry run]")
}
