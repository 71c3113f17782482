package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stenbroen/assetsync"
	"github.com/stenbroen/assetsync/internal/config"
	"github.com/stenbroen/assetsync/internal/history"
	"github.com/stenbroen/assetsync/internal/inventory"
	"github.com/stenbroen/assetsync/internal/sources/mdm"
	"github.com/stenbroen/assetsync/internal/sources/portscan"
	"github.com/stenbroen/assetsync/internal/sources/snmpscan"
	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/logging"
	"github.com/stenbroen/assetsync/pkg/override"
	"github.com/stenbroen/assetsync/pkg/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync [source...]",
	Short: "Run a sync cycle for the given sources (default: all configured)",
	Long: `Sync fetches device records from the named sources and reconciles
them into the inventory. Without arguments every configured source
runs, least authoritative first, so the most trusted source's values
win any field conflicts.`,
	ValidArgs: []string{"mdm", "snmp", "scan"},
	RunE:      runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForSync(); err != nil {
		return err
	}

	ctx := logging.WithLogger(cmd.Context(), logging.Default())

	client, closeLedger, err := buildClient(cfg)
	if err != nil {
		return err
	}
	defer closeLedger()

	var outcomes []*syncer.Outcome
	if len(args) == 0 {
		outcomes, err = client.SyncAll(ctx)
	} else {
		for _, name := range args {
			outcome, syncErr := client.Sync(ctx, asset.Source(name))
			if outcome != nil {
				outcomes = append(outcomes, outcome)
			}
			if syncErr != nil {
				err = syncErr
				break
			}
		}
	}

	for _, outcome := range outcomes {
		fmt.Println(outcome.Summary())
	}
	return err
}

// buildClient assembles the sync client from configuration. The
// returned func closes the history ledger.
func buildClient(cfg *config.Config) (*assetsync.Client, func(), error) {
	logger := *logging.Default()

	overrides, err := override.Load(cfg.OverridesPath)
	if err != nil {
		return nil, nil, err
	}

	store := inventory.New(cfg.InventoryURL, cfg.InventoryToken,
		inventory.WithCacheTTL(cfg.CacheTTL),
		inventory.WithLogger(logger),
	)

	opts := []assetsync.Option{
		assetsync.WithStore(store),
		assetsync.WithOverrides(overrides),
		assetsync.WithConcurrency(cfg.Concurrency),
		assetsync.WithDryRun(cfg.DryRun),
		assetsync.WithLogger(logger),
	}

	closeLedger := func() {}
	if cfg.HistoryPath != "" && !cfg.DryRun {
		ledger, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, assetsync.WithHistory(ledger))
		closeLedger = func() { ledger.Close() }
	}

	if cfg.HasMDM() {
		opts = append(opts, assetsync.WithSource(
			mdm.New(cfg.MDMURL, cfg.MDMToken, mdm.WithLogger(logger))))
	}
	if cfg.HasSNMP() {
		src, err := snmpscan.New(cfg.SNMPRanges, cfg.SNMPCommunity, snmpscan.WithLogger(logger))
		if err != nil {
			closeLedger()
			return nil, nil, err
		}
		opts = append(opts, assetsync.WithSource(src))
	}
	if cfg.HasScan() {
		src, err := portscan.New(cfg.ScanTargets,
			portscan.WithPorts(cfg.ScanPorts),
			portscan.WithLogger(logger))
		if err != nil {
			closeLedger()
			return nil, nil, err
		}
		opts = append(opts, assetsync.WithSource(src))
	}

	client, err := assetsync.New(opts...)
	if err != nil {
		closeLedger()
		return nil, nil, err
	}
	return client, closeLedger, nil
}
