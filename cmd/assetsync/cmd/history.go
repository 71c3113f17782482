package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stenbroen/assetsync/internal/history"
)

var (
	historySource string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ledger, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer ledger.Close()

		runs, err := ledger.Recent(cmd.Context(), historySource, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no sync runs recorded")
			return nil
		}
		for _, run := range runs {
			fmt.Println(run)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historySource, "source", "", "only show runs for this source")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to show")
	rootCmd.AddCommand(historyCmd)
}
