package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stenbroen/assetsync/pkg/override"
)

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Inspect the static override table",
}

var overridesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all static per-IP overrides",
	RunE: func(*cobra.Command, []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		table, err := override.Load(cfg.OverridesPath)
		if err != nil {
			return err
		}
		if table.Len() == 0 {
			fmt.Println("no overrides configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "IP\tCATEGORY\tNAME\tLOCATION\tPLACEMENT")
		for _, ip := range table.IPs() {
			entry, _ := table.Lookup(ip)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				ip, entry.AssetCategory(), entry.Name, entry.Location, entry.Placement)
		}
		return w.Flush()
	},
}

func init() {
	overridesCmd.AddCommand(overridesListCmd)
	rootCmd.AddCommand(overridesCmd)
}
