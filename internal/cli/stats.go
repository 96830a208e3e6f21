package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Args:  cobra.NoArgs,
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	e := openEngine(cmd.Context())
	defer e.Close()

	stats, err := e.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(stats)
}
