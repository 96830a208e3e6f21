package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild indexes and re-embed records from a different embedder",
		Args:  cobra.NoArgs,
		Run:   runReindex,
	}

	RootCmd.AddCommand(cmd)
}

func runReindex(cmd *cobra.Command, args []string) {
	e := openEngine(cmd.Context())
	defer e.Close()

	n, err := e.Rebuild(cmd.Context())
	if err != nil {
		exitErr("reindex", err)
	}
	printJSON(map[string]int{"indexed": n})
}
