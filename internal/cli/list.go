package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories in insertion order",
		Args:  cobra.NoArgs,
		Run:   runList,
	}

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	e := openEngine(cmd.Context())
	defer e.Close()

	summaries, err := e.List(cmd.Context())
	if err != nil {
		exitErr("list", err)
	}
	printJSON(summaries)
}
