package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	e := openEngine(cmd.Context())
	defer e.Close()

	rec, err := e.Retrieve(cmd.Context(), args[0])
	if err != nil {
		exitErr("get", err)
	}
	printJSON(rec)
}
