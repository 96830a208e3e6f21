package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memstore/internal/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [query]",
		Short: "Assemble relevant memories within a token budget",
		Long:  "Run a hybrid search and pack the best matches into a token budget (1 token ≈ 4 chars).",
		Args:  cobra.MinimumNArgs(1),
		Run:   runContext,
	}

	cmd.Flags().IntP("budget", "b", engine.DefaultContextBudget, "Token budget")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")

	e := openEngine(cmd.Context())
	defer e.Close()

	result, err := e.Context(cmd.Context(), strings.Join(args, " "), budget)
	if err != nil {
		exitErr("context", err)
	}
	printJSON(result)
}
