package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memstore/internal/engine"
	"github.com/rcliao/memstore/internal/search"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories",
		Long:  "Search memories by key, keyword, meaning, or a blend of keyword and meaning (hybrid, the default).",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("mode", "m", "hybrid", "Mode: exact, keyword, semantic, hybrid")
	cmd.Flags().IntP("limit", "l", 0, "Max results (default from config, 5)")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	modeStr, _ := cmd.Flags().GetString("mode")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	mode, err := search.ParseMode(modeStr)
	if err != nil {
		exitErr("search", err)
	}
	if cmd.Flags().Changed("limit") && limit <= 0 {
		exitErr("search", fmt.Errorf("--limit must be positive, got %d", limit))
	}

	e := openEngine(cmd.Context())
	defer e.Close()

	results, err := e.Search(cmd.Context(), engine.SearchParams{Query: query, Mode: mode, Limit: limit})
	if err != nil {
		exitErr("search", err)
	}
	printJSON(results)
}
