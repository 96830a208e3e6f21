package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcliao/memstore/internal/logging"
	"github.com/rcliao/memstore/internal/protocol"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON line protocol on stdin/stdout",
		Long: "Read one JSON request per line from stdin and write one JSON response per line to stdout.\n" +
			"Actions: store, store_with_key, retrieve, list, search, stats, context.",
		Args: cobra.NoArgs,
		Run:  runServe,
	}

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := openEngine(ctx)
	defer e.Close()

	logging.Default().Debug("serving on stdin")
	if err := protocol.NewServer(e).Serve(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		exitErr("serve", err)
	}
}
