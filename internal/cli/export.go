package cli

import (
	"bufio"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/memstore/internal/logging"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON lines",
		Long:  "Export every memory as newline-delimited JSON, optionally zstd-compressed.",
		Args:  cobra.NoArgs,
		Run:   runExport,
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolP("compress", "z", false, "Compress the output with zstd")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	output, _ := cmd.Flags().GetString("output")
	compress, _ := cmd.Flags().GetBool("compress")

	e := openEngine(cmd.Context())
	defer e.Close()

	f := os.Stdout
	if output != "" {
		var err error
		if f, err = os.Create(output); err != nil {
			exitErr("export", err)
		}
		defer f.Close()
	}

	w := bufio.NewWriter(f)
	n, err := e.Export(cmd.Context(), w, compress)
	if err != nil {
		exitErr("export", err)
	}
	if err := w.Flush(); err != nil {
		exitErr("export", err)
	}
	logging.Default().Info("exported memories", "count", n, "compressed", compress)
}
