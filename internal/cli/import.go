package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import memories from an export",
		Long:  "Import JSON-lines memories (plain or zstd) from a file or stdin. Existing keys are skipped.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var r io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("read file", err)
		}
		defer f.Close()
		r = f
	}

	e := openEngine(cmd.Context())
	defer e.Close()

	result, err := e.Import(cmd.Context(), r)
	if err != nil {
		exitErr("import", err)
	}
	printJSON(result)
}
