package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/memstore/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "store [content]",
		Short: "Store a memory",
		Long:  "Store a memory. Content can be a positional arg or piped via stdin. Without --key a key is generated.",
		Run:   runStore,
	}

	cmd.Flags().StringP("key", "k", "", "Key (generated when omitted)")
	cmd.Flags().String("meta", "", "JSON metadata object with scalar values")

	RootCmd.AddCommand(cmd)
}

func runStore(cmd *cobra.Command, args []string) {
	key, _ := cmd.Flags().GetString("key")
	metaStr, _ := cmd.Flags().GetString("meta")

	// Get content: positional arg first, then check stdin
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}

	var meta model.Metadata
	if metaStr != "" {
		if err := json.Unmarshal([]byte(metaStr), &meta); err != nil {
			exitErr("store", fmt.Errorf("--meta must be a JSON object: %w", err))
		}
	}

	e := openEngine(cmd.Context())
	defer e.Close()

	var err error
	if key == "" {
		key, err = e.Store(cmd.Context(), strings.TrimSpace(content), meta)
	} else {
		key, err = e.StoreWithKey(cmd.Context(), key, strings.TrimSpace(content), meta)
	}
	if err != nil {
		exitErr("store", err)
	}

	printJSON(map[string]string{"key": key})
}
