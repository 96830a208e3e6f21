// Package cli implements the memstore CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/memstore/internal/config"
	"github.com/rcliao/memstore/internal/engine"
	"github.com/rcliao/memstore/internal/logging"
)

var (
	dbPath     string
	configPath string
	logLevel   string
)

// RootCmd is the top-level command. Without a subcommand it serves the line
// protocol on stdin/stdout.
var RootCmd = &cobra.Command{
	Use:   "memstore",
	Short: "Embedded memory store with keyword and semantic search",
	Long: "A single-binary memory store. Records live in SQLite; exact, keyword, semantic and hybrid\n" +
		"search run over in-memory indexes rebuilt on start. With no subcommand, reads JSON requests\n" +
		"from stdin and writes one JSON response per line to stdout.",
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $MEMSTORE_DB or ~/.memstore/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $MEMSTORE_LOG_LEVEL or info)")
}

// loadConfig resolves the configuration and installs the process logger.
func loadConfig() config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		exitErr("load config", fmt.Errorf("unknown log level %q", cfg.LogLevel))
	}
	logging.SetDefault(logging.New(cfg.LogLevel, os.Stderr))
	return cfg
}

func openEngine(ctx context.Context) *engine.Engine {
	e, err := engine.Open(ctx, loadConfig())
	if err != nil {
		exitErr("open store", err)
	}
	return e
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	logging.Default().Debug(msg, "error", err)
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
