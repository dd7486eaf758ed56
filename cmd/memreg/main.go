// Command memreg runs the equipment registry server and its maintenance
// commands: imports, code allocation, backups and history.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kitoverdie1/uph-mem-system/pkg/config"
)

var (
	version = "dev"

	cfgFile   string
	outputFmt string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:     "memreg",
	Short:   "Medical equipment registry",
	Version: version,
	Long: `memreg keeps the equipment register and calibration plan of a medical
equipment maintenance office.

"memreg serve" runs the HTTP API. The other commands work directly on the
configured registry store and are meant for operators.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = loaded
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.SlogLevel(),
		}))
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./memreg.yaml or ~/.config/memreg/memreg.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().String("store", "", "Registry store backend: file, sqlite, postgres, mysql, redis")
	rootCmd.PersistentFlags().String("data", "", "Registry document path for the file backend")
	rootCmd.PersistentFlags().String("dsn", "", "Registry database DSN for SQL backends")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(nextCodeCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(revisionsCmd)
	rootCmd.AddCommand(rollbackCmd)
}

func main() {
	// glog writes fatal startup errors to stderr.
	_ = flag.Set("logtostderr", "true")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
