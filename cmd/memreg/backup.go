package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kitoverdie1/uph-mem-system/pkg/docstore"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write the registry document to a file or stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, _ := cmd.Flags().GetString("out")

		rt, err := openRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		data, err := newService(rt).ExportBackup(cmd.Context())
		if err != nil {
			return err
		}
		if out == "" || out == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		logger.Info("backup written", "file", out, "bytes", len(data))
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Replace the registry with a backup document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return errors.New("restore replaces every asset and calibration item; pass --yes to confirm")
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		rt, err := openRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		stats, err := newService(rt).RestoreBackup(cmd.Context(), data, "memreg-cli")
		if err != nil {
			return err
		}
		if done, err := printStructured(stats); done {
			return err
		}
		fmt.Printf("restored %d assets and %d calibration items\n", stats.Assets, stats.Calibration)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded registry changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if cfg.Store.HistoryDir == "" {
			return errors.New("change history is off; set store.history_dir")
		}

		rt, err := openRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		commits, err := rt.recorder.Log(limit)
		if err != nil {
			return err
		}
		if done, err := printStructured(commits); done {
			return err
		}
		rows := make([][]string, 0, len(commits))
		for _, c := range commits {
			rows = append(rows, []string{
				truncate(c.Hash, 10),
				c.When.Local().Format(time.DateTime),
				c.Author,
				truncate(c.Message, 60),
			})
		}
		printTable([]string{"Commit", "When", "Author", "Message"}, rows)
		return nil
	},
}

var revisionsCmd = &cobra.Command{
	Use:   "revisions",
	Short: "List document snapshots kept by the file store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := openRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		hist, err := historian(rt)
		if err != nil {
			return err
		}
		revs, err := hist.ListRevisions(cmd.Context())
		if err != nil {
			return err
		}
		if done, err := printStructured(revs); done {
			return err
		}
		rows := make([][]string, 0, len(revs))
		for _, r := range revs {
			rows = append(rows, []string{r.Version, r.Timestamp.Local().Format(time.DateTime), fmt.Sprint(r.Size)})
		}
		printTable([]string{"Version", "Saved", "Bytes"}, rows)
		return nil
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <version>",
	Short: "Restore a document snapshot kept by the file store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		hist, err := historian(rt)
		if err != nil {
			return err
		}
		doc, err := hist.Rollback(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("rolled back to %s: %d assets, %d calibration items\n", args[0], len(doc.Assets), len(doc.Calibration.Items))
		return nil
	},
}

func historian(rt *runtime) (docstore.Historian, error) {
	hist, ok := rt.store.(docstore.Historian)
	if !ok {
		return nil, fmt.Errorf("the %s store keeps no snapshots", cfg.Store.Backend)
	}
	return hist, nil
}

func init() {
	backupCmd.Flags().String("out", "", "Output file (default: stdout)")
	restoreCmd.Flags().Bool("yes", false, "Confirm replacing the registry")
	historyCmd.Flags().Int("limit", 20, "Number of changes to list")
}
