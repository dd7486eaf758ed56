package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kitoverdie1/uph-mem-system/pkg/reconcile"
	"github.com/Kitoverdie1/uph-mem-system/pkg/service"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an asset register or calibration plan spreadsheet",
	Long: `Import reads an .xlsx or .csv workbook into the registry.

Without --apply the import is a dry run: the counts are computed and
printed but nothing is saved.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("kind", service.CollectionAssets, "Target collection: assets or calibration")
	importCmd.Flags().String("policy", "", "merge or replace (default: merge for assets, replace for calibration)")
	importCmd.Flags().String("sheet", "", "Import only this sheet")
	importCmd.Flags().Bool("apply", false, "Save the result instead of a dry run")
}

func runImport(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")
	policy, _ := cmd.Flags().GetString("policy")
	sheet, _ := cmd.Flags().GetString("sheet")
	apply, _ := cmd.Flags().GetBool("apply")

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	wb, err := reconcile.ReadWorkbook(f, filepath.Base(path))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	svc := newService(rt)

	req := service.ImportRequest{
		ImportOptions: reconcile.ImportOptions{
			Policy:     reconcile.ParsePolicy(policy, ""),
			Sheet:      sheet,
			SourceFile: filepath.Base(path),
		},
		DryRun: !apply,
		Actor:  "memreg-cli",
	}

	var result reconcile.ImportResult
	switch kind {
	case service.CollectionAssets:
		result, err = svc.ImportAssets(ctx, wb, req)
	case service.CollectionCalibration:
		result, err = svc.ImportCalibration(ctx, wb, req)
	default:
		return fmt.Errorf("unknown kind %q (expected assets or calibration)", kind)
	}
	if err != nil {
		return err
	}

	out := struct {
		DryRun bool `json:"dryRun"`
		reconcile.ImportResult
	}{!apply, result}
	if done, err := printStructured(out); done {
		return err
	}
	printTable([]string{"Mode", "Imported", "Created", "Updated", "Skipped", "Sheets"}, [][]string{{
		string(result.Mode),
		fmt.Sprint(result.Imported),
		fmt.Sprint(result.Created),
		fmt.Sprint(result.Updated),
		fmt.Sprint(result.Skipped),
		strings.Join(result.Sheets, ", "),
	}})
	if !apply {
		fmt.Println("\ndry run: nothing saved (use --apply to save)")
	}
	return nil
}
