package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kitoverdie1/uph-mem-system/pkg/sequence"
)

var nextCodeCmd = &cobra.Command{
	Use:   "next-code [EQ|GN]",
	Short: "Print the next free asset code of a family",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw string
		if len(args) == 1 {
			raw = args[0]
		}
		kind, err := sequence.ParseKind(raw)
		if err != nil {
			return err
		}

		rt, err := openRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		code, err := newService(rt).NextCode(cmd.Context(), kind)
		if err != nil {
			return err
		}
		if done, err := printStructured(map[string]string{"kind": string(kind), "next": code}); done {
			return err
		}
		fmt.Println(code)
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print asset, repair and calibration counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := openRuntime(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		sum, err := newService(rt).Summary(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		if done, err := printStructured(sum); done {
			return err
		}

		rows := [][]string{
			{"assets", fmt.Sprint(sum.Assets.Total)},
			{"repairs pending", fmt.Sprint(sum.Maintenance.Pending)},
			{"repairs in progress", fmt.Sprint(sum.Maintenance.InProgress)},
			{"repairs done", fmt.Sprint(sum.Maintenance.Done)},
			{"calibration items", fmt.Sprint(sum.Calibration.Total)},
			{"calibration overdue", fmt.Sprint(sum.Calibration.Overdue)},
			{"calibration due soon", fmt.Sprint(sum.Calibration.DueSoon)},
			{"calibration without due date", fmt.Sprint(sum.Calibration.NoDueDate)},
		}
		rows = append(rows, countRows("location: ", sum.Assets.ByLocation)...)
		printTable([]string{"Counter", "Value"}, rows)
		return nil
	},
}
