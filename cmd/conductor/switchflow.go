package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var switchCmd = &cobra.Command{
	Use:   "switch <record-id> <flow-name>",
	Short: "Move a record onto a different flow",
	Long: `Move a record onto a different flow template. Progress on the old flow is
reset (its action history is kept), and the record starts over at the first
stage of the new flow.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		at, _ := cmd.Flags().GetString("at")
		when, err := parseWhen(at)
		if err != nil {
			return err
		}

		flow, err := store.GetFlowByName(ctx, args[1])
		if err != nil {
			return err
		}
		rec, err := newEngine().SwitchFlow(ctx, args[0], flow.ID, actor, when)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(rec)
			return nil
		}
		fmt.Printf("Record %s switched to flow %s\n", rec.ID, flow.Name)
		return nil
	},
}

func init() {
	switchCmd.Flags().String("at", "", "wall-clock time of the switch")
	rootCmd.AddCommand(switchCmd)
}
