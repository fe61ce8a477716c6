package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var advanceCmd = &cobra.Command{
	Use:   "advance <record-id>",
	Short: "Move a record one stage forward",
	Long: `Move a record to the next stage of its flow. Closing the final stage
reports completion; run 'conductor complete' afterwards to archive the record
and create its successor(s).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		at, _ := cmd.Flags().GetString("at")
		when, err := parseWhen(at)
		if err != nil {
			return err
		}

		rec, completed, err := newEngine().Advance(ctx, args[0], actor, when)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(map[string]interface{}{"record": rec, "completed": completed})
			return nil
		}
		if completed {
			fmt.Printf("Record %s completed its flow\n", rec.ID)
			return nil
		}
		if rec.CurrentStageID == nil {
			fmt.Printf("Record %s has already completed its flow\n", rec.ID)
			return nil
		}
		stage, err := store.GetStage(ctx, *rec.CurrentStageID)
		if err != nil {
			return err
		}
		fmt.Printf("Record %s is now in stage %s\n", rec.ID, stageColor.Sprint(stage.Name))
		return nil
	},
}

func init() {
	advanceCmd.Flags().String("at", "", "wall-clock time of the transition")
	rootCmd.AddCommand(advanceCmd)
}
