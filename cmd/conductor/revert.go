package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cityops/conductor/internal/types"
)

var revertCmd = &cobra.Command{
	Use:   "revert <record-id> <stage-name>",
	Short: "Send a record back to an earlier stage",
	Long: `Send a record back to an earlier stage of its flow. The stage being left
and every stage in between return to not-started, and a reversion marker is
written to the action log. Forward jumps are rejected.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		at, _ := cmd.Flags().GetString("at")
		when, err := parseWhen(at)
		if err != nil {
			return err
		}

		stage, err := findFlowStage(cmd, args[0], args[1])
		if err != nil {
			return err
		}
		rec, err := newEngine().TransitionTo(ctx, args[0], stage.ID, actor, when)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(rec)
			return nil
		}
		fmt.Printf("Record %s reverted to stage %s\n", rec.ID, stageColor.Sprint(stage.Name))
		return nil
	},
}

// findFlowStage resolves a stage name within the record's active flow.
func findFlowStage(cmd *cobra.Command, recordID, stageName string) (*types.Stage, error) {
	ctx := cmd.Context()
	rec, err := store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.FlowID == nil {
		return nil, fmt.Errorf("record %s has no flow assigned", recordID)
	}
	flow, err := store.GetFlow(ctx, *rec.FlowID)
	if err != nil {
		return nil, err
	}
	for _, stageID := range flow.StageOrder {
		stage, err := store.GetStage(ctx, stageID)
		if err != nil {
			return nil, err
		}
		if stage.Name == stageName {
			return stage, nil
		}
	}
	return nil, fmt.Errorf("flow %s has no stage named %q", flow.Name, stageName)
}

func init() {
	revertCmd.Flags().String("at", "", "wall-clock time of the transition")
	rootCmd.AddCommand(revertCmd)
}
