package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var assignCmd = &cobra.Command{
	Use:   "assign <record-id> <flow-name>",
	Short: "Assign a record to a flow and open its first stage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		assignee, _ := cmd.Flags().GetString("to")
		if assignee == "" {
			assignee = actor
		}
		at, _ := cmd.Flags().GetString("at")
		when, err := parseWhen(at)
		if err != nil {
			return err
		}

		flow, err := store.GetFlowByName(ctx, args[1])
		if err != nil {
			return err
		}
		rec, err := newEngine().Assign(ctx, args[0], flow.ID, assignee, when)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(rec)
			return nil
		}
		fmt.Printf("Assigned %s to flow %s (assignee %s)\n", rec.ID, flow.Name, rec.AssignedTo)
		return nil
	},
}

func init() {
	assignCmd.Flags().String("to", "", "assignee (defaults to the acting user)")
	assignCmd.Flags().String("at", "", "wall-clock time of the assignment (e.g. \"2026-04-01 09:30\")")
	rootCmd.AddCommand(assignCmd)
}
