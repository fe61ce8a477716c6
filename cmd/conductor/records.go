package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/types"
)

var createCmd = &cobra.Command{
	Use:   "create <description>",
	Short: "Create a new record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, _ := cmd.Flags().GetString("spec")
		metrics, _ := cmd.Flags().GetBool("metrics")

		rec := &types.Record{
			Description: args[0],
			SpecNumber:  spec,
			HasMetrics:  metrics,
			IsVisible:   true,
		}
		if err := store.CreateRecord(cmd.Context(), rec); err != nil {
			return err
		}
		if jsonOutput {
			printJSON(rec)
			return nil
		}
		fmt.Printf("Created record %s\n", rec.ID)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		all, _ := cmd.Flags().GetBool("all")
		archived, _ := cmd.Flags().GetBool("archived")
		assignee, _ := cmd.Flags().GetString("assignee")

		filter := storage.RecordFilter{AssignedTo: assignee}
		if !all {
			visible := true
			filter.Visible = &visible
			isArchived := archived
			filter.Archived = &isArchived
		}

		records, err := store.ListRecords(ctx, filter)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(records)
			return nil
		}
		stages, err := store.ListStages(ctx)
		if err != nil {
			return err
		}
		names := make(map[int64]string, len(stages))
		for _, s := range stages {
			names[s.ID] = s.Name
		}
		for _, rec := range records {
			stage := ""
			if rec.CurrentStageID != nil {
				stage = names[*rec.CurrentStageID]
			}
			printRecord(rec, stage)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show a record and its stage progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rec, err := store.GetRecord(ctx, args[0])
		if err != nil {
			return err
		}

		type stageRow struct {
			Stage   string     `json:"stage"`
			Entered *string    `json:"entered"`
			Exited  *string    `json:"exited"`
			Current bool       `json:"current"`
		}
		var rows []stageRow
		var flowName string

		if rec.FlowID != nil {
			flow, err := store.GetFlow(ctx, *rec.FlowID)
			if err != nil {
				return err
			}
			flowName = flow.Name
			instances, err := store.ListStageInstances(ctx, rec.ID, flow.ID)
			if err != nil {
				return err
			}
			for _, si := range instances {
				stage, err := store.GetStage(ctx, si.StageID)
				if err != nil {
					return err
				}
				row := stageRow{Stage: stage.Name}
				if si.Entered != nil {
					v := formatLocal(*si.Entered)
					row.Entered = &v
				}
				if si.Exited != nil {
					v := formatLocal(*si.Exited)
					row.Exited = &v
				}
				row.Current = rec.CurrentStageID != nil && *rec.CurrentStageID == si.StageID
				rows = append(rows, row)
			}
		}

		if jsonOutput {
			printJSON(map[string]interface{}{
				"record": rec,
				"flow":   flowName,
				"stages": rows,
			})
			return nil
		}

		fmt.Printf("%s\n", rec.Description)
		fmt.Printf("  id:       %s\n", rec.ID)
		if rec.SpecNumber != "" {
			fmt.Printf("  spec:     %s\n", rec.SpecNumber)
		}
		if rec.AssignedTo != "" {
			fmt.Printf("  assignee: %s\n", actorColor.Sprint(rec.AssignedTo))
		}
		if flowName != "" {
			fmt.Printf("  flow:     %s\n", flowName)
		}
		if rec.ParentID != nil {
			fmt.Printf("  parent:   %s\n", *rec.ParentID)
		}
		if rec.IsArchived {
			fmt.Printf("  status:   archived\n")
		}
		for _, row := range rows {
			marker := "  "
			if row.Current {
				marker = "> "
			}
			entered, exited := "-", "-"
			if row.Entered != nil {
				entered = *row.Entered
			}
			if row.Exited != nil {
				exited = *row.Exited
			}
			fmt.Printf("  %s%-20s %-17s %s\n", marker, stageColor.Sprint(row.Stage), entered, exited)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().String("spec", "", "specification number")
	createCmd.Flags().Bool("metrics", false, "include this record in metrics export")
	listCmd.Flags().Bool("all", false, "include hidden and archived records")
	listCmd.Flags().Bool("archived", false, "list archived records instead of active ones")
	listCmd.Flags().String("assignee", "", "filter by assignee")
	rootCmd.AddCommand(createCmd, listCmd, showCmd)
}
