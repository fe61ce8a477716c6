package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cityops/conductor/internal/flowspec"
	"github.com/cityops/conductor/internal/types"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Manage flow templates",
}

var flowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed flows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		flows, err := store.ListFlows(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(flows)
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
		for _, flow := range flows {
			parts := make([]string, len(flow.StageOrder))
			for i, id := range flow.StageOrder {
				parts[i] = names[id]
			}
			fmt.Printf("%d  %s: %s\n", flow.ID, stageColor.Sprint(flow.Name), strings.Join(parts, " -> "))
		}
		return nil
	},
}

var flowsCreateCmd = &cobra.Command{
	Use:   "create <name> --stages <stage,...>",
	Short: "Create a flow from existing stages",
	Long: `Create a flow template from an ordered, comma-separated list of existing
stage names. Use 'flows import' to define stages and flows together from a
YAML document.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stageArg, _ := cmd.Flags().GetString("stages")
		if stageArg == "" {
			return fmt.Errorf("--stages is required")
		}

		stages, err := store.ListStages(ctx)
		if err != nil {
			return err
		}
		byName := make(map[string]int64, len(stages))
		for _, s := range stages {
			byName[s.Name] = s.ID
		}

		var order []int64
		for _, name := range strings.Split(stageArg, ",") {
			name = strings.TrimSpace(name)
			id, ok := byName[name]
			if !ok {
				return fmt.Errorf("unknown stage %q", name)
			}
			order = append(order, id)
		}

		flow := &types.Flow{Name: args[0], StageOrder: order}
		if err := store.CreateFlow(ctx, flow); err != nil {
			return err
		}
		if jsonOutput {
			printJSON(flow)
			return nil
		}
		fmt.Printf("Created flow %s (%d stages)\n", flow.Name, len(flow.StageOrder))
		return nil
	},
}

var flowsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Install stages and flows from a YAML document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		doc, err := flowspec.Parse(data)
		if err != nil {
			return err
		}
		flows, err := flowspec.Install(cmd.Context(), store, doc)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(flows)
			return nil
		}
		for _, flow := range flows {
			fmt.Printf("Installed flow %s (%d stages)\n", flow.Name, len(flow.StageOrder))
		}
		return nil
	},
}

func init() {
	flowsCreateCmd.Flags().String("stages", "", "ordered comma-separated stage names")
	flowsCmd.AddCommand(flowsListCmd, flowsCreateCmd, flowsImportCmd)
	rootCmd.AddCommand(flowsCmd)
}
