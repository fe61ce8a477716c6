package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cityops/conductor/internal/lifecycle"
)

// completionDraft is the YAML shape accepted by --groups.
type completionDraft struct {
	Groups []struct {
		Description    string `yaml:"description"`
		SpecNumber     string `yaml:"spec_number"`
		AssignedTo     string `yaml:"assigned_to"`
		HasMetrics     bool   `yaml:"has_metrics"`
		ExpirationDate string `yaml:"expiration_date"`
	} `yaml:"groups"`
}

var completeCmd = &cobra.Command{
	Use:   "complete <record-id>",
	Short: "Archive a finished record and create its successors",
	Long: `Archive a record whose flow has finished and fan it out into successor
records. With no --groups file a single successor inheriting the parent's
fields is created. A groups file awards to multiple successors:

  groups:
    - description: "janitorial services - north district"
      spec_number: "22-493A"
    - description: "janitorial services - south district"
      spec_number: "22-493B"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupsFile, _ := cmd.Flags().GetString("groups")

		groups := []lifecycle.Group{{}}
		if groupsFile != "" {
			data, err := os.ReadFile(groupsFile)
			if err != nil {
				return err
			}
			var draft completionDraft
			if err := yaml.Unmarshal(data, &draft); err != nil {
				return fmt.Errorf("parsing groups file: %w", err)
			}
			if len(draft.Groups) == 0 {
				return fmt.Errorf("groups file declares no groups")
			}
			groups = groups[:0]
			for _, g := range draft.Groups {
				group := lifecycle.Group{
					Description: g.Description,
					SpecNumber:  g.SpecNumber,
					AssignedTo:  g.AssignedTo,
					HasMetrics:  g.HasMetrics,
				}
				if g.ExpirationDate != "" {
					exp, err := time.ParseInLocation("2006-01-02", g.ExpirationDate, refZone)
					if err != nil {
						return fmt.Errorf("parsing expiration date %q: %w", g.ExpirationDate, err)
					}
					utc := exp.UTC()
					group.ExpirationDate = &utc
				}
				groups = append(groups, group)
			}
		}

		children, err := newLifecycle().CompleteAndBranch(cmd.Context(), args[0], groups)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(children)
			return nil
		}
		fmt.Printf("Archived %s\n", args[0])
		for _, child := range children {
			fmt.Printf("  created successor %s: %s\n", child.ID, child.Description)
		}
		return nil
	},
}

func init() {
	completeCmd.Flags().String("groups", "", "YAML file describing successor groups")
	rootCmd.AddCommand(completeCmd)
}
