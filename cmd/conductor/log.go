package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cityops/conductor/internal/timeline"
	"github.com/cityops/conductor/internal/types"
)

var logCmd = &cobra.Command{
	Use:   "log <record-id>",
	Short: "Show a record's activity timeline",
	Long: `Show a record's activity timeline, newest first. The timeline is compiled
from the full action history: everything before the most recent reversion is
filtered out of the display (it stays in storage). Use --full to see the raw
uncompiled history.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		full, _ := cmd.Flags().GetBool("full")

		var (
			items []*types.ActionItem
			err   error
		)
		if full {
			items, err = store.ListActions(ctx, args[0])
		} else {
			items, err = timeline.Compile(ctx, store, args[0])
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(items)
			return nil
		}
		for _, item := range items {
			fmt.Printf("%s  %-11s %s%s\n",
				formatLocal(item.TakenAt),
				kindColor(item.Kind).Sprint(item.Kind),
				actorColor.Sprint(item.Actor),
				describeAction(item))
		}
		return nil
	},
}

// describeAction renders the human-readable tail of a timeline line from the
// action's detail payload.
func describeAction(item *types.ActionItem) string {
	d := item.Detail
	switch item.Kind {
	case types.ActionEntered, types.ActionExited, types.ActionRestarted:
		if name := d.StageName(); name != "" {
			return fmt.Sprintf("  %s", name)
		}
	case types.ActionReversion:
		from, _ := d["from_stage"].(string)
		return fmt.Sprintf("  %s <- %s", d.StageName(), from)
	case types.ActionFlowSwitch:
		oldFlow, _ := d["old_flow"].(string)
		newFlow, _ := d["new_flow"].(string)
		return fmt.Sprintf("  %s -> %s", oldFlow, newFlow)
	case types.ActionNote:
		return fmt.Sprintf("  %q", d.Note())
	case types.ActionUpdate:
		subject, _ := d["subject"].(string)
		return fmt.Sprintf("  %s", subject)
	case types.ActionPost:
		title, _ := d["title"].(string)
		return fmt.Sprintf("  %s", title)
	case types.ActionExtension:
		parent, _ := d["parent_id"].(string)
		return fmt.Sprintf("  extends %s", parent)
	}
	return ""
}

func init() {
	logCmd.Flags().Bool("full", false, "show the raw history including reverted entries")
	rootCmd.AddCommand(logCmd)
}
