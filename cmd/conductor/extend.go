package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var extendCmd = &cobra.Command{
	Use:   "extend <record-id>",
	Short: "Create an extension clone of an archived record",
	Long: `Create a single new child clone of an archived record without re-running
completion. An extension entry is logged on the branch still working its
flow. With --discard-unedited, auto-created children that were never touched
are removed first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		discard, _ := cmd.Flags().GetBool("discard-unedited")

		child, err := newLifecycle().Extend(cmd.Context(), args[0], discard)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(child)
			return nil
		}
		fmt.Printf("Created extension %s of %s\n", child.ID, args[0])
		return nil
	},
}

func init() {
	extendCmd.Flags().Bool("discard-unedited", false, "remove untouched auto-created children first")
	rootCmd.AddCommand(extendCmd)
}
