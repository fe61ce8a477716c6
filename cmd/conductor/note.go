package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes on a record's current stage",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <record-id> <text>",
	Short: "Add a note to the record's current stage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, _ := cmd.Flags().GetString("at")
		when, err := parseWhen(at)
		if err != nil {
			return err
		}
		action, err := newEngine().AddNote(cmd.Context(), args[0], actor, args[1], when)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(action)
			return nil
		}
		fmt.Printf("Added note %d\n", action.ID)
		return nil
	},
}

var noteRemoveCmd = &cobra.Command{
	Use:   "rm <note-id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid note id %q", args[0])
		}
		if err := newEngine().DeleteNote(cmd.Context(), id); err != nil {
			return err
		}
		if !jsonOutput {
			fmt.Printf("Deleted note %d\n", id)
		}
		return nil
	},
}

func init() {
	noteAddCmd.Flags().String("at", "", "wall-clock time of the note")
	noteCmd.AddCommand(noteAddCmd, noteRemoveCmd)
	rootCmd.AddCommand(noteCmd)
}
