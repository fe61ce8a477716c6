package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/cityops/conductor/internal/types"
)

var (
	stageColor = color.New(color.FgCyan, color.Bold)
	actorColor = color.New(color.FgYellow)
	kindColors = map[types.ActionKind]*color.Color{
		types.ActionEntered:    color.New(color.FgGreen),
		types.ActionExited:     color.New(color.FgBlue),
		types.ActionReversion:  color.New(color.FgRed, color.Bold),
		types.ActionRestarted:  color.New(color.FgRed),
		types.ActionFlowSwitch: color.New(color.FgMagenta, color.Bold),
		types.ActionExtension:  color.New(color.FgMagenta),
	}
	defaultKindColor = color.New(color.FgWhite)
)

// newIndentedEncoder returns a JSON encoder configured for human-readable
// output.
func newIndentedEncoder(out io.Writer) *json.Encoder {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// kindColor returns the display color for an action kind.
func kindColor(kind types.ActionKind) *color.Color {
	if c, ok := kindColors[kind]; ok {
		return c
	}
	return defaultKindColor
}

// formatLocal renders a stored UTC time in the reference timezone.
func formatLocal(t time.Time) string {
	return t.In(refZone).Format("2006-01-02 15:04")
}

// formatLocalPtr renders a nullable time, or a dash.
func formatLocalPtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatLocal(*t)
}

// printRecord writes a one-line human summary of a record.
func printRecord(r *types.Record, stageName string) {
	flags := ""
	if r.IsArchived {
		flags = " [archived]"
	} else if !r.IsVisible {
		flags = " [hidden]"
	}
	stage := "-"
	if stageName != "" {
		stage = stageName
	}
	fmt.Printf("%s  %s  %s  %s%s\n",
		r.ID, stageColor.Sprint(stage), actorColor.Sprint(r.AssignedTo), r.Description, flags)
}
