// Package notify delivers stage-entry notifications. Dispatch is
// best-effort: it runs after the owning transaction commits, and failures
// are reported to stderr, never to the transition that triggered them.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cityops/conductor/internal/types"
)

// Dispatcher receives stage-entry events for stages flagged
// notifies_on_entry.
type Dispatcher interface {
	StageEntered(ctx context.Context, record *types.Record, stage *types.Stage)
}

// Nop discards all notifications.
type Nop struct{}

// StageEntered implements Dispatcher.
func (Nop) StageEntered(context.Context, *types.Record, *types.Stage) {}

// Writer logs notifications to an io.Writer. It stands in for a real mail or
// chat integration; the message body comes from the stage's default message.
type Writer struct {
	Out io.Writer
}

// NewWriter returns a Writer dispatcher; a nil out defaults to stderr.
func NewWriter(out io.Writer) *Writer {
	if out == nil {
		out = os.Stderr
	}
	return &Writer{Out: out}
}

// StageEntered implements Dispatcher.
func (w *Writer) StageEntered(_ context.Context, record *types.Record, stage *types.Stage) {
	msg := stage.DefaultMessage
	if msg == "" {
		msg = fmt.Sprintf("%s entered stage %s", record.Description, stage.Name)
	}
	if _, err := fmt.Fprintf(w.Out, "notify: %s (record %s, assigned to %s)\n", msg, record.ID, record.AssignedTo); err != nil {
		fmt.Fprintf(os.Stderr, "notify: dispatch failed: %v\n", err)
	}
}
