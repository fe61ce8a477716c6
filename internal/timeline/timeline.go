// Package timeline compiles the displayable activity view of a record from
// its raw action log.
//
// The log itself only grows: a backward revert does not delete the entries
// it invalidates, it appends a reversion marker. Compilation loads the full
// chronological history across every flow the record has ever used, finds
// the most recent reversion marker, and keeps only the marker and what
// follows it. Everything earlier remains in storage for forensic and metrics
// queries but never reappears in the primary activity stream.
package timeline

import (
	"context"

	"github.com/cityops/conductor/internal/storage"
	"github.com/cityops/conductor/internal/types"
)

// Compile returns the record's activity timeline, newest first.
func Compile(ctx context.Context, store storage.Storage, recordID string) ([]*types.ActionItem, error) {
	history, err := store.ListActions(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return compile(history), nil
}

// compile applies the reversion-boundary rule to a chronologically ascending
// history and reverses it to newest-first.
func compile(history []*types.ActionItem) []*types.ActionItem {
	start := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Kind == types.ActionReversion {
			start = i
			break
		}
	}
	live := history[start:]

	out := make([]*types.ActionItem, len(live))
	for i, a := range live {
		out[len(live)-1-i] = a
	}
	return out
}
