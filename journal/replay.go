package journal

import (
	"context"
	"fmt"

	"github.com/deepscout/runstream/state"
)

// replayBatch is how many entries Replay loads per query.
const replayBatch = 500

// Replay re-folds a task's journaled events, in seq order, into the given
// reducer. Because the projection is a pure left-fold, replaying yields the
// same state the live stream produced.
func Replay(ctx context.Context, store Store, taskID string, r *state.Reducer) error {
	var afterSeq int64
	for {
		entries, err := store.List(ctx, taskID, afterSeq, replayBatch)
		if err != nil {
			return fmt.Errorf("journal: list events: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.Apply(entry.Event)
			afterSeq = entry.Seq
		}
		if len(entries) < replayBatch {
			return nil
		}
	}
}
