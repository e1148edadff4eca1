package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/coredao-org/pageserver/pkg/key"
	"github.com/coredao-org/pageserver/pkg/lsn"
	"github.com/coredao-org/pageserver/pkg/pageserrors"
	"github.com/coredao-org/pageserver/pkg/value"
)

// Get reconstructs the page for k as of at, per spec §4.1/§7: walk the
// open ephemeral layer, then historic layers newest to oldest, then
// (if the chain is not terminated by a base image) the ancestor
// timeline as of the branch LSN, accumulating WAL records until a base
// image is found or there is nowhere left to look. The accumulated
// state is then handed to the redo manager to produce the final bytes.
func (tl *Timeline) Get(ctx context.Context, k key.Key, at lsn.Lsn) ([]byte, error) {
	start := time.Now()
	defer func() { getTimer.UpdateSince(start) }()

	if s := tl.State(); s == StateBroken {
		return nil, fmt.Errorf("timeline %s: read rejected, timeline is %s", tl.ID, s)
	}

	var state value.ReconstructState
	if err := tl.collect(k, at, &state); err != nil {
		return nil, err
	}

	if !state.Terminated() {
		if len(state.RecordsNewest) == 0 {
			getNotFound.Mark(1)
			return nil, pageserrors.ErrNotFound
		}
		// Records exist but no layer ever produced a base image: a
		// valid WAL stream always bottoms out in one, so this is an
		// invariant violation, not a missing key.
		getMissingMeter.Mark(1)
		err := fmt.Errorf("%w: key %s has no base image in reachable layer chain", pageserrors.ErrMissingLayer, k)
		tl.SetBroken(err)
		return nil, err
	}

	data, err := tl.redoMgr.Apply(ctx, k, state)
	if err != nil {
		return nil, &pageserrors.RedoError{Err: err}
	}
	return data, nil
}

// collect walks this timeline's layers (and, if needed, its ancestor's)
// accumulating into state. It returns early once state is terminated.
func (tl *Timeline) collect(k key.Key, at lsn.Lsn, state *value.ReconstructState) error {
	tl.writeMu.Lock()
	open := tl.open
	tl.writeMu.Unlock()

	if open != nil {
		if _, err := open.Get(k, at, state); err != nil {
			return fmt.Errorf("timeline %s: read open layer: %w", tl.ID, err)
		}
		if state.Terminated() {
			return nil
		}
	}

	searchAt := at
	for {
		entry, ok := tl.layers.Search(k, searchAt)
		if !ok {
			break
		}
		if _, err := entry.Layer.Get(k, at, state); err != nil {
			return fmt.Errorf("timeline %s: read layer %s: %w", tl.ID, entry.Descriptor.FileName(), err)
		}
		if state.Terminated() {
			return nil
		}
		if entry.Descriptor.LsnLo == 0 {
			break
		}
		searchAt = entry.Descriptor.LsnLo - 1
	}

	if anc, ok := tl.GetAncestor(); ok {
		return anc.Timeline.collect(k, anc.Lsn, state)
	}
	return nil
}
