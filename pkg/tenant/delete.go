package tenant

import (
	"fmt"
	"os"

	"github.com/coredao-org/pageserver/pkg/ids"
	"github.com/coredao-org/pageserver/pkg/pageserrors"
	"github.com/coredao-org/pageserver/pkg/remote"
	"github.com/coredao-org/pageserver/pkg/timeline"

	"github.com/ethereum/go-ethereum/log"
)

// DeleteTimeline implements spec §4.6's delete_timeline: forbidden if
// any child branches from id, otherwise stops the timeline's writer,
// cancels its routine uploads, persists a deleted marker in the remote
// index, removes its local files, then drops it from the registry.
func (t *Tenant) DeleteTimeline(id ids.TimelineID) error {
	t.mu.Lock()
	tl, ok := t.timelines[id]
	if !ok {
		t.mu.Unlock()
		return pageserrors.ErrNotFound
	}
	for otherID, other := range t.timelines {
		if otherID == id {
			continue
		}
		if anc, has := other.GetAncestor(); has && anc.Timeline.ID == id {
			t.mu.Unlock()
			return pageserrors.ErrHasChildren
		}
	}
	t.mu.Unlock()

	// Stopping blocks put/finish_write and makes GC/compaction/flush
	// no-ops for this timeline (they all check State() == Active), which
	// is this package's version of "stops its writer" and "cancels its
	// uploads": no further routine upload gets scheduled once this is
	// set.
	tl.SetState(timeline.StateStopping)

	if q := tl.RemoteQueue(); q != nil {
		deletedIdx := remote.IndexPart{
			Deleted:           true,
			DiskConsistentLsn: tl.DiskConsistentLsn(),
			LatestGCCutoffLsn: tl.LatestGCCutoffLsn(),
		}
		if err := q.UploadIndex(deletedIdx); err != nil {
			log.Error("Failed to persist deleted marker in remote index", "timeline", id, "err", err)
		}
		q.Close()
	}

	if anc, has := tl.GetAncestor(); has {
		anc.Timeline.UnpinBranchPoint(id)
	}

	if err := os.RemoveAll(tl.Dir); err != nil {
		return fmt.Errorf("tenant: remove timeline dir: %w", err)
	}

	t.mu.Lock()
	delete(t.timelines, id)
	t.mu.Unlock()
	deleteMeter.Mark(1)
	return nil
}
