package timeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/coredao-org/pageserver/pkg/layer"
	"github.com/coredao-org/pageserver/pkg/layermap"
	"github.com/coredao-org/pageserver/pkg/lsn"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	gcTimer        = metrics.NewRegisteredTimer("pageserver/timeline/gc", nil)
	gcRemovedMeter = metrics.NewRegisteredMeter("pageserver/timeline/gc_layers_removed", nil)
)

// GCIteration implements spec §4.5. horizon is an LSN distance behind
// last_record_lsn; pitrCutoff is the caller-supplied floor derived from
// the tenant's pitr_interval. This module keeps no wall-clock-to-LSN
// index (building one means decoding WAL timestamps, out of scope per
// this module's redo boundary), so translating pitr_interval into an
// LSN is the caller's responsibility; passing lsn.Invalid here means
// "no pitr floor".
//
// A historic layer is eligible for removal iff its end LSN is at or
// below the computed cutoff, no pinned child branch point falls in its
// range, and some other layer with overlapping keys ends at or after its
// end and starts at or before the cutoff.
func (tl *Timeline) GCIteration(ctx context.Context, horizon uint64, pitrCutoff lsn.Lsn) (int, error) {
	if tl.State() != StateActive {
		return 0, nil
	}
	tl.layerRemovalMu.Lock()
	defer tl.layerRemovalMu.Unlock()

	start := time.Now()
	defer func() { gcTimer.UpdateSince(start) }()

	cutoff := tl.LastRecordLsn().Sub(lsn.Lsn(horizon))
	if pitrCutoff != lsn.Invalid {
		cutoff = lsn.Min(cutoff, pitrCutoff)
	}
	if cutoff == lsn.Invalid {
		return 0, nil
	}

	var all []layermap.Entry
	tl.layers.IterHistoricLayers(func(e layermap.Entry) { all = append(all, e) })

	tl.ancestorMu.RLock()
	pinned := make([]lsn.Lsn, 0, len(tl.pinnedLsns))
	for _, at := range tl.pinnedLsns {
		pinned = append(pinned, at)
	}
	tl.ancestorMu.RUnlock()

	var eligible []layer.Descriptor
	for _, e := range all {
		d := e.Descriptor
		if d.LsnHi > cutoff {
			continue
		}
		pinnedHere := false
		for _, at := range pinned {
			if at >= d.LsnLo && at < d.LsnHi {
				pinnedHere = true
				break
			}
		}
		if pinnedHere {
			continue
		}
		covered := false
		for _, other := range all {
			if other.Descriptor.FileName() == d.FileName() {
				continue
			}
			o := other.Descriptor
			if !o.Keys.Overlaps(d.Keys) {
				continue
			}
			// o must reach at least to d's end and start at or before
			// the cutoff, so it holds data for the same keys somewhere
			// in the window [d.LsnHi, cutoff].
			if o.LsnHi >= d.LsnHi && o.LsnLo <= cutoff {
				covered = true
				break
			}
		}
		if !covered {
			continue
		}
		eligible = append(eligible, d)
	}
	if len(eligible) == 0 {
		tl.cursors.Lock()
		tl.latestGCCutoffLsn = cutoff
		tl.cursors.Unlock()
		return 0, tl.persistMetadata()
	}

	tl.cursors.Lock()
	tl.latestGCCutoffLsn = cutoff
	tl.cursors.Unlock()
	if err := tl.persistMetadata(); err != nil {
		tl.SetBroken(err)
		return 0, fmt.Errorf("timeline %s: gc: persist metadata: %w", tl.ID, err)
	}

	tl.layers.Swap(eligible, nil)

	for _, d := range eligible {
		p := tl.layerPath(d.FileName())
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn("Failed to unlink gc'd layer", "timeline", tl.ID, "path", p, "err", err)
		}
	}

	gcRemovedMeter.Mark(int64(len(eligible)))
	log.Info("Garbage collected layers", "timeline", tl.ID, "removed", len(eligible), "cutoff", cutoff)
	return len(eligible), nil
}
