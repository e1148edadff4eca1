package tenant

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coredao-org/pageserver/internal/diskutil"
	"github.com/coredao-org/pageserver/pkg/ids"
	"github.com/coredao-org/pageserver/pkg/lsn"
	"github.com/coredao-org/pageserver/pkg/pageserrors"
	"github.com/coredao-org/pageserver/pkg/remote"
	"github.com/coredao-org/pageserver/pkg/timeline"
)

// CreateTimeline runs the crash-safe creation-guard protocol of spec
// §4.6 for a new root timeline (ancestorID == nil) or a new branch.
// plannedPitrCutoff may be lsn.Invalid if the caller has no PITR policy
// to enforce beyond the ancestor's own GC cutoff (pkg/timeline's GC
// iteration takes the same caller-supplied-cutoff approach, since no
// WAL-timestamp index exists in this module).
//
// Concurrent calls for the same newID are collapsed by a singleflight
// group keyed on the id string: only the call that actually initiates
// the creation guard runs the protocol; a call that instead rides
// along on an in-flight duplicate (Do's shared=true) is, by
// definition, the loser of the race and gets pageserrors.ErrAlreadyExists
// regardless of how the in-flight call turns out, matching "exactly one
// succeeds; the loser returns AlreadyExists". Duplicate calls that
// don't overlap in time are instead caught by the plain map membership
// check at the top of createTimelineGuarded.
func (t *Tenant) CreateTimeline(ctx context.Context, newID ids.TimelineID, ancestorID *ids.TimelineID, ancestorLsn, plannedPitrCutoff lsn.Lsn, pgVersion uint32, initdbLsn lsn.Lsn) (*timeline.Timeline, error) {
	if t.State() != StateActive {
		return nil, pageserrors.ErrNotActive
	}

	v, err, shared := t.creationSF.Do(newID.String(), func() (interface{}, error) {
		return t.createTimelineGuarded(ctx, newID, ancestorID, ancestorLsn, plannedPitrCutoff, pgVersion, initdbLsn)
	})
	createMeter.Mark(1)
	if shared {
		return nil, pageserrors.ErrAlreadyExists
	}
	if err != nil {
		return nil, err
	}
	return v.(*timeline.Timeline), nil
}

func (t *Tenant) createTimelineGuarded(ctx context.Context, newID ids.TimelineID, ancestorID *ids.TimelineID, ancestorLsn, plannedPitrCutoff lsn.Lsn, pgVersion uint32, initdbLsn lsn.Lsn) (tl *timeline.Timeline, err error) {
	t.mu.Lock()
	if _, exists := t.timelines[newID]; exists {
		t.mu.Unlock()
		return nil, pageserrors.ErrAlreadyExists
	}
	if _, exists := t.creating[newID]; exists {
		t.mu.Unlock()
		return nil, pageserrors.ErrAlreadyExists
	}
	// Step 1: reserve newID in the timelines map with a placeholder in
	// state Creating. The placeholder is modeled as membership in the
	// creating set rather than a half-built *timeline.Timeline: nothing
	// in this codebase needs to address a not-yet-materialized timeline
	// by handle, only needs to know the id is spoken for.
	t.creating[newID] = struct{}{}
	t.mu.Unlock()

	timelineDir := filepath.Join(t.timelinesDir(), newID.String())
	markerWritten := false
	dirCreated := false
	defer func() {
		if err == nil {
			return
		}
		if markerWritten {
			if rmErr := diskutil.RemoveUninitMarker(timelineDir); rmErr != nil {
				err = fmt.Errorf("%w (cleanup also failed: %s)", err, rmErr)
			}
		}
		if dirCreated {
			os.RemoveAll(timelineDir)
		}
		t.mu.Lock()
		delete(t.creating, newID)
		t.mu.Unlock()
	}()

	// Step 1(b): empty uninit-marker file next to the timeline
	// directory, fsynced parent.
	if err := diskutil.WriteUninitMarker(timelineDir); err != nil {
		return nil, fmt.Errorf("tenant: write uninit marker: %w", err)
	}
	markerWritten = true

	var ancTl *timeline.Timeline
	if ancestorID != nil {
		t.mu.RLock()
		ancTl = t.timelines[*ancestorID]
		t.mu.RUnlock()
		if ancTl == nil {
			return nil, fmt.Errorf("tenant: ancestor timeline %s not found", *ancestorID)
		}

		// Ancestor invariant check, held under gc_cs so the branch
		// point cannot be concurrently garbage-collected (spec §4.6,
		// §5): ancestor_lsn must be >= the ancestor's own
		// latest_gc_cutoff_lsn, and >= any planned PITR cutoff.
		t.gcCs.Lock()
		valid := ancestorLsn >= ancTl.LatestGCCutoffLsn()
		if plannedPitrCutoff != lsn.Invalid {
			valid = valid && ancestorLsn >= plannedPitrCutoff
		}
		t.gcCs.Unlock()
		if !valid {
			return nil, pageserrors.ErrInvalidBranchLsn
		}
	}

	// Step 2: materialize on-disk state. The initdb bootstrap subprocess
	// is out of scope (spec §1); a root timeline's initial LSN and page
	// state are supplied by the caller instead of being produced by a
	// child process this package would have to shell out to.
	if err := os.MkdirAll(timelineDir, 0755); err != nil {
		return nil, fmt.Errorf("tenant: create timeline dir: %w", err)
	}
	dirCreated = true

	var remoteQueue *remote.Queue
	if t.deps.RemoteFactory != nil {
		remoteQueue = t.deps.RemoteFactory(newID)
	}
	newTl := timeline.New(timeline.Config{
		ID:        newID,
		TenantID:  t.ID,
		Dir:       timelineDir,
		PgVersion: pgVersion,
		InitdbLsn: initdbLsn,
		TenantCfg: t.cfg,
		RedoMgr:   t.deps.RedoMgr,
		Remote:    remoteQueue,
		VFSTable:  t.deps.VFSTable,
		PageCache: t.deps.PageCache,
	})
	if ancTl != nil {
		newTl.SetAncestor(ancTl, ancestorLsn)
	}

	// Step 3: write the metadata file atomically.
	if err := newTl.PersistMetadata(); err != nil {
		return nil, fmt.Errorf("tenant: persist metadata: %w", err)
	}

	// Step 4: remove the uninit-marker and fsync the parent.
	if err := diskutil.RemoveUninitMarker(timelineDir); err != nil {
		return nil, fmt.Errorf("tenant: remove uninit marker: %w", err)
	}
	markerWritten = false

	// Step 5: replace the placeholder with the loaded timeline and
	// transition to Active.
	t.mu.Lock()
	delete(t.creating, newID)
	t.timelines[newID] = newTl
	t.mu.Unlock()
	newTl.SetState(timeline.StateActive)
	if ancTl != nil {
		ancTl.PinBranchPoint(newID, ancestorLsn)
	}
	t.touch(newID)

	return newTl, nil
}
