package remote

import (
	"fmt"

	"github.com/coredao-org/pageserver/pkg/lsn"
	"github.com/coredao-org/pageserver/pkg/pageserrors"

	"github.com/ethereum/go-ethereum/log"
)

// Plan is the result of reconciling a local view against a fetched
// remote index part on load/attach (spec §4.7).
type Plan struct {
	// RemoteOnly are layers present in the remote index but absent
	// locally; the caller marks each "remote" in its layer map so it
	// is downloaded on first access rather than up front.
	RemoteOnly []LayerMeta
	// LocalOnly are layers present locally but absent from the remote
	// index; the caller should schedule an UploadLayer for each,
	// followed by one UploadIndex once all have completed.
	LocalOnly []string
	// UseRemoteMetadata reports whether the remote's disk_consistent_lsn
	// and latest_gc_cutoff_lsn should replace the local metadata
	// record, per the "remote strictly ahead in both" rule.
	UseRemoteMetadata bool
}

// LocalState is the subset of local timeline state reconciliation
// needs: the layer names present on disk and the locally persisted
// metadata cursors.
type LocalState struct {
	LayerNames        []string
	DiskConsistentLsn lsn.Lsn
	LatestGCCutoffLsn lsn.Lsn
}

// Reconcile compares local against a fetched remote index part and
// returns the plan the caller must execute.
//
// The merge rule, per spec §4.7: "prefer local metadata over remote
// unless the remote is strictly ahead in both disk_consistent_lsn and
// latest_gc_cutoff_lsn" — "any other divergence is a fatal
// inconsistency" (the metadata merge rule "bails out loudly on
// inconsistent divergence rather than guessing", per spec §9). So only
// two cursor relations are accepted: remote strictly ahead on both
// (UseRemoteMetadata), or remote ahead on neither (keep local). A
// remote strictly ahead on exactly one axis returns
// pageserrors.ErrInconsistentMetadata.
func Reconcile(local LocalState, remoteIdx IndexPart) (Plan, error) {
	remoteByName := make(map[string]LayerMeta, len(remoteIdx.Layers))
	for _, l := range remoteIdx.Layers {
		remoteByName[l.Name] = l
	}
	localSet := make(map[string]struct{}, len(local.LayerNames))
	for _, n := range local.LayerNames {
		localSet[n] = struct{}{}
	}

	var plan Plan
	for name, l := range remoteByName {
		if _, ok := localSet[name]; !ok {
			plan.RemoteOnly = append(plan.RemoteOnly, l)
		}
	}
	for _, name := range local.LayerNames {
		if _, ok := remoteByName[name]; !ok {
			plan.LocalOnly = append(plan.LocalOnly, name)
		}
	}

	remoteAheadLsn := remoteIdx.DiskConsistentLsn > local.DiskConsistentLsn
	remoteAheadGC := remoteIdx.LatestGCCutoffLsn > local.LatestGCCutoffLsn

	if remoteAheadLsn != remoteAheadGC {
		err := fmt.Errorf("%w: disk_consistent_lsn local=%s remote=%s, latest_gc_cutoff_lsn local=%s remote=%s",
			pageserrors.ErrInconsistentMetadata,
			local.DiskConsistentLsn, remoteIdx.DiskConsistentLsn,
			local.LatestGCCutoffLsn, remoteIdx.LatestGCCutoffLsn)
		log.Error("Remote index cursors diverge from local on only one axis", "err", err)
		return Plan{}, err
	}
	plan.UseRemoteMetadata = remoteAheadLsn && remoteAheadGC

	log.Info("Reconciled remote index", "remote_only", len(plan.RemoteOnly), "local_only", len(plan.LocalOnly), "use_remote_metadata", plan.UseRemoteMetadata)
	return plan, nil
}
