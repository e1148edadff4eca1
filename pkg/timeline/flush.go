package timeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/coredao-org/pageserver/pkg/key"
	"github.com/coredao-org/pageserver/pkg/layer"
	"github.com/coredao-org/pageserver/pkg/layer/delta"
	"github.com/coredao-org/pageserver/pkg/layer/ephemeral"
	"github.com/coredao-org/pageserver/pkg/layermap"
	"github.com/coredao-org/pageserver/pkg/remote"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	flushTimer = metrics.NewRegisteredTimer("pageserver/timeline/flush", nil)
	flushMeter = metrics.NewRegisteredMeter("pageserver/timeline/flush_bytes", nil)
)

// FreezeAndFlush freezes the current open ephemeral layer (if any and
// non-empty), writes it to disk as a delta layer, installs it into the
// layer map, advances disk_consistent_lsn and rewrites the metadata
// file, per spec §4.1. It is a no-op if there is no open layer or it is
// empty.
func (tl *Timeline) FreezeAndFlush(ctx context.Context) error {
	tl.writeMu.Lock()
	defer tl.writeMu.Unlock()
	return tl.freezeAndFlushLocked(ctx)
}

// freezeAndFlushLocked implements FreezeAndFlush; callers must already
// hold tl.writeMu (finishWrite takes the lock and calls this inline when
// the open layer has reached checkpoint_distance).
func (tl *Timeline) freezeAndFlushLocked(ctx context.Context) error {
	if tl.open == nil || tl.open.Size() == 0 {
		return nil
	}
	start := time.Now()
	defer func() { flushTimer.UpdateSince(start) }()

	endLsn := tl.LastRecordLsn() + 1
	tl.open.Freeze(endLsn)

	snap, err := tl.open.TakeSnapshot()
	if err != nil {
		tl.SetBroken(err)
		return fmt.Errorf("timeline %s: snapshot ephemeral layer: %w", tl.ID, err)
	}

	keys := tl.fullKeyRange()
	finalDesc := layer.Descriptor{Kind: layer.KindDelta, Keys: keys, LsnLo: snap.StartLsn, LsnHi: snap.EndLsn}
	path := tl.layerPath(finalDesc.FileName())

	// delta.Write itself writes crash-safely (temp file + fsync +
	// rename + fsync parent dir), so path above is the file's true,
	// final, durable name: no separate rename step is needed here.
	desc, werr := delta.Write(path, snap, keys, tl.PgVersion)
	if werr != nil {
		tl.SetBroken(werr)
		return fmt.Errorf("timeline %s: write delta layer: %w", tl.ID, werr)
	}

	opened, oerr := delta.Open(path, tl.vfsTable)
	if oerr != nil {
		tl.SetBroken(oerr)
		return fmt.Errorf("timeline %s: reopen delta layer: %w", tl.ID, oerr)
	}
	tl.layers.Insert(desc, opened)

	tl.cursors.Lock()
	tl.diskConsistentLsn = desc.LsnHi - 1
	tl.cursors.Unlock()

	if err := tl.persistMetadata(); err != nil {
		tl.SetBroken(err)
		return fmt.Errorf("timeline %s: persist metadata after flush: %w", tl.ID, err)
	}

	flushMeter.Mark(desc.FileLen)
	log.Info("Flushed ephemeral layer to disk", "timeline", tl.ID, "layer", desc.FileName(), "disk_consistent_lsn", tl.DiskConsistentLsn())

	if tl.remoteQueue != nil {
		go tl.scheduleLayerUpload(path, desc)
	}

	tl.open = ephemeral.Create(desc.LsnHi)
	return nil
}

func (tl *Timeline) scheduleLayerUpload(path string, desc layer.Descriptor) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("Failed to read layer for upload", "timeline", tl.ID, "layer", desc.FileName(), "err", err)
		return
	}
	if err := tl.remoteQueue.UploadLayer(desc.FileName(), data); err != nil {
		log.Error("Failed to upload layer", "timeline", tl.ID, "layer", desc.FileName(), "err", err)
		return
	}
	idx := tl.buildIndexPart()
	if err := tl.remoteQueue.UploadIndex(idx); err != nil {
		log.Error("Failed to upload index part", "timeline", tl.ID, "err", err)
	}
}

func (tl *Timeline) buildIndexPart() remote.IndexPart {
	idx := remote.IndexPart{
		DiskConsistentLsn: tl.DiskConsistentLsn(),
		LatestGCCutoffLsn: tl.LatestGCCutoffLsn(),
	}
	tl.layers.IterHistoricLayers(func(e layermap.Entry) {
		idx.Layers = append(idx.Layers, remote.LayerMeta{Name: e.Descriptor.FileName(), FileLen: e.Descriptor.FileLen})
	})
	return idx
}

func (tl *Timeline) fullKeyRange() key.Range { return key.FullRange() }

func (tl *Timeline) layerPath(name string) string {
	return tl.Dir + "/" + name
}
