package timeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coredao-org/pageserver/internal/vfs"
	"github.com/coredao-org/pageserver/pkg/config"
	"github.com/coredao-org/pageserver/pkg/ids"
	"github.com/coredao-org/pageserver/pkg/key"
	"github.com/coredao-org/pageserver/pkg/lsn"
	"github.com/coredao-org/pageserver/pkg/pageserrors"
	"github.com/coredao-org/pageserver/pkg/value"
)

func newTestTimeline(t *testing.T, cfg config.TenantConfig) *Timeline {
	t.Helper()
	dir := t.TempDir()
	table := vfs.NewTable(16)
	t.Cleanup(table.Close)
	tl := New(Config{
		ID:        ids.NewTimelineID(),
		TenantID:  ids.NewTenantID(),
		Dir:       dir,
		PgVersion: 160000,
		InitdbLsn: 0x10,
		TenantCfg: cfg,
		VFSTable:  table,
	})
	require.NoError(t, tl.EnsureDirs())
	tl.SetState(StateActive)
	return tl
}

func TestPutFlushGetRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.CheckpointDistance = 1 << 30 // large enough that Put never auto-flushes
	tl := newTestTimeline(t, cfg)

	k := key.Key{0x01, 0x02}
	w := tl.Writer()
	require.NoError(t, w.Put(k, 0x20, value.Image([]byte("v1"))))
	require.NoError(t, w.FinishWrite(0x20))

	require.NoError(t, tl.FreezeAndFlush(context.Background()))
	require.Equal(t, 1, tl.layers.Len(), "expected 1 historic layer after flush")

	got, err := tl.Get(context.Background(), k, 0x20)
	require.NoError(t, err)
	require.Equal(t, "v1", string(got))
}

func TestGetUnknownKeyReturnsNotFound(t *testing.T) {
	tl := newTestTimeline(t, config.Default())
	_, err := tl.Get(context.Background(), key.Key{0xff}, 0x10)
	require.ErrorIs(t, err, pageserrors.ErrNotFound)
}

func TestPutAutoFlushesAtCheckpointDistance(t *testing.T) {
	cfg := config.Default()
	cfg.CheckpointDistance = 1 // flush after the very first put
	tl := newTestTimeline(t, cfg)

	k := key.Key{0x05}
	w := tl.Writer()
	require.NoError(t, w.Put(k, 0x20, value.Image([]byte("v1"))))
	require.NoError(t, w.FinishWrite(0x20))

	require.Equal(t, 1, tl.layers.Len(), "expected auto-flush to have produced 1 historic layer")
	require.NotNil(t, tl.open)
	require.Zero(t, tl.open.Size(), "expected a fresh empty open layer after auto-flush")
}

func TestCompactionMergesOverlappingDeltas(t *testing.T) {
	cfg := config.Default()
	cfg.CheckpointDistance = 1 // one entry per flush
	cfg.CompactionThreshold = 2
	tl := newTestTimeline(t, cfg)

	k := key.Key{0x07}
	w := tl.Writer()
	lsns := []lsn.Lsn{0x20, 0x30, 0x40, 0x50}
	values := []string{"v0", "v1", "v2", "v3"}
	for i, l := range lsns {
		require.NoError(t, w.Put(k, l, value.Image([]byte(values[i]))))
		require.NoError(t, w.FinishWrite(l))
	}
	require.GreaterOrEqual(t, tl.layers.Len(), 3, "expected several historic delta layers before compaction")

	require.NoError(t, tl.CompactionIteration(context.Background()))

	got, err := tl.Get(context.Background(), k, lsns[len(lsns)-1])
	require.NoError(t, err)
	require.Equal(t, values[len(values)-1], string(got))

	// An older LSN must still resolve correctly: compaction must not
	// have discarded the history it folded together.
	got, err = tl.Get(context.Background(), k, lsns[0])
	require.NoError(t, err)
	require.Equal(t, values[0], string(got))
}

func TestGCNeverRemovesTheOnlyLayerCoveringTheTip(t *testing.T) {
	cfg := config.Default()
	cfg.CheckpointDistance = 1
	cfg.CompactionThreshold = 2 // the three flushed deltas below exceed it
	tl := newTestTimeline(t, cfg)

	k := key.Key{0x09}
	w := tl.Writer()
	for _, l := range []lsn.Lsn{0x20, 0x30, 0x40} {
		require.NoError(t, w.Put(k, l, value.Image([]byte("v"))))
		require.NoError(t, w.FinishWrite(l))
	}
	// Fold everything into one image + one delta so GC has a single,
	// unambiguous historic layer set to reason about.
	require.NoError(t, tl.CompactionIteration(context.Background()))

	// The image layer [0x40, 0x41) and the merged delta [0x10, 0x41)
	// both end at 0x41, above the 0x40 cutoff, so neither is eligible.
	removed, err := tl.GCIteration(context.Background(), 0, lsn.Lsn(0x40))
	require.NoError(t, err)
	require.Zero(t, removed)

	// A read at the tip must still succeed regardless of what GC chose
	// to remove.
	got, err := tl.Get(context.Background(), k, lsn.Lsn(0x40))
	require.NoError(t, err)
	require.Equal(t, "v", string(got))
}
