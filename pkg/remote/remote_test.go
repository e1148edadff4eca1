package remote

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coredao-org/pageserver/pkg/pageserrors"
)

type memStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemStorage() *memStorage { return &memStorage{blobs: make(map[string][]byte)} }

func (s *memStorage) Put(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[name] = cp
	return nil
}

func (s *memStorage) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.blobs[name]
	if !ok {
		return nil, fmt.Errorf("not found: %s", name)
	}
	return d, nil
}

func (s *memStorage) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.blobs {
		out = append(out, k)
	}
	return out, nil
}

func (s *memStorage) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, name)
	return nil
}

func TestQueueUploadLayerThenIndex(t *testing.T) {
	storage := newMemStorage()
	q := NewQueue(storage, "tenant1/tl1", 4)
	defer q.Close()

	require.NoError(t, q.UploadLayer("layer-a", []byte("body")))
	require.NoError(t, q.UploadIndex(IndexPart{Layers: []LayerMeta{{Name: "layer-a", FileLen: 4}}, DiskConsistentLsn: 0x10}))

	data, err := storage.Get(context.Background(), "tenant1/tl1/index_part.json")
	require.NoError(t, err)
	idx, err := DecodeIndexPart(data)
	require.NoError(t, err)
	require.EqualValues(t, 0x10, idx.DiskConsistentLsn)
	require.Len(t, idx.Layers, 1)
}

func TestReconcileRemoteStrictlyAhead(t *testing.T) {
	local := LocalState{LayerNames: []string{"a"}, DiskConsistentLsn: 0x10, LatestGCCutoffLsn: 0x5}
	remote := IndexPart{Layers: []LayerMeta{{Name: "a"}, {Name: "b"}}, DiskConsistentLsn: 0x20, LatestGCCutoffLsn: 0x8}

	plan, err := Reconcile(local, remote)
	require.NoError(t, err)
	require.True(t, plan.UseRemoteMetadata, "expected remote metadata to win when strictly ahead in both")
	require.Len(t, plan.RemoteOnly, 1)
	require.Equal(t, "b", plan.RemoteOnly[0].Name)
}

func TestReconcileFailsOnMixedCursors(t *testing.T) {
	local := LocalState{DiskConsistentLsn: 0x10, LatestGCCutoffLsn: 0x8}
	remote := IndexPart{DiskConsistentLsn: 0x20, LatestGCCutoffLsn: 0x8} // ahead on lsn only, equal on gc cutoff

	_, err := Reconcile(local, remote)
	require.ErrorIs(t, err, pageserrors.ErrInconsistentMetadata)
}

func TestReconcileKeepsLocalWhenRemoteNotAhead(t *testing.T) {
	local := LocalState{DiskConsistentLsn: 0x20, LatestGCCutoffLsn: 0x8}
	remote := IndexPart{DiskConsistentLsn: 0x10, LatestGCCutoffLsn: 0x8}

	plan, err := Reconcile(local, remote)
	require.NoError(t, err)
	require.False(t, plan.UseRemoteMetadata, "expected local metadata to win when remote is not ahead")
}

func TestReconcileLocalOnly(t *testing.T) {
	local := LocalState{LayerNames: []string{"a", "b"}}
	remote := IndexPart{Layers: []LayerMeta{{Name: "a"}}}
	plan, err := Reconcile(local, remote)
	require.NoError(t, err)
	require.Len(t, plan.LocalOnly, 1)
	require.Equal(t, "b", plan.LocalOnly[0])
}
