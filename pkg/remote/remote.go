// Package remote implements the upload queue, index-part manifest and
// load/attach reconciliation described in spec §4.7. The actual wire
// protocol for talking to an object store is out of scope (spec §1);
// callers supply a Storage implementation and this package owns only
// the ordering and bookkeeping guarantees layered on top of it: layer
// uploads scheduled before an index upload complete first, index
// uploads are totally ordered, and deletions wait for the index that
// drops their reference to be durable.
package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/coredao-org/pageserver/pkg/lsn"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

// Storage is the narrow interface to an opaque remote object store: put,
// get and list on named blobs scoped under a tenant/timeline prefix.
// Implementations need not be transactional; the queue above them
// supplies the ordering guarantees.
type Storage interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// LayerMeta is the per-layer record carried in an index part: enough to
// reconcile against the local layer map without downloading the body.
type LayerMeta struct {
	Name    string
	FileLen int64
}

// IndexPart enumerates, at some instant, exactly the layer files
// guaranteed to exist remotely for one timeline, per spec §4.7/§6.
type IndexPart struct {
	Layers            []LayerMeta
	DiskConsistentLsn lsn.Lsn
	LatestGCCutoffLsn lsn.Lsn
	Deleted           bool
}

var (
	uploadLayerMeter = metrics.NewRegisteredMeter("pageserver/remote/upload_layer", nil)
	uploadIndexMeter = metrics.NewRegisteredMeter("pageserver/remote/upload_index", nil)
	deleteMeter      = metrics.NewRegisteredMeter("pageserver/remote/delete", nil)
	queueDepthGauge  = metrics.NewRegisteredGauge("pageserver/remote/queue_depth", nil)
)

// task is the queue's internal typed command, mirroring spec §4.7's
// UploadLayer/UploadIndex/Delete vocabulary.
type task struct {
	kind      taskKind
	layerName string
	layerData []byte
	index     *IndexPart
	done      chan error
}

type taskKind int

const (
	taskUploadLayer taskKind = iota
	taskUploadIndex
	taskDelete
)

// Queue is a per-timeline upload queue: a single background worker
// drains tasks in submission order, which is sufficient to guarantee
// the ordering spec §4.7 requires (layer uploads before the index
// upload that references them; index uploads totally ordered;
// deletions after the index that drops them) as long as callers submit
// in that order — which the timeline's flush/compaction/GC commit
// paths do, by construction.
type Queue struct {
	storage Storage
	prefix  string

	mu     sync.Mutex
	ch     chan *task
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts a queue backed by storage, scoped under prefix
// (typically "<tenant_id>/<timeline_id>"). depth bounds the number of
// queued-but-not-yet-issued tasks before UploadLayer/UploadIndex/Delete
// block, providing the back-pressure spec §9 calls for.
func NewQueue(storage Storage, prefix string, depth int) *Queue {
	if depth <= 0 {
		depth = 16
	}
	q := &Queue{storage: storage, prefix: prefix, ch: make(chan *task, depth)}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for t := range q.ch {
		queueDepthGauge.Update(int64(len(q.ch)))
		t.done <- q.execute(t)
	}
}

func (q *Queue) execute(t *task) error {
	ctx := context.Background()
	switch t.kind {
	case taskUploadLayer:
		name := q.prefix + "/" + t.layerName
		if err := q.storage.Put(ctx, name, t.layerData); err != nil {
			return fmt.Errorf("remote: upload layer %s: %w", t.layerName, err)
		}
		uploadLayerMeter.Mark(1)
		log.Debug("Uploaded layer", "name", t.layerName)
	case taskUploadIndex:
		data, err := encodeIndexPart(*t.index)
		if err != nil {
			return fmt.Errorf("remote: encode index: %w", err)
		}
		if err := q.storage.Put(ctx, q.prefix+"/index_part.json", data); err != nil {
			return fmt.Errorf("remote: upload index: %w", err)
		}
		uploadIndexMeter.Mark(1)
		log.Debug("Uploaded index part", "disk_consistent_lsn", t.index.DiskConsistentLsn)
	case taskDelete:
		name := q.prefix + "/" + t.layerName
		if err := q.storage.Delete(ctx, name); err != nil {
			return fmt.Errorf("remote: delete %s: %w", t.layerName, err)
		}
		deleteMeter.Mark(1)
		log.Debug("Deleted remote layer", "name", t.layerName)
	}
	return nil
}

func (q *Queue) submit(t *task) error {
	t.done = make(chan error, 1)
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("remote: queue closed")
	}
	q.mu.Unlock()
	q.ch <- t
	return <-t.done
}

// UploadLayer schedules (and, since this queue is FIFO and ordering is
// established by submission order, effectively synchronizes) a layer
// body upload. Callers must submit all of a generation's layer uploads
// before the corresponding UploadIndex call.
func (q *Queue) UploadLayer(name string, data []byte) error {
	return q.submit(&task{kind: taskUploadLayer, layerName: name, layerData: data})
}

// UploadIndex schedules an index-part upload.
func (q *Queue) UploadIndex(idx IndexPart) error {
	return q.submit(&task{kind: taskUploadIndex, index: &idx})
}

// Delete schedules removal of a remote layer blob. Callers must only
// call this after an UploadIndex that no longer references name has
// completed, per spec §4.7.
func (q *Queue) Delete(name string) error {
	return q.submit(&task{kind: taskDelete, layerName: name})
}

// Close drains and stops the queue's worker. Pending tasks already
// submitted are allowed to complete; no new tasks are accepted.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.ch)
	q.wg.Wait()
}
