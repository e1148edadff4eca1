// Package ephemeral implements the mutable, in-memory write buffer that
// absorbs ingest for a single timeline before it is frozen and flushed
// to an immutable delta layer. Per spec §4.1, the backing store is a
// paged arena that grows by fixed-size blocks; an in-memory index maps
// key to an ordered list of (lsn, arena offset, length). Because writes
// within a key arrive in strictly increasing LSN order, that list is
// simply appended to, and reads bisect it.
package ephemeral

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/coredao-org/pageserver/pkg/key"
	"github.com/coredao-org/pageserver/pkg/layer"
	"github.com/coredao-org/pageserver/pkg/lsn"
	"github.com/coredao-org/pageserver/pkg/pageserrors"
	"github.com/coredao-org/pageserver/pkg/value"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

// blockSize is the fixed growth increment of the backing arena.
const blockSize = 64 << 10 // 64 KiB

var (
	putMeter    = metrics.NewRegisteredMeter("pageserver/ephemeral/put", nil)
	bytesMeter  = metrics.NewRegisteredMeter("pageserver/ephemeral/bytes", nil)
	freezeTimer = metrics.NewRegisteredTimer("pageserver/ephemeral/freeze", nil)
)

type entry struct {
	l      lsn.Lsn
	offset int64
	length int32
}

// Layer is the mutable, in-memory, append-only write buffer for a
// single timeline, covering [StartLsn, +inf) for arbitrary keys until
// frozen.
type Layer struct {
	mu sync.RWMutex

	startLsn lsn.Lsn
	endLsn   lsn.Lsn // set only once frozen
	frozen   bool
	lastLsn  lsn.Lsn

	arena    [][]byte // fixed-size blocks
	arenaLen int64    // logical length across all blocks

	index map[key.Key][]entry
	size  int64 // bytes of value payload buffered, used against checkpoint_distance
}

// Create establishes an empty ephemeral layer covering [startLsn, +inf).
func Create(startLsn lsn.Lsn) *Layer {
	return &Layer{
		startLsn: startLsn,
		lastLsn:  startLsn,
		index:    make(map[key.Key][]entry),
	}
}

// StartLsn returns the LSN at which this layer begins.
func (l *Layer) StartLsn() lsn.Lsn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.startLsn
}

// Size reports the number of payload bytes buffered so far, the figure
// compared against checkpoint_distance to decide when to freeze.
func (l *Layer) Size() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// PutValue appends (k, lsn, v) to the buffer. It requires lsn >=
// startLsn and lsn >= the last LSN seen on this layer (not necessarily
// for this key: ingest for a whole timeline is LSN-monotone).
func (l *Layer) PutValue(k key.Key, at lsn.Lsn, v value.Value) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frozen {
		return pageserrors.ErrFrozen
	}
	if at < l.startLsn || at < l.lastLsn {
		return pageserrors.ErrOutOfOrder
	}
	buf := v.Encode(nil)
	offset := l.arenaLen
	l.appendLocked(buf)

	l.index[k] = append(l.index[k], entry{l: at, offset: offset, length: int32(len(buf))})
	l.lastLsn = at
	l.size += int64(len(buf))

	putMeter.Mark(1)
	bytesMeter.Mark(int64(len(buf)))
	return nil
}

// appendLocked writes buf into the arena, growing it by fixed blocks as
// needed. Callers must hold l.mu.
func (l *Layer) appendLocked(buf []byte) {
	for len(buf) > 0 {
		if len(l.arena) == 0 || len(l.arena[len(l.arena)-1]) == cap(l.arena[len(l.arena)-1]) {
			l.arena = append(l.arena, make([]byte, 0, blockSize))
		}
		last := &l.arena[len(l.arena)-1]
		room := cap(*last) - len(*last)
		n := len(buf)
		if n > room {
			n = room
		}
		*last = append(*last, buf[:n]...)
		buf = buf[n:]
		l.arenaLen += int64(n)
	}
}

// readAt reconstructs the byte slice written at [offset, offset+length)
// across arena block boundaries. Callers must hold l.mu for reading.
func (l *Layer) readAt(offset int64, length int32) []byte {
	out := make([]byte, 0, length)
	var pos int64
	remaining := int64(length)
	skip := offset
	for _, block := range l.arena {
		blockLen := int64(len(block))
		if skip >= blockLen {
			skip -= blockLen
			pos += blockLen
			continue
		}
		start := skip
		avail := blockLen - start
		take := remaining
		if take > avail {
			take = avail
		}
		out = append(out, block[start:start+take]...)
		remaining -= take
		skip = 0
		if remaining == 0 {
			break
		}
	}
	return out
}

// Get returns the newest entry at or below lsnInclusive for k, never
// blocking on disk. It satisfies layer.Layer.Get.
func (l *Layer) Get(k key.Key, lsnInclusive lsn.Lsn, state *value.ReconstructState) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries, ok := l.index[k]
	if !ok {
		return false, nil
	}
	// entries is strictly increasing in lsn; bisect for the greatest
	// entry with l <= lsnInclusive.
	idx := sort.Search(len(entries), func(i int) bool { return entries[i].l > lsnInclusive })
	if idx == 0 {
		return false, nil
	}
	found := false
	for i := idx - 1; i >= 0; i-- {
		e := entries[i]
		raw := l.readAt(e.offset, e.length)
		v, _, err := value.Decode(raw)
		if err != nil {
			return false, err
		}
		found = true
		if v.IsImage() {
			state.BaseImage = v.Bytes
			return true, nil
		}
		state.AddRecordNewest(v)
		// Keep walking older entries for the same key in this layer in
		// case multiple WAL records were buffered before a checkpoint;
		// stop once we've consumed everything at or below the LSN.
	}
	return found, nil
}

// Freeze stamps the end of this layer's range. After Freeze, PutValue
// fails with ErrFrozen.
func (l *Layer) Freeze(endLsn lsn.Lsn) {
	start := time.Now()
	defer func() { freezeTimer.UpdateSince(start) }()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.frozen = true
	l.endLsn = endLsn
	log.Debug("Froze ephemeral layer", "start", l.startLsn, "end", endLsn, "size", l.size)
}

// Frozen reports whether Freeze has been called.
func (l *Layer) Frozen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frozen
}

// EndLsn returns the frozen end LSN, or the open-ended sentinel if the
// layer has not been frozen yet.
func (l *Layer) EndLsn() lsn.Lsn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.frozen {
		return lsn.Lsn(math.MaxUint64)
	}
	return l.endLsn
}

// Kind implements layer.Layer.
func (l *Layer) Kind() layer.Kind { return layer.KindEphemeral }

// Name implements layer.Layer; the ephemeral layer has no durable name
// until it is written to disk.
func (l *Layer) Name() string { return "" }

// Rectangle implements layer.Layer.
func (l *Layer) Rectangle() layer.Rect {
	l.mu.RLock()
	defer l.mu.RUnlock()
	end := lsn.Lsn(math.MaxUint64)
	if l.frozen {
		end = l.endLsn
	}
	return layer.Rect{
		Keys: key.FullRange(),
		Lsns: lsn.Range{Start: l.startLsn, End: end},
	}
}

// Snapshot is a serializable view of the buffered entries, sorted by
// key then LSN, used by delta.Write to build a delta layer file.
type Snapshot struct {
	StartLsn lsn.Lsn
	EndLsn   lsn.Lsn
	Entries  []SnapshotEntry
}

// SnapshotEntry is a single (key, lsn, value) triple ready to be written
// into a delta layer's body.
type SnapshotEntry struct {
	Key   key.Key
	Lsn   lsn.Lsn
	Value value.Value
}

// TakeSnapshot materializes the buffered (key, lsn, value) triples in
// key-then-lsn order, the order a delta layer's B-tree body expects.
// The layer must already be frozen.
func (l *Layer) TakeSnapshot() (Snapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.frozen {
		return Snapshot{}, pageserrors.ErrOutOfOrder
	}
	keys := make([]key.Key, 0, len(l.index))
	for k := range l.index {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	var entries []SnapshotEntry
	for _, k := range keys {
		for _, e := range l.index[k] {
			raw := l.readAt(e.offset, e.length)
			v, _, err := value.Decode(raw)
			if err != nil {
				return Snapshot{}, err
			}
			entries = append(entries, SnapshotEntry{Key: k, Lsn: e.l, Value: v})
		}
	}
	return Snapshot{StartLsn: l.startLsn, EndLsn: l.endLsn, Entries: entries}, nil
}
