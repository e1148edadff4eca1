// Package delta implements the immutable on-disk delta layer file: one
// self-contained file covering [start_lsn, end_lsn) x [key_lo, key_hi)
// that stores every (key, lsn, value) entry in that rectangle. Per spec
// §4.2 the file is a 16-bit magic, a fixed header (LSN range, key range,
// Postgres version, tree-root offset), a disk index keyed by (key, lsn)
// whose entries point into a blob region of length-prefixed values.
//
// The "disk B-tree" of spec §4.2 is realized here as a flat, sorted
// index loaded into memory on open and searched with binary search: for
// the single-writer-many-small-file shape of a layer (write once, read
// many, never mutate), a flat sorted array gives the same O(log n) seek
// to "the greatest (key, lsn) <= target" a multi-level B-tree would,
// without the complexity of splitting/balancing nodes that only pays
// off for a structure mutated in place.
package delta

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/coredao-org/pageserver/internal/diskutil"
	"github.com/coredao-org/pageserver/internal/vfs"
	"github.com/coredao-org/pageserver/pkg/key"
	"github.com/coredao-org/pageserver/pkg/layer"
	"github.com/coredao-org/pageserver/pkg/layer/ephemeral"
	"github.com/coredao-org/pageserver/pkg/lsn"
	"github.com/coredao-org/pageserver/pkg/pageserrors"
	"github.com/coredao-org/pageserver/pkg/value"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

// Magic identifies a delta layer file, per spec §6 DELTA_FILE_MAGIC.
const Magic uint16 = 0xD17A

const fileVersion uint16 = 1

// headerSize is the fixed header width: magic(2) + version(2) +
// pgVersion(4) + keyLo(18) + keyHi(18) + lsnLo(8) + lsnHi(8) +
// indexOffset(8) + indexCount(4) = 72 bytes, with no padding.
const headerSize = 2 + 2 + 4 + key.Size + key.Size + 8 + 8 + 8 + 4

// indexEntrySize is key(18) + lsn(8) + blobOffset(8) + blobLength(4).
const indexEntrySize = key.Size + 8 + 8 + 4

var (
	getTimer     = metrics.NewRegisteredTimer("pageserver/delta/get", nil)
	getHitMeter  = metrics.NewRegisteredMeter("pageserver/delta/hit", nil)
	getMissMeter = metrics.NewRegisteredMeter("pageserver/delta/miss", nil)
)

type indexEntry struct {
	key        key.Key
	l          lsn.Lsn
	blobOffset int64
	blobLength int32
}

// Layer is an opened, immutable delta layer file. Its index is resident
// in memory; blob reads go through the shared virtual-file table so the
// underlying descriptor can be evicted and transparently reopened.
type Layer struct {
	path    string
	handle  *vfs.Handle
	desc    layer.Descriptor
	index   []indexEntry // sorted by (key, lsn)
	keyLo   key.Key
	keyHi   key.Key
	lsnLo   lsn.Lsn
	lsnHi   lsn.Lsn
}

// Write serializes a frozen ephemeral layer's snapshot into a new delta
// layer file at path, crash-safely (write-temp, fsync, rename,
// fsync-parent per spec §4.2), and returns its descriptor.
func Write(path string, snap ephemeral.Snapshot, keys key.Range, pgVersion uint32) (layer.Descriptor, error) {
	// Build the blob region and index in memory first; delta layers are
	// bounded by checkpoint_distance so this is a small, fixed amount of
	// work per flush.
	blob := make([]byte, 0, len(snap.Entries)*64)
	index := make([]indexEntry, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		offset := int64(len(blob))
		blob = e.Value.Encode(blob)
		index = append(index, indexEntry{
			key:        e.Key,
			l:          e.Lsn,
			blobOffset: offset,
			blobLength: int32(e.Value.EncodedLen()),
		})
	}
	sort.Slice(index, func(i, j int) bool {
		if index[i].key != index[j].key {
			return index[i].key.Less(index[j].key)
		}
		return index[i].l < index[j].l
	})

	indexOffset := int64(headerSize) + int64(len(blob))
	hdr := make([]byte, headerSize)
	binary.BigEndian.PutUint16(hdr[0:2], Magic)
	binary.BigEndian.PutUint16(hdr[2:4], fileVersion)
	binary.BigEndian.PutUint32(hdr[4:8], pgVersion)
	copy(hdr[8:8+key.Size], keys.Lo[:])
	copy(hdr[8+key.Size:8+2*key.Size], keys.Hi[:])
	off := 8 + 2*key.Size
	binary.BigEndian.PutUint64(hdr[off:off+8], uint64(snap.StartLsn))
	binary.BigEndian.PutUint64(hdr[off+8:off+16], uint64(snap.EndLsn))
	binary.BigEndian.PutUint64(hdr[off+16:off+24], uint64(indexOffset))
	binary.BigEndian.PutUint32(hdr[off+24:off+28], uint32(len(index)))

	err := diskutil.CreateFileAtomic(path, func(f *os.File) error {
		if _, err := f.Write(hdr); err != nil {
			return err
		}
		if _, err := f.Write(blob); err != nil {
			return err
		}
		for _, e := range index {
			var rec [indexEntrySize]byte
			copy(rec[0:key.Size], e.key[:])
			binary.BigEndian.PutUint64(rec[key.Size:key.Size+8], uint64(e.l))
			binary.BigEndian.PutUint64(rec[key.Size+8:key.Size+16], uint64(e.blobOffset))
			binary.BigEndian.PutUint32(rec[key.Size+16:key.Size+20], uint32(e.blobLength))
			if _, err := f.Write(rec[:]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return layer.Descriptor{}, fmt.Errorf("delta: write %s: %w", path, err)
	}

	desc := layer.Descriptor{
		Kind:    layer.KindDelta,
		Keys:    keys,
		LsnLo:   snap.StartLsn,
		LsnHi:   snap.EndLsn,
		FileLen: indexOffset + int64(len(index))*indexEntrySize,
	}
	log.Info("Wrote delta layer", "path", path, "entries", len(index), "lsn_lo", snap.StartLsn, "lsn_hi", snap.EndLsn)
	return desc, nil
}

// Open loads an existing delta layer file's header and index into
// memory, validating the magic and bounds. Blob reads happen lazily
// through table.
func Open(path string, table *vfs.Table) (*Layer, error) {
	h, err := table.Open(path)
	if err != nil {
		return nil, err
	}
	hdr := make([]byte, headerSize)
	if _, err := h.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("delta: read header %s: %w", path, err)
	}
	magic := binary.BigEndian.Uint16(hdr[0:2])
	if magic != Magic {
		return nil, fmt.Errorf("%w: delta file %s has magic %x, want %x", pageserrors.ErrCorruptFile, path, magic, Magic)
	}
	var keyLo, keyHi key.Key
	copy(keyLo[:], hdr[8:8+key.Size])
	copy(keyHi[:], hdr[8+key.Size:8+2*key.Size])
	off := 8 + 2*key.Size
	lsnLo := lsn.Lsn(binary.BigEndian.Uint64(hdr[off : off+8]))
	lsnHi := lsn.Lsn(binary.BigEndian.Uint64(hdr[off+8 : off+16]))
	indexOffset := int64(binary.BigEndian.Uint64(hdr[off+16 : off+24]))
	indexCount := binary.BigEndian.Uint32(hdr[off+24 : off+28])

	raw := make([]byte, int64(indexCount)*indexEntrySize)
	if len(raw) > 0 {
		if _, err := h.ReadAt(raw, indexOffset); err != nil {
			return nil, fmt.Errorf("delta: read index %s: %w", path, err)
		}
	}
	index := make([]indexEntry, indexCount)
	for i := range index {
		rec := raw[i*indexEntrySize : (i+1)*indexEntrySize]
		var k key.Key
		copy(k[:], rec[0:key.Size])
		index[i] = indexEntry{
			key:        k,
			l:          lsn.Lsn(binary.BigEndian.Uint64(rec[key.Size : key.Size+8])),
			blobOffset: int64(binary.BigEndian.Uint64(rec[key.Size+8 : key.Size+16])),
			blobLength: int32(binary.BigEndian.Uint32(rec[key.Size+16 : key.Size+20])),
		}
	}

	return &Layer{
		path:   path,
		handle: h,
		keyLo:  keyLo,
		keyHi:  keyHi,
		lsnLo:  lsnLo,
		lsnHi:  lsnHi,
		index:  index,
		desc: layer.Descriptor{
			Kind:  layer.KindDelta,
			Keys:  key.Range{Lo: keyLo, Hi: keyHi},
			LsnLo: lsnLo,
			LsnHi: lsnHi,
		},
	}, nil
}

// Kind implements layer.Layer.
func (l *Layer) Kind() layer.Kind { return layer.KindDelta }

// Name implements layer.Layer, returning the durable file name (not the
// full path).
func (l *Layer) Name() string { return l.desc.FileName() }

// Rectangle implements layer.Layer.
func (l *Layer) Rectangle() layer.Rect { return l.desc.Rectangle() }

// Descriptor returns the layer's descriptor.
func (l *Layer) Descriptor() layer.Descriptor { return l.desc }

// Keys returns the distinct keys this layer holds an entry for, in
// ascending order. Used by compaction to decide which keys need image
// synthesis; not part of the layer.Layer interface.
func (l *Layer) Keys() []key.Key {
	out := make([]key.Key, 0, len(l.index))
	for i, e := range l.index {
		if i == 0 || e.key != l.index[i-1].key {
			out = append(out, e.key)
		}
	}
	return out
}

// Entries reads back every (key, lsn, value) triple in this layer, in
// index order. Used by compaction to merge several delta layers into
// one; not part of the layer.Layer interface.
func (l *Layer) Entries() ([]ephemeral.SnapshotEntry, error) {
	out := make([]ephemeral.SnapshotEntry, 0, len(l.index))
	for _, e := range l.index {
		buf := make([]byte, e.blobLength)
		if _, err := l.handle.ReadAt(buf, e.blobOffset); err != nil {
			return nil, fmt.Errorf("delta: read blob %s: %w", l.path, err)
		}
		v, _, err := value.Decode(buf)
		if err != nil {
			return nil, fmt.Errorf("%w: delta: decode blob %s: %v", pageserrors.ErrCorruptFile, l.path, err)
		}
		out = append(out, ephemeral.SnapshotEntry{Key: e.key, Lsn: e.l, Value: v})
	}
	return out, nil
}

// Get implements layer.Layer: seeks the index for the greatest (key,
// lsn) <= (k, lsnInclusive) with lsn >= l.lsnLo, per spec §4.2, then
// walks backward accumulating records for k until an image is found or
// the layer's start LSN is passed.
func (l *Layer) Get(k key.Key, lsnInclusive lsn.Lsn, state *value.ReconstructState) (bool, error) {
	start := time.Now()
	defer func() { getTimer.UpdateSince(start) }()

	if !l.desc.Keys.Contains(k) {
		return false, nil
	}
	// Binary search for the first index entry strictly greater than
	// (k, lsnInclusive) in (key, lsn) order.
	idx := sort.Search(len(l.index), func(i int) bool {
		e := l.index[i]
		if e.key.Less(k) {
			return false
		}
		if k.Less(e.key) {
			return true
		}
		return e.l > lsnInclusive
	})
	found := false
	for i := idx - 1; i >= 0 && l.index[i].key == k; i-- {
		e := l.index[i]
		if e.l < l.lsnLo {
			break
		}
		buf := make([]byte, e.blobLength)
		if _, err := l.handle.ReadAt(buf, e.blobOffset); err != nil {
			return false, fmt.Errorf("delta: read blob %s: %w", l.path, err)
		}
		v, _, err := value.Decode(buf)
		if err != nil {
			return false, fmt.Errorf("%w: delta: decode blob %s: %v", pageserrors.ErrCorruptFile, l.path, err)
		}
		found = true
		if v.IsImage() {
			state.BaseImage = v.Bytes
			getHitMeter.Mark(1)
			return true, nil
		}
		state.AddRecordNewest(v)
	}
	if found {
		getHitMeter.Mark(1)
	} else {
		getMissMeter.Mark(1)
	}
	return found, nil
}
