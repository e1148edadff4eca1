// Package image implements the immutable on-disk image layer file: one
// self-contained file holding a full page value per key as of a single
// LSN. Image layers terminate reconstruction chains and bound
// compaction cost, per spec §4.3. The envelope mirrors package delta's:
// a 16-bit magic, a fixed header, a blob region and a flat sorted index
// searched with binary search in place of a multi-level B-tree.
package image

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
	"github.com/coredao-org/pageserver/pkg/lsn"
	"github.com/coredao-org/pageserver/pkg/pageserrors"
	"github.com/coredao-org/pageserver/pkg/value"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

// Magic identifies an image layer file, per spec §6 IMAGE_FILE_MAGIC.
const Magic uint16 = 0x1A6E

const fileVersion uint16 = 1

// headerSize is magic(2) + version(2) + pgVersion(4) + keyLo(18) +
// keyHi(18) + at(8) + indexOffset(8) + indexCount(4).
const headerSize = 2 + 2 + 4 + key.Size + key.Size + 8 + 8 + 4

// indexEntrySize is key(18) + blobOffset(8) + blobLength(4).
const indexEntrySize = key.Size + 8 + 4

var (
	getTimer     = metrics.NewRegisteredTimer("pageserver/image/get", nil)
	getHitMeter  = metrics.NewRegisteredMeter("pageserver/image/hit", nil)
	getMissMeter = metrics.NewRegisteredMeter("pageserver/image/miss", nil)
)

// Entry is a single (key -> full page bytes) pair materialized at the
// image layer's LSN.
type Entry struct {
	Key   key.Key
	Bytes []byte
}

type indexEntry struct {
	key        key.Key
	blobOffset int64
	blobLength int32
}

// Layer is an opened, immutable image layer file.
type Layer struct {
	path   string
	handle *vfs.Handle
	desc   layer.Descriptor
	index  []indexEntry // sorted by key
}

// Write serializes entries (one full page per key, materialized at LSN
// `at`) into a new image layer file, crash-safely.
func Write(path string, entries []Entry, keys key.Range, at lsn.Lsn, pgVersion uint32) (layer.Descriptor, error) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key.Less(entries[j].Key) })

	blob := make([]byte, 0, len(entries)*32)
	index := make([]indexEntry, 0, len(entries))
	for _, e := range entries {
		v := value.Image(e.Bytes)
		offset := int64(len(blob))
		blob = v.Encode(blob)
		index = append(index, indexEntry{key: e.Key, blobOffset: offset, blobLength: int32(v.EncodedLen())})
	}

	indexOffset := int64(headerSize) + int64(len(blob))
	hdr := make([]byte, headerSize)
	binary.BigEndian.PutUint16(hdr[0:2], Magic)
	binary.BigEndian.PutUint16(hdr[2:4], fileVersion)
	binary.BigEndian.PutUint32(hdr[4:8], pgVersion)
	copy(hdr[8:8+key.Size], keys.Lo[:])
	copy(hdr[8+key.Size:8+2*key.Size], keys.Hi[:])
	off := 8 + 2*key.Size
	binary.BigEndian.PutUint64(hdr[off:off+8], uint64(at))
	binary.BigEndian.PutUint64(hdr[off+8:off+16], uint64(indexOffset))
	binary.BigEndian.PutUint32(hdr[off+16:off+20], uint32(len(index)))

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
			binary.BigEndian.PutUint64(rec[key.Size:key.Size+8], uint64(e.blobOffset))
			binary.BigEndian.PutUint32(rec[key.Size+8:key.Size+12], uint32(e.blobLength))
			if _, err := f.Write(rec[:]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return layer.Descriptor{}, fmt.Errorf("image: write %s: %w", path, err)
	}

	desc := layer.Descriptor{
		Kind:    layer.KindImage,
		Keys:    keys,
		LsnLo:   at,
		LsnHi:   at + 1,
		FileLen: indexOffset + int64(len(index))*indexEntrySize,
	}
	log.Info("Wrote image layer", "path", path, "entries", len(index), "at", at)
	return desc, nil
}

// Open loads an existing image layer file's header and index.
func Open(path string, table *vfs.Table) (*Layer, error) {
	h, err := table.Open(path)
	if err != nil {
		return nil, err
	}
	hdr := make([]byte, headerSize)
	if _, err := h.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("image: read header %s: %w", path, err)
	}
	magic := binary.BigEndian.Uint16(hdr[0:2])
	if magic != Magic {
		return nil, fmt.Errorf("%w: image file %s has magic %x, want %x", pageserrors.ErrCorruptFile, path, magic, Magic)
	}
	var keyLo, keyHi key.Key
	copy(keyLo[:], hdr[8:8+key.Size])
	copy(keyHi[:], hdr[8+key.Size:8+2*key.Size])
	off := 8 + 2*key.Size
	at := lsn.Lsn(binary.BigEndian.Uint64(hdr[off : off+8]))
	indexOffset := int64(binary.BigEndian.Uint64(hdr[off+8 : off+16]))
	indexCount := binary.BigEndian.Uint32(hdr[off+16 : off+20])

	raw := make([]byte, int64(indexCount)*indexEntrySize)
	if len(raw) > 0 {
		if _, err := h.ReadAt(raw, indexOffset); err != nil {
			return nil, fmt.Errorf("image: read index %s: %w", path, err)
		}
	}
	index := make([]indexEntry, indexCount)
	for i := range index {
		rec := raw[i*indexEntrySize : (i+1)*indexEntrySize]
		var k key.Key
		copy(k[:], rec[0:key.Size])
		index[i] = indexEntry{
			key:        k,
			blobOffset: int64(binary.BigEndian.Uint64(rec[key.Size : key.Size+8])),
			blobLength: int32(binary.BigEndian.Uint32(rec[key.Size+8 : key.Size+12])),
		}
	}

	return &Layer{
		path:   path,
		handle: h,
		index:  index,
		desc: layer.Descriptor{
			Kind:  layer.KindImage,
			Keys:  key.Range{Lo: keyLo, Hi: keyHi},
			LsnLo: at,
			LsnHi: at + 1,
		},
	}, nil
}

// Kind implements layer.Layer.
func (l *Layer) Kind() layer.Kind { return layer.KindImage }

// Name implements layer.Layer.
func (l *Layer) Name() string { return l.desc.FileName() }

// Rectangle implements layer.Layer.
func (l *Layer) Rectangle() layer.Rect { return l.desc.Rectangle() }

// Descriptor returns the layer's descriptor.
func (l *Layer) Descriptor() layer.Descriptor { return l.desc }

// Get implements layer.Layer. An image layer always terminates a
// reconstruction chain: if it has an entry for k, the search is done.
func (l *Layer) Get(k key.Key, lsnInclusive lsn.Lsn, state *value.ReconstructState) (bool, error) {
	start := time.Now()
	defer func() { getTimer.UpdateSince(start) }()

	if lsnInclusive < l.desc.LsnLo || !l.desc.Keys.Contains(k) {
		return false, nil
	}
	i := sort.Search(len(l.index), func(i int) bool { return !l.index[i].key.Less(k) })
	if i >= len(l.index) || l.index[i].key != k {
		getMissMeter.Mark(1)
		return false, nil
	}
	e := l.index[i]
	buf := make([]byte, e.blobLength)
	if _, err := l.handle.ReadAt(buf, e.blobOffset); err != nil {
		return false, fmt.Errorf("image: read blob %s: %w", l.path, err)
	}
	v, _, err := value.Decode(buf)
	if err != nil {
		return false, fmt.Errorf("%w: image: decode blob %s: %v", pageserrors.ErrCorruptFile, l.path, err)
	}
	state.BaseImage = v.Bytes
	getHitMeter.Mark(1)
	return true, nil
}
