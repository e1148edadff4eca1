// Package metadata implements the per-timeline metadata record: a
// fixed 512-byte checksummed blob persisted at
// tenants/<tenant_id>/timelines/<timeline_id>/metadata, per spec §6.
// It is rewritten on every durable state change (flush, compaction
// commit, GC) using the same write-temp + fsync + rename +
// fsync-parent-dir sequence used for layer files, so a crash between
// writes never leaves a torn record on disk.
package metadata

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/coredao-org/pageserver/internal/diskutil"
	"github.com/coredao-org/pageserver/pkg/ids"
	"github.com/coredao-org/pageserver/pkg/lsn"
	"github.com/coredao-org/pageserver/pkg/pageserrors"

	"github.com/ethereum/go-ethereum/log"
)

// Size is the fixed on-disk record length, per spec §6: "metadata
// files are exactly 512 bytes including a trailing CRC32; any
// deviation is a fatal parse error."
const Size = 512

const formatVersion uint16 = 1

// Ancestor identifies the timeline and LSN this timeline branched from.
// A root timeline (no ancestor) has a zero TimelineID.
type Ancestor struct {
	TimelineID ids.TimelineID
	Lsn        lsn.Lsn
}

// Record is the decoded contents of a timeline's metadata file.
type Record struct {
	FormatVersion      uint16
	DiskConsistentLsn  lsn.Lsn
	PrevRecordLsn      lsn.Lsn
	HasPrevRecordLsn   bool
	Ancestor           Ancestor
	HasAncestor        bool
	LatestGCCutoffLsn  lsn.Lsn
	InitdbLsn          lsn.Lsn
	PgVersion          uint32
}

// layout, all big-endian:
//
//	0   : 2   format version
//	2   : 8   disk_consistent_lsn
//	10  : 1   has_prev_record_lsn flag
//	11  : 8   prev_record_lsn
//	19  : 1   has_ancestor flag
//	20  : 16  ancestor timeline id (UUID)
//	36  : 8   ancestor lsn
//	44  : 8   latest_gc_cutoff_lsn
//	52  : 8   initdb_lsn
//	60  : 4   pg_version
//	64..507   reserved, zero-filled
//	508 : 4   crc32 of bytes [0:508)
const (
	offFormatVersion = 0
	offDiskConsLsn   = 2
	offHasPrevLsn    = 10
	offPrevLsn       = 11
	offHasAncestor   = 19
	offAncestorID    = 20
	ancestorIDSize   = 16
	offAncestorLsn   = offAncestorID + ancestorIDSize
	offGCCutoff      = offAncestorLsn + 8
	offInitdbLsn     = offGCCutoff + 8
	offPgVersion     = offInitdbLsn + 8
	offChecksum      = Size - 4
)

// Encode serializes r into a Size-byte buffer, trailing CRC32 included.
func (r Record) Encode() [Size]byte {
	var buf [Size]byte
	binary.BigEndian.PutUint16(buf[offFormatVersion:], formatVersion)
	binary.BigEndian.PutUint64(buf[offDiskConsLsn:], uint64(r.DiskConsistentLsn))
	if r.HasPrevRecordLsn {
		buf[offHasPrevLsn] = 1
	}
	binary.BigEndian.PutUint64(buf[offPrevLsn:], uint64(r.PrevRecordLsn))
	if r.HasAncestor {
		buf[offHasAncestor] = 1
	}
	copy(buf[offAncestorID:offAncestorID+ancestorIDSize], r.Ancestor.TimelineID[:])
	binary.BigEndian.PutUint64(buf[offAncestorLsn:], uint64(r.Ancestor.Lsn))
	binary.BigEndian.PutUint64(buf[offGCCutoff:], uint64(r.LatestGCCutoffLsn))
	binary.BigEndian.PutUint64(buf[offInitdbLsn:], uint64(r.InitdbLsn))
	binary.BigEndian.PutUint32(buf[offPgVersion:], r.PgVersion)

	sum := crc32.ChecksumIEEE(buf[:offChecksum])
	binary.BigEndian.PutUint32(buf[offChecksum:], sum)
	return buf
}

// Decode parses a Size-byte buffer into a Record, verifying the
// trailing checksum and the buffer length per spec §6's "any deviation
// is a fatal parse error."
func Decode(buf []byte) (Record, error) {
	if len(buf) != Size {
		return Record{}, fmt.Errorf("%w: metadata record is %d bytes, want %d", pageserrors.ErrCorruptFile, len(buf), Size)
	}
	want := binary.BigEndian.Uint32(buf[offChecksum:])
	got := crc32.ChecksumIEEE(buf[:offChecksum])
	if want != got {
		return Record{}, fmt.Errorf("%w: metadata checksum mismatch: have %08x, want %08x", pageserrors.ErrCorruptFile, got, want)
	}

	version := binary.BigEndian.Uint16(buf[offFormatVersion:])
	if version != formatVersion {
		return Record{}, fmt.Errorf("%w: metadata format version %d unsupported", pageserrors.ErrCorruptFile, version)
	}

	var r Record
	r.FormatVersion = version
	r.DiskConsistentLsn = lsn.Lsn(binary.BigEndian.Uint64(buf[offDiskConsLsn:]))
	r.HasPrevRecordLsn = buf[offHasPrevLsn] != 0
	r.PrevRecordLsn = lsn.Lsn(binary.BigEndian.Uint64(buf[offPrevLsn:]))
	r.HasAncestor = buf[offHasAncestor] != 0
	copy(r.Ancestor.TimelineID[:], buf[offAncestorID:offAncestorID+ancestorIDSize])
	r.Ancestor.Lsn = lsn.Lsn(binary.BigEndian.Uint64(buf[offAncestorLsn:]))
	r.LatestGCCutoffLsn = lsn.Lsn(binary.BigEndian.Uint64(buf[offGCCutoff:]))
	r.InitdbLsn = lsn.Lsn(binary.BigEndian.Uint64(buf[offInitdbLsn:]))
	r.PgVersion = binary.BigEndian.Uint32(buf[offPgVersion:])
	return r, nil
}

// WriteFile rewrites the metadata file at path crash-safely: write to a
// temp file in the same directory, fsync, rename over the destination,
// then fsync the parent directory.
func WriteFile(path string, r Record) error {
	buf := r.Encode()
	err := diskutil.CreateFileAtomic(path, func(f *os.File) error {
		_, err := f.Write(buf[:])
		return err
	})
	if err != nil {
		return fmt.Errorf("metadata: write %s: %w", path, err)
	}
	log.Debug("Wrote timeline metadata", "path", path, "disk_consistent_lsn", r.DiskConsistentLsn)
	return nil
}

// ReadFile loads and validates the metadata file at path.
func ReadFile(path string) (Record, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("metadata: read %s: %w", path, err)
	}
	r, err := Decode(buf)
	if err != nil {
		return Record{}, fmt.Errorf("metadata: %s: %w", path, err)
	}
	return r, nil
}
