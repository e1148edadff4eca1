// Package value implements the tagged union stored at every (key, lsn)
// point: either a full page Image or a WalRecord delta to be replayed
// atop a prior image. The wire encoding is a 1-byte tag followed by a
// 4-byte big-endian length prefix and the payload, deliberately a plain
// hand-rolled format rather than rlp: the spec fixes this exact byte
// layout as the interop boundary with the external redo manager, so a
// generic container codec would only add indirection.
package value

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Kind tags which variant a Value holds.
type Kind uint8

const (
	// KindImage marks a full page image.
	KindImage Kind = 0
	// KindWalRecord marks a delta to apply atop a prior image.
	KindWalRecord Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindWalRecord:
		return "wal_record"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// headerSize is the tag byte plus the 4-byte length prefix.
const headerSize = 1 + 4

// maxPayload bounds a single value at 128 MiB, far above a realistic
// page image or WAL record, to reject corrupt length prefixes quickly
// instead of attempting a huge allocation.
const maxPayload = 128 << 20

// Value is a tagged, length-prefixed page value.
type Value struct {
	Kind  Kind
	Bytes []byte
}

// Image constructs a full-page-image value.
func Image(b []byte) Value { return Value{Kind: KindImage, Bytes: b} }

// WalRecord constructs a WAL-record delta value.
func WalRecord(b []byte) Value { return Value{Kind: KindWalRecord, Bytes: b} }

// IsImage reports whether v terminates a reconstruction chain.
func (v Value) IsImage() bool { return v.Kind == KindImage }

// EncodedLen returns the number of bytes Encode will write.
func (v Value) EncodedLen() int { return headerSize + len(v.Bytes) }

// Encode appends the wire encoding of v to dst and returns the result.
func (v Value) Encode(dst []byte) []byte {
	var hdr [headerSize]byte
	hdr[0] = byte(v.Kind)
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(v.Bytes)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, v.Bytes...)
	return dst
}

// Decode parses a single Value from the front of src, returning the
// value and the number of bytes consumed.
func Decode(src []byte) (Value, int, error) {
	if len(src) < headerSize {
		return Value{}, 0, fmt.Errorf("value: short buffer, need %d header bytes, have %d", headerSize, len(src))
	}
	kind := Kind(src[0])
	if kind != KindImage && kind != KindWalRecord {
		return Value{}, 0, fmt.Errorf("value: unknown tag %d", src[0])
	}
	n := binary.BigEndian.Uint32(src[1:headerSize])
	if n > maxPayload {
		return Value{}, 0, fmt.Errorf("value: payload length %d exceeds max %d", n, maxPayload)
	}
	total := headerSize + int(n)
	if len(src) < total {
		return Value{}, 0, fmt.Errorf("value: short buffer, need %d bytes, have %d", total, len(src))
	}
	payload := make([]byte, n)
	copy(payload, src[headerSize:total])
	return Value{Kind: kind, Bytes: payload}, total, nil
}

// WriteTo writes v's wire encoding to w, satisfying io.WriterTo. The
// encoding is built in a buffer of EncodedLen bytes and written with a
// single Write call.
func (v Value) WriteTo(w io.Writer) (int64, error) {
	buf := v.Encode(make([]byte, 0, v.EncodedLen()))
	n, err := w.Write(buf)
	return int64(n), err
}

// ReadFrom reads exactly one encoded value from r.
func ReadFrom(r io.Reader) (Value, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Value{}, err
	}
	kind := Kind(hdr[0])
	if kind != KindImage && kind != KindWalRecord {
		return Value{}, fmt.Errorf("value: unknown tag %d", hdr[0])
	}
	n := binary.BigEndian.Uint32(hdr[1:])
	if n > maxPayload {
		return Value{}, fmt.Errorf("value: payload length %d exceeds max %d", n, maxPayload)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Value{}, err
	}
	return Value{Kind: kind, Bytes: payload}, nil
}

// ReconstructState accumulates the records needed to answer a single
// point read: a base image if one was found, plus the WAL records that
// must be replayed on top of it, collected newest-to-oldest during the
// layer walk and handed to the redo manager oldest-to-newest.
type ReconstructState struct {
	BaseImage      []byte // nil until a base image is found
	RecordsNewest  []Value // WAL records, newest first, as collected
}

// Terminated reports whether a base image has been found, so the layer
// walk can stop descending toward older layers or the ancestor.
func (s *ReconstructState) Terminated() bool { return s.BaseImage != nil }

// AddRecordNewest appends a WAL record encountered while walking newest
// to oldest.
func (s *ReconstructState) AddRecordNewest(v Value) {
	s.RecordsNewest = append(s.RecordsNewest, v)
}

// RecordsOldestFirst returns the accumulated WAL records in the order
// the redo manager expects to replay them: oldest first.
func (s *ReconstructState) RecordsOldestFirst() []Value {
	out := make([]Value, len(s.RecordsNewest))
	for i, v := range s.RecordsNewest {
		out[len(out)-1-i] = v
	}
	return out
}
