// Package layer defines the common shape shared by the three on-disk
// and in-memory layer kinds (ephemeral, delta, image): the rectangle
// each one covers in (key, lsn) space, and the interface the layer map
// and timeline read path program against.
package layer

import (
	"fmt"

	"github.com/coredao-org/pageserver/pkg/key"
	"github.com/coredao-org/pageserver/pkg/lsn"
	"github.com/coredao-org/pageserver/pkg/value"
)

// Kind distinguishes the three layer variants.
type Kind int

const (
	KindEphemeral Kind = iota
	KindDelta
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindEphemeral:
		return "ephemeral"
	case KindDelta:
		return "delta"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// Rect is the rectangle a historic layer covers: a key range and an LSN
// range. An image layer's LSN range is degenerate, [At, At+1).
type Rect struct {
	Keys key.Range
	Lsns lsn.Range
}

// Covers reports whether the rectangle contains (k, l).
func (r Rect) Covers(k key.Key, l lsn.Lsn) bool {
	return r.Keys.Contains(k) && r.Lsns.Contains(l)
}

// Overlaps reports whether two rectangles share any (key, lsn) point.
func (r Rect) Overlaps(other Rect) bool {
	return r.Keys.Overlaps(other.Keys) && r.Lsns.Overlaps(other.Lsns)
}

// Layer is the interface the layer map and timeline read path use;
// ephemeral.Layer, delta.Layer and image.Layer all satisfy it.
type Layer interface {
	// Kind reports which of the three variants this is.
	Kind() Kind
	// Rectangle reports the (key, lsn) rectangle this layer covers. For
	// the ephemeral layer the LSN range's End is the open end +inf,
	// represented as lsn.Lsn(math.MaxUint64).
	Rectangle() Rect
	// Name is the durable on-disk identifier (empty for the ephemeral
	// layer, which has none until frozen and flushed).
	Name() string
	// Get returns the newest entry at or below lsnInclusive for k,
	// accumulating into state. It returns ok=false if this layer has no
	// entry for k in its range.
	Get(k key.Key, lsnInclusive lsn.Lsn, state *value.ReconstructState) (ok bool, err error)
}

// Descriptor is the metadata persisted about a historic (delta or
// image) layer: enough to name its file and reconstruct its rectangle
// without opening it. Layer file names encode exactly these fields, per
// spec §6.
type Descriptor struct {
	Kind    Kind
	Keys    key.Range
	LsnLo   lsn.Lsn // inclusive
	LsnHi   lsn.Lsn // exclusive; for image layers LsnHi == LsnLo+1
	FileLen int64
}

// Rectangle reports the rectangle described.
func (d Descriptor) Rectangle() Rect {
	return Rect{Keys: d.Keys, Lsns: lsn.Range{Start: d.LsnLo, End: d.LsnHi}}
}

// FileName returns the durable on-disk name for the described layer, per
// spec §6: deltas encode (key_lo, key_hi, lsn_lo, lsn_hi); images encode
// (key_lo, key_hi, lsn).
func (d Descriptor) FileName() string {
	switch d.Kind {
	case KindDelta:
		return fmt.Sprintf("%s-%s__%016X-%016X", d.Keys.Lo, d.Keys.Hi, uint64(d.LsnLo), uint64(d.LsnHi))
	case KindImage:
		return fmt.Sprintf("%s-%s__%016X", d.Keys.Lo, d.Keys.Hi, uint64(d.LsnLo))
	default:
		panic("layer: descriptor for non-historic kind has no file name")
	}
}

// TieBreakBetterThan reports whether a is preferred over b when both
// cover the same (key, lsn) point and share the same effective end LSN:
// per spec §4.4/§9, an image layer wins over a delta layer at an equal
// end LSN (the spec notes this tie-break is asserted, not explicit, in
// the system this was distilled from).
func TieBreakBetterThan(a, b Kind) bool {
	if a == b {
		return false
	}
	return a == KindImage
}
