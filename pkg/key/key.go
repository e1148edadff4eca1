// Package key implements the 18-byte structured page identifier used
// throughout the storage layer. Keys are dense within a relation and
// sparse across relations, and carry a total order so layers can be
// organized as rectangles over (key, lsn) space.
package key

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Size is the wire and in-memory width of a Key, in bytes.
const Size = 18

// Key is an 18-byte structured page identifier. It is deliberately an
// opaque byte array rather than a struct of named fields: the relation,
// fork and block-number subfields live inside it but are never
// interpreted by this package, only by the redo manager.
type Key [Size]byte

// Min and Max bound the representable key space; they are useful as the
// open ends of a layer's key range.
var (
	Min = Key{}
	Max = Key{
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	}
)

// FromBytes copies b into a Key. It panics if b is not exactly Size
// bytes long, since a malformed key indicates a decode bug upstream.
func FromBytes(b []byte) Key {
	if len(b) != Size {
		panic(fmt.Sprintf("key: invalid length %d, want %d", len(b), Size))
	}
	var k Key
	copy(k[:], b)
	return k
}

// Bytes returns the key's bytes as a fresh slice.
func (k Key) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, k[:])
	return b
}

// Compare returns -1, 0 or 1 as k is less than, equal to, or greater
// than other, using the key's natural big-endian byte ordering.
func (k Key) Compare(other Key) int {
	return bytes.Compare(k[:], other[:])
}

// Less reports whether k sorts strictly before other.
func (k Key) Less(other Key) bool { return k.Compare(other) < 0 }

// Next returns the lexicographically next key, i.e. the infimum of the
// open interval (k, +inf). It is used to build half-open key ranges
// like [k, k.Next()) that cover exactly k.
func (k Key) Next() Key {
	next := k
	for i := len(next) - 1; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			break
		}
		// overflowed this byte, carry into the next one; if we carry
		// past byte 0 the key was already Max and wraps to Min, which
		// Range treats as the "unbounded above" Hi sentinel.
	}
	return next
}

// String renders the key as a hex string for logging.
func (k Key) String() string {
	return fmt.Sprintf("%x", k[:])
}

// Range is a half-open interval [Lo, Hi) of keys. Since Key has no
// representable value above Max, a Hi equal to Min is a sentinel
// meaning "unbounded above" rather than the (otherwise nonsensical,
// since Hi would sort below Lo) empty range at zero: it is what
// Max.Next() produces, and is how FullRange spans the entire key
// space without a distinct infinity type.
type Range struct {
	Lo Key
	Hi Key
}

// FullRange spans the entire key space, [Min, Max].
func FullRange() Range { return Range{Lo: Min, Hi: Max.Next()} }

// unboundedHi reports whether hi is the "no upper bound" sentinel.
func unboundedHi(hi Key) bool { return hi == Min }

// Contains reports whether k lies within [r.Lo, r.Hi).
func (r Range) Contains(k Key) bool {
	if unboundedHi(r.Hi) {
		return !k.Less(r.Lo)
	}
	return !k.Less(r.Lo) && k.Less(r.Hi)
}

// loLessHi reports whether lo sorts strictly before hi, treating an
// unbounded hi as sorting after every lo.
func loLessHi(lo, hi Key) bool {
	if unboundedHi(hi) {
		return true
	}
	return lo.Less(hi)
}

// Overlaps reports whether r and other share any key.
func (r Range) Overlaps(other Range) bool {
	return loLessHi(r.Lo, other.Hi) && loLessHi(other.Lo, r.Hi)
}

// Union returns the smallest range covering both r and other.
func (r Range) Union(other Range) Range {
	lo := r.Lo
	if other.Lo.Less(lo) {
		lo = other.Lo
	}
	hi := r.Hi
	switch {
	case unboundedHi(r.Hi) || unboundedHi(other.Hi):
		hi = Min // unbounded wins
	case other.Hi.Less(hi):
		// other.Hi is smaller, r.Hi already wins
	default:
		hi = other.Hi
	}
	return Range{Lo: lo, Hi: hi}
}

// PutUint64 writes v big-endian into the 8 bytes of a key buffer
// starting at offset, a helper used by callers that synthesize test keys from a
// relation id and a dense block number.
func PutUint64(k *Key, offset int, v uint64) {
	binary.BigEndian.PutUint64(k[offset:offset+8], v)
}
