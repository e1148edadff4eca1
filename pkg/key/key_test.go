package key

import "testing"

func TestCompareOrdering(t *testing.T) {
	a := Key{0x11, 0x22, 0x22}
	b := a
	b[17] = 0x01
	c := a
	c[17] = 0x20

	if a.Compare(a) != 0 {
		t.Fatalf("expected equal key to compare 0")
	}
	if !b.Less(c) {
		t.Fatalf("expected %v < %v", b, c)
	}
	if c.Less(b) {
		t.Fatalf("did not expect %v < %v", c, b)
	}
}

func TestRangeContainsAndOverlaps(t *testing.T) {
	lo := Key{}
	hi := Key{}
	hi[17] = 0x10
	r := Range{Lo: lo, Hi: hi}

	mid := Key{}
	mid[17] = 0x05
	if !r.Contains(mid) {
		t.Fatalf("expected range to contain midpoint key")
	}
	if r.Contains(hi) {
		t.Fatalf("range is half-open; must not contain Hi")
	}

	other := Range{Lo: mid, Hi: Key{}}
	other.Hi[17] = 0x20
	if !r.Overlaps(other) {
		t.Fatalf("expected overlapping ranges to report overlap")
	}

	disjoint := Range{Lo: hi, Hi: Key{}}
	disjoint.Hi[17] = 0x30
	if r.Overlaps(disjoint) {
		t.Fatalf("did not expect disjoint ranges to overlap")
	}
}

func TestKeyNext(t *testing.T) {
	k := Key{}
	n := k.Next()
	if n[17] != 1 {
		t.Fatalf("expected last byte incremented, got %v", n)
	}
}

func TestFullRangeContainsEverything(t *testing.T) {
	r := FullRange()
	if !r.Contains(Min) || !r.Contains(Max) {
		t.Fatalf("expected FullRange to contain both Min and Max")
	}
	arbitrary := Key{0x01, 0x02, 0x03}
	if !r.Contains(arbitrary) {
		t.Fatalf("expected FullRange to contain an arbitrary key")
	}
}
