package lsn

import "testing"

func TestSubSaturates(t *testing.T) {
	if got := Lsn(0x10).Sub(0x20); got != Invalid {
		t.Fatalf("expected saturation to Invalid, got %v", got)
	}
	if got := Lsn(0x30).Sub(0x10); got != Lsn(0x20) {
		t.Fatalf("expected 0x20, got %v", got)
	}
}

func TestRangeOverlaps(t *testing.T) {
	a := Range{Start: 0x10, End: 0x20}
	b := Range{Start: 0x18, End: 0x30}
	c := Range{Start: 0x20, End: 0x30}

	if !a.Overlaps(b) {
		t.Fatalf("expected overlap")
	}
	if a.Overlaps(c) {
		t.Fatalf("half-open ranges touching at the boundary must not overlap")
	}
}
