package coremap

import (
	"testing"

	"kernelcore/defs"
	"kernelcore/extern"
)

// frame converts a physical address returned by AllocPages into a
// slot index relative to c.Start(), the unit allocator traces are
// usually described in ("returns frame 0", "frame 3", ...).
func frame(c *Coremap, paddr uintptr) int {
	return int(paddr-c.Start()) / defs.PageSize
}

// newReadyCoremap returns a bootstrapped Coremap managing exactly
// frames manageable pages. Bootstrap reserves one page of bookkeeping
// storage off the front of the arena whenever the arena is small
// enough that sizeof(slot)*n fits in a single page — true for every
// frame count used in this file — so the backing arena is sized to
// frames+1 pages to leave exactly frames usable afterward.
func newReadyCoremap(t *testing.T, frames int) *Coremap {
	t.Helper()
	ram := extern.NewSliceRAM((frames + 1) * defs.PageSize)
	c := New(ram)
	c.Bootstrap()
	if len(c.Slots()) != frames {
		t.Fatalf("got %d manageable frames, want %d (reservation math changed?)", len(c.Slots()), frames)
	}
	return c
}

func TestFirstFitAllocationSequence(t *testing.T) {
	c := newReadyCoremap(t, 8)

	p1 := c.AllocPages(3)
	if p1 == 0 {
		t.Fatal("alloc_pages(3) failed")
	}
	if f := frame(c, p1); f != 0 {
		t.Fatalf("first alloc: got frame %d, want 0", f)
	}
	want := []int{3, 2, 1, 0, 0, 0, 0, 0}
	if got := c.Slots(); !equal(got, want) {
		t.Fatalf("slots after first alloc = %v, want %v", got, want)
	}

	p2 := c.AllocPages(2)
	if f := frame(c, p2); f != 3 {
		t.Fatalf("second alloc: got frame %d, want 3", f)
	}
	want = []int{3, 2, 1, 2, 1, 0, 0, 0}
	if got := c.Slots(); !equal(got, want) {
		t.Fatalf("slots after second alloc = %v, want %v", got, want)
	}

	c.FreePages(p1)
	want = []int{0, 0, 0, 2, 1, 0, 0, 0}
	if got := c.Slots(); !equal(got, want) {
		t.Fatalf("slots after free(p1) = %v, want %v", got, want)
	}
}

func TestAllocNoSpaceReturnsZero(t *testing.T) {
	c := newReadyCoremap(t, 4)
	if p := c.AllocPages(4); p == 0 {
		t.Fatal("alloc_pages(4) on a 4-frame coremap should succeed")
	}
	if p := c.AllocPages(1); p != 0 {
		t.Fatalf("alloc_pages(1) on a full coremap should fail, got %#x", p)
	}
}

func TestAllocFreeRoundTripRestoresState(t *testing.T) {
	c := newReadyCoremap(t, 16)
	before := c.Slots()
	p := c.AllocPages(5)
	c.FreePages(p)
	after := c.Slots()
	if !equal(before, after) {
		t.Fatalf("alloc/free round trip changed coremap state: before=%v after=%v", before, after)
	}
}

func TestFreeMismatchedRunPanics(t *testing.T) {
	c := newReadyCoremap(t, 8)
	p := c.AllocPages(2)
	// Corrupt the run by hand to simulate a caller passing a bad
	// address/length combination.
	c.mu.Lock()
	idx := frame(c, p)
	c.slots[idx] = 99
	c.mu.Unlock()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on run-length mismatch")
		}
	}()
	c.FreePages(p)
}

func TestAllocBeforeBootstrapFallsBackToSteal(t *testing.T) {
	ram := extern.NewSliceRAM(4 * defs.PageSize)
	c := New(ram)
	p := c.AllocPages(2)
	if p == 0 {
		t.Fatal("steal-backed alloc before bootstrap should succeed")
	}
	// No free is possible pre-bootstrap.
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic freeing before coremap is ready")
		}
	}()
	c.FreePages(p)
}

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
