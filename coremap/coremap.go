// Package coremap implements the physical-frame allocator: a
// bitmap-like array of slots, one per manageable frame, tracking
// ownership with a run-length encoding that lets free_pages recover a
// run's length without a side table.
//
// The allocator is a single flat structure behind one embedded
// sync.Mutex rather than fine-grained per-frame locking, in the style
// of a physical memory manager that favors a simple, auditable
// critical section over maximal concurrency; the run-length encoding
// and the pre-bootstrap steal fallback follow a classic
// vm_bootstrap/getppages/free_kpages allocator shape.
package coremap

import (
	"sync"
	"sync/atomic"

	"kernelcore/defs"
	"kernelcore/extern"
	"kernelcore/util"
)

// Coremap tracks ownership of every manageable physical frame above
// the reserved low region (BIOS/kernel image/coremap storage itself).
// Slot i holds zero if frame i is free, otherwise the number of
// frames remaining (inclusive) in the run starting at i.
type Coremap struct {
	mu    sync.Mutex
	slots []int
	start uintptr // physical address represented by slots[0]

	ram     extern.RAMSource
	ready   atomic.Bool
	stealMu sync.Mutex
}

// New returns a Coremap that steals pages directly from ram until
// Bootstrap is called.
func New(ram extern.RAMSource) *Coremap {
	return &Coremap{ram: ram}
}

// Bootstrap queries the RAM source for [lo, hi), reserves the pages
// needed to hold the coremap's own bookkeeping, zero-initializes every
// remaining slot, and marks the coremap ready. Called exactly once.
func (c *Coremap) Bootstrap() {
	lo, hi := c.ram.GetSize()
	lo = uintptr(defs.PageRoundup(int(lo)))
	n := int(hi-lo) / defs.PageSize

	// Reserve the pages a real kernel would spend storing the coremap
	// itself in the direct map; here the slots live in ordinary Go
	// heap memory, but we still debit the arena so addresses handed
	// out by AllocPages never overlap what a real kernel would have
	// used for bookkeeping.
	coremapBytes := n * bookkeepingBytesPerSlot
	reservedPages := defs.PageRoundup(coremapBytes) / defs.PageSize
	lo += uintptr(reservedPages * defs.PageSize)

	numberOfPages := util.Max(int(hi-lo)/defs.PageSize, 0)

	c.mu.Lock()
	c.start = lo
	c.slots = make([]int, numberOfPages)
	c.mu.Unlock()
	c.ready.Store(true)
}

// bookkeepingBytesPerSlot models sizeof(int): the cost in bytes of one
// slot's run-length bookkeeping entry, used to size the reserved
// bookkeeping region itself (coremapSize = n * sizeof(int) pages).
const bookkeepingBytesPerSlot = 8

// AllocPages returns the physical base address of a contiguous run of
// n free frames, or zero on failure. Search is first-fit with the
// lowest-index eligible run winning ties. Before Bootstrap has run,
// allocation falls through to the RAM source's steal primitive and no
// free is possible.
func (c *Coremap) AllocPages(n int) uintptr {
	if n <= 0 {
		panic("coremap: bad alloc size")
	}
	if !c.ready.Load() {
		c.stealMu.Lock()
		defer c.stealMu.Unlock()
		return c.ram.StealMem(n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	limit := len(c.slots) - n
	for i := 0; i <= limit; {
		if c.slots[i] != 0 {
			i++
			continue
		}
		complete := true
		for j := 1; j < n; j++ {
			if c.slots[i+j] != 0 {
				i += j + 1
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for j := 0; j < n; j++ {
			c.slots[i+j] = n - j
		}
		return c.start + uintptr(i*defs.PageSize)
	}
	return 0
}

// FreePages clears every slot of the run previously allocated at
// paddr. Panics if the stored head length doesn't match a consistent
// run. A mismatch here means caller bookkeeping has been corrupted, a
// fatal condition rather than a recoverable error.
func (c *Coremap) FreePages(paddr uintptr) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready.Load() {
		panic("coremap: free before ready")
	}
	idx := int(paddr-c.start) / defs.PageSize
	if idx < 0 || idx >= len(c.slots) {
		panic("coremap: free of unmanaged address")
	}
	n := c.slots[idx]
	if n == 0 {
		panic("coremap: double free")
	}
	if idx+n > len(c.slots) {
		panic("coremap: run length mismatch")
	}
	for j := 0; j < n; j++ {
		if c.slots[idx+j] != n-j {
			panic("coremap: run length mismatch")
		}
		c.slots[idx+j] = 0
	}
}

// Bytes returns the backing storage for the frame at paddr, delegating
// to the RAM source's direct map.
func (c *Coremap) Bytes(paddr uintptr) []byte {
	return c.ram.Bytes(paddr)
}

// Ready reports whether Bootstrap has completed.
func (c *Coremap) Ready() bool {
	return c.ready.Load()
}

// Slots returns a copy of the current slot array, for tests that
// assert on the run-length encoding directly.
func (c *Coremap) Slots() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int, len(c.slots))
	copy(out, c.slots)
	return out
}

// Start returns the physical base address represented by slot 0.
func (c *Coremap) Start() uintptr {
	return c.start
}
