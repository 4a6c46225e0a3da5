package extern

import (
	"sync"

	"kernelcore/defs"
)

// SliceRAM is a portable, test-friendly RAMSource backed by a plain
// []byte arena instead of a real mmap — used by unit tests and any
// platform where MmapRAM's unix syscalls aren't available.
type SliceRAM struct {
	mu     sync.Mutex
	base   []byte
	stolen int
}

// NewSliceRAM reserves an arena of size bytes (rounded up to a page).
func NewSliceRAM(size int) *SliceRAM {
	size = defs.PageRoundup(size)
	return &SliceRAM{base: make([]byte, size)}
}

func (r *SliceRAM) GetSize() (lo, hi uintptr) {
	return 0, uintptr(len(r.base))
}

func (r *SliceRAM) StealMem(n int) uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	need := n * defs.PageSize
	// Page 0 is never handed out: address 0 is the failure value.
	if r.stolen == 0 {
		r.stolen = defs.PageSize
	}
	if r.stolen+need > len(r.base) {
		return 0
	}
	addr := uintptr(r.stolen)
	r.stolen += need
	return addr
}

func (r *SliceRAM) Bytes(paddr uintptr) []byte {
	end := int(paddr) + defs.PageSize
	if end > len(r.base) {
		panic("paddr out of range")
	}
	return r.base[paddr:end]
}
