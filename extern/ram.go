//go:build unix

package extern

import (
	"sync"

	"golang.org/x/sys/unix"

	"kernelcore/defs"
)

// MmapRAM is a RAMSource backed by a single anonymous mmap'd arena,
// the simulation's stand-in for the "raw physical RAM" the boot loader
// hands the kernel. It plays the role of ram_getsize/ram_stealmem:
// before the coremap takes over, StealMem just bumps a pointer with no
// ability to free.
type MmapRAM struct {
	mu     sync.Mutex
	base   []byte
	stolen int // bytes already handed out via StealMem
}

// NewMmapRAM reserves an arena of size bytes (rounded up to a page) via
// an anonymous mmap and returns a RAMSource over it.
func NewMmapRAM(size int) (*MmapRAM, error) {
	size = defs.PageRoundup(size)
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &MmapRAM{base: b}, nil
}

// Close unmaps the arena.
func (r *MmapRAM) Close() error {
	return unix.Munmap(r.base)
}

func (r *MmapRAM) GetSize() (lo, hi uintptr) {
	return 0, uintptr(len(r.base))
}

func (r *MmapRAM) StealMem(n int) uintptr {
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

func (r *MmapRAM) Bytes(paddr uintptr) []byte {
	end := int(paddr) + defs.PageSize
	if end > len(r.base) {
		panic("paddr out of range")
	}
	return r.base[paddr:end]
}
