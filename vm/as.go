// Package vm implements the per-process address space and the fault
// handler / TLB manager.
//
// The address space itself follows a style seen in page-table-backed
// VM implementations generally: an embedded mutex guarding the whole
// structure, Lock/Unlock-named accessors so a caller's intent ("I am
// about to touch page tables") is visible at the call site, and
// Err_t-returning operations throughout — but the model underneath is
// the much simpler three-region, per-page-array scheme a dumbvm-style
// MIPS core uses instead of a full page-table/COW VM.
package vm

import (
	"sync"

	"kernelcore/coremap"
	"kernelcore/defs"
)

// StackPages is the fixed user-stack size in pages (48KiB of stack).
const StackPages = 12

// USERSTACK is the top (highest) user-space virtual address.
const USERSTACK = 0x80000000

// PTE is a page-table entry: a physical frame plus a validity bit.
// Ownership is exclusive to its containing Region.
type PTE struct {
	Frame uintptr
	Valid bool
}

// Region is a contiguous range of virtual addresses with a single
// purpose (code, data, or stack), represented as an array of PTEs
// indexed by page number within the region.
type Region struct {
	VBase  int
	NPages int
	PTEs   []PTE
}

func (r *Region) contains(vaddr int) bool {
	if r.NPages == 0 {
		return false
	}
	top := r.VBase + r.NPages*defs.PageSize
	return vaddr >= r.VBase && vaddr < top
}

// AddrSpace is a process's description of its three regions. The
// embedded mutex protects every field below; Lock/Unlock name the
// critical section so a caller's intent ("I am about to touch page
// tables") is visible at the call site.
type AddrSpace struct {
	mu sync.Mutex

	coremap *coremap.Coremap

	Region1 Region // code
	Region2 Region // data
	Stack   Region // stack, always StackPages long

	nregions int // how many of Region1/Region2 are defined so far

	loadComplete bool
	argvUVA      int
}

// NewAddrSpace returns a zeroed address space: no regions defined, no
// frames allocated (as_create).
func NewAddrSpace(cm *coremap.Coremap) *AddrSpace {
	return &AddrSpace{coremap: cm}
}

// Lock acquires the address-space mutex. Exported so the fault handler
// and the process layer can serialize with region-definition and
// prepare/complete-load calls under the same lock.
func (as *AddrSpace) Lock()   { as.mu.Lock() }
func (as *AddrSpace) Unlock() { as.mu.Unlock() }

// DefineRegion rounds vaddr down and size up to page multiples and
// fills the first undefined region (region 1 first, then region 2). A
// third call fails with EUNIMP: only two regions (code and data) may
// be defined this way; the stack region is set up separately by
// PrepareLoad. Permission bits are accepted but not enforced; all pages are created
// read-write (only the code-after-load latch is enforced, via
// CompleteLoad).
func (as *AddrSpace) DefineRegion(vaddr, size int, r, w, x bool) defs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()

	size += vaddr - defs.PageRounddown(vaddr)
	vaddr = defs.PageRounddown(vaddr)
	size = defs.PageRoundup(size)
	npages := size / defs.PageSize

	switch as.nregions {
	case 0:
		as.Region1 = Region{VBase: vaddr, NPages: npages, PTEs: make([]PTE, npages)}
	case 1:
		as.Region2 = Region{VBase: vaddr, NPages: npages, PTEs: make([]PTE, npages)}
	default:
		return -defs.EUNIMP
	}
	as.nregions++
	return 0
}

// PrepareLoad allocates one physical frame per page across all three
// regions and zeroes each frame. Must precede loading a program image.
// On partial failure, frames already allocated remain owned; Destroy
// will free them.
func (as *AddrSpace) PrepareLoad() defs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.Stack.PTEs != nil {
		panic("vm: prepare_load called twice")
	}
	as.Stack = Region{VBase: USERSTACK - StackPages*defs.PageSize, NPages: StackPages, PTEs: make([]PTE, StackPages)}

	for _, reg := range []*Region{&as.Region1, &as.Region2, &as.Stack} {
		for i := range reg.PTEs {
			frame := as.coremap.AllocPages(1)
			if frame == 0 {
				return -defs.ENOMEM
			}
			reg.PTEs[i] = PTE{Frame: frame, Valid: true}
			zero(as.coremap.Bytes(frame))
		}
	}
	return 0
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// CompleteLoad marks the address space as fully loaded: thereafter
// region 1 (code) is installed in the TLB without the dirty bit, so a
// write to a code page takes VM_FAULT_READONLY.
func (as *AddrSpace) CompleteLoad() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.loadComplete = true
}

// DefineStack returns the user-space stack top.
func (as *AddrSpace) DefineStack() (int, defs.Err_t) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.Stack.PTEs == nil {
		panic("vm: define_stack before prepare_load")
	}
	return USERSTACK, 0
}

// MaxArgs/MaxArgLen bound exec's argument vector: a correct
// implementation measures argc by scanning user memory bounded by a
// maximum rather than trusting an unbounded count from user space.
const (
	MaxArgs   = 64
	MaxArgLen = 128
)

// DefineArgs lays argv onto the top of the stack: strings first
// (packed, NUL-terminated, rounded to 4 bytes), then a NULL pointer,
// then pointers to each string in reverse index order so argv[0] sits
// at the lowest pointer address, then the final stack pointer rounded
// down to 8 bytes. Records the user-space address of argv for the
// entry thunk. Returns the new stack pointer.
func (as *AddrSpace) DefineArgs(argv []string) (stackptr int, argvUVA int, err defs.Err_t) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.Stack.PTEs == nil {
		panic("vm: define_args before prepare_load")
	}
	if len(argv) > MaxArgs {
		return 0, 0, -defs.EINVAL
	}
	for _, a := range argv {
		if len(a) >= MaxArgLen {
			return 0, 0, -defs.EINVAL
		}
	}

	// Pass 1: pack the strings themselves just below USERSTACK, each
	// NUL-terminated, argv[argc-1] first so it ends up closest to
	// USERSTACK and argv[0] lowest. strAddrs[i] records where args[i]
	// landed.
	strAddrs := make([]int, len(argv))
	argSize := 0
	for i := len(argv) - 1; i >= 0; i-- {
		argSize += len(argv[i]) + 1
		addr := USERSTACK - argSize
		buf := append([]byte(argv[i]), 0)
		if e := as.writeLocked(addr, buf); e != 0 {
			return 0, 0, e
		}
		strAddrs[i] = addr
	}

	temp := USERSTACK - roundup4(argSize)

	// NULL terminator of the pointer vector.
	temp -= 4
	if e := as.writeLocked(temp, encode32(0)); e != 0 {
		return 0, 0, e
	}
	// Pass 2: write argc pointers in reverse index order, so the last
	// write (args[0]) ends up at the lowest address — argv[0] sits at
	// the lowest pointer address, matching the standard argv layout.
	for i := len(argv) - 1; i >= 0; i-- {
		temp -= 4
		if e := as.writeLocked(temp, encode32(uint32(strAddrs[i]))); e != 0 {
			return 0, 0, e
		}
	}
	as.argvUVA = temp

	total := roundup4(argSize) + (len(argv)+1)*4
	total = roundup8(total)
	stackptr = USERSTACK - total
	return stackptr, as.argvUVA, 0
}

func roundup4(n int) int { return (n + 3) &^ 3 }
func roundup8(n int) int { return (n + 7) &^ 7 }

func encode32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// Copy deep-clones src into a freshly allocated address space backed
// by the same coremap: new region arrays, a new physical frame per
// PTE, byte-wise copy of each frame. Shares nothing with src: every
// region page is byte-equal immediately after the copy, and later
// writes to src must not affect dst.
func (src *AddrSpace) Copy() (*AddrSpace, defs.Err_t) {
	src.mu.Lock()
	defer src.mu.Unlock()

	dst := NewAddrSpace(src.coremap)
	dst.Region1 = Region{VBase: src.Region1.VBase, NPages: src.Region1.NPages}
	dst.Region2 = Region{VBase: src.Region2.VBase, NPages: src.Region2.NPages}
	dst.nregions = src.nregions

	var allocated []uintptr
	fail := func(err defs.Err_t) (*AddrSpace, defs.Err_t) {
		for _, f := range allocated {
			src.coremap.FreePages(f)
		}
		return nil, err
	}

	copyRegion := func(s, d *Region) defs.Err_t {
		d.PTEs = make([]PTE, len(s.PTEs))
		for i, pte := range s.PTEs {
			if !pte.Valid {
				continue
			}
			frame := src.coremap.AllocPages(1)
			if frame == 0 {
				return -defs.ENOMEM
			}
			allocated = append(allocated, frame)
			copy(src.coremap.Bytes(frame), src.coremap.Bytes(pte.Frame))
			d.PTEs[i] = PTE{Frame: frame, Valid: true}
		}
		return 0
	}

	dst.Stack = Region{VBase: src.Stack.VBase, NPages: src.Stack.NPages}

	if err := copyRegion(&src.Region1, &dst.Region1); err != 0 {
		return fail(err)
	}
	if err := copyRegion(&src.Region2, &dst.Region2); err != 0 {
		return fail(err)
	}
	if err := copyRegion(&src.Stack, &dst.Stack); err != 0 {
		return fail(err)
	}
	dst.loadComplete = src.loadComplete
	return dst, 0
}

// Destroy frees every valid PTE's physical frame across all three
// regions.
func (as *AddrSpace) Destroy() {
	as.mu.Lock()
	defer as.mu.Unlock()
	for _, reg := range []*Region{&as.Region1, &as.Region2, &as.Stack} {
		for _, pte := range reg.PTEs {
			if pte.Valid {
				as.coremap.FreePages(pte.Frame)
			}
		}
	}
	as.Region1.PTEs = nil
	as.Region2.PTEs = nil
	as.Stack.PTEs = nil
}

// Activate invalidates the entire TLB on entry to this address space.
func (as *AddrSpace) Activate(tlb *TLB) {
	tlb.invalidateAll()
}

// Deactivate does nothing; the next Activate will invalidate the TLB.
func (as *AddrSpace) Deactivate() {}
