// Package extern collects the interfaces this core consumes from its
// external collaborators: the physical-RAM sizer/stealer, raw TLB
// register access, the ELF loader, the VFS, user/kernel copy
// primitives, and thread scheduling. None of these are implemented by
// the core itself, letting vm and proc depend on small interfaces
// rather than concrete hardware or filesystem types. The RAM, TLB,
// scheduler, VFS and ELF-loader interfaces ship with simple,
// goroutine/slice-backed defaults here so the core and its tests can
// run without real hardware or a real VFS; RegionDefiner and Copier
// are implemented by vm.AddrSpace.
package extern

import "kernelcore/defs"

// RAMSource reports the bounds of manageable physical RAM and, before
// the coremap is bootstrapped, hands out runs of raw pages.
// Corresponds to ram_getsize/ram_stealmem.
type RAMSource interface {
	// GetSize returns [lo, hi), the range of physical addresses this
	// source manages.
	GetSize() (lo, hi uintptr)
	// StealMem returns the physical base address of n contiguous
	// pages, or 0 on failure. Valid only before the coremap takes
	// over; leaks are expected and accepted.
	StealMem(n int) uintptr
	// Bytes returns a []byte view of the frame at paddr, sized to one
	// page. Stands in for a direct physical-memory map.
	Bytes(paddr uintptr) []byte
}

// TLBEntry is one hardware TLB slot: EntryHi holds the virtual page
// number, EntryLo the physical frame plus the VALID/DIRTY bits.
type TLBEntry struct {
	Hi uintptr
	Lo uintptr
}

// MIPS-style TLBLO bit masks.
const (
	TLBLOValid uintptr = 1 << 9
	TLBLODirty uintptr = 1 << 10
	PageFrame  uintptr = ^uintptr(0xfff)
)

// TLBDevice abstracts tlb_read/tlb_write/tlb_random and NUM_TLB.
type TLBDevice interface {
	NumSlots() int
	Read(idx int) TLBEntry
	Write(idx int, e TLBEntry)
	WriteRandom(e TLBEntry)
	// Shootdown is never implemented on this single-CPU core; invoking
	// it is a fatal error.
	Shootdown()
}

// RegionDefiner is the subset of an address space's API the ELF loader
// needs. It lets extern declare ELFLoader without importing vm (which
// in turn imports extern), avoiding an import cycle.
type RegionDefiner interface {
	DefineRegion(vaddr, size int, r, w, x bool) defs.Err_t
}

// Vnode is an opaque open-file handle, standing in for struct vnode.
type Vnode interface {
	Name() string
}

// ELFLoader fills in an address space's region definitions from an
// open executable and reports its entry point. Corresponds to
// load_elf.
type ELFLoader interface {
	Load(v Vnode, as RegionDefiner) (entry int, err defs.Err_t)
}

// FileOpener corresponds to vfs_open/vfs_close.
type FileOpener interface {
	Open(path string) (Vnode, defs.Err_t)
	Close(v Vnode)
}

// Copier corresponds to copyin/copyinstr/copyout: bounded copies
// across the user/kernel boundary.
type Copier interface {
	CopyInBytes(uva int, max int) ([]byte, defs.Err_t)
	CopyInStr(uva int, max int) (string, defs.Err_t)
	CopyOut(uva int, data []byte) defs.Err_t
}

// Scheduler corresponds to thread_fork/thread_exit/proc_remthread.
type Scheduler interface {
	// Fork launches entry as a new schedulable thread and returns
	// immediately; entry runs concurrently.
	Fork(name string, entry func()) defs.Err_t
	// Exit never returns; called from the body of a thread started via
	// Fork.
	Exit()
}
