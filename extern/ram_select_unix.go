//go:build unix

package extern

import "log"

// NewRAM reserves a size-byte physical RAM arena using the most
// faithful backing this platform offers: an anonymous mmap via
// MmapRAM. Falls back to SliceRAM if the mmap call itself fails (e.g.
// a sandboxed environment that denies anonymous mappings), so a
// simulation run degrades instead of aborting.
func NewRAM(size int) RAMSource {
	r, err := NewMmapRAM(size)
	if err != nil {
		log.Printf("extern: mmap ram unavailable (%v), falling back to slice ram", err)
		return NewSliceRAM(size)
	}
	return r
}
