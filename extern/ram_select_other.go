//go:build !unix

package extern

// NewRAM reserves a size-byte physical RAM arena. Non-unix platforms
// have no MmapRAM implementation, so this always returns a SliceRAM.
func NewRAM(size int) RAMSource {
	return NewSliceRAM(size)
}
