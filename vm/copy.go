package vm

import "kernelcore/defs"

// pteFor locates the PTE backing vaddr's page, across all three
// regions, mirroring Fault's region search. Assumes as.mu is held.
func (as *AddrSpace) pteFor(vaddr int) (*PTE, defs.Err_t) {
	page := defs.PageRounddown(vaddr)
	if as.Region1.contains(page) {
		return &as.Region1.PTEs[(page-as.Region1.VBase)/defs.PageSize], 0
	}
	if as.Region2.contains(page) {
		return &as.Region2.PTEs[(page-as.Region2.VBase)/defs.PageSize], 0
	}
	if as.Stack.contains(page) {
		return &as.Stack.PTEs[(page-as.Stack.VBase)/defs.PageSize], 0
	}
	return nil, -defs.EFAULT
}

// writeLocked copies data into user memory starting at uva, crossing
// page boundaries as needed. Assumes as.mu is held.
func (as *AddrSpace) writeLocked(uva int, data []byte) defs.Err_t {
	for len(data) > 0 {
		pte, err := as.pteFor(uva)
		if err != 0 {
			return err
		}
		if !pte.Valid {
			return -defs.EFAULT
		}
		page := as.coremap.Bytes(pte.Frame)
		off := uva & (defs.PageSize - 1)
		n := copy(page[off:], data)
		data = data[n:]
		uva += n
	}
	return 0
}

// readLocked reads n bytes of user memory starting at uva. Assumes
// as.mu is held.
func (as *AddrSpace) readLocked(uva, n int) ([]byte, defs.Err_t) {
	out := make([]byte, 0, n)
	for len(out) < n {
		pte, err := as.pteFor(uva + len(out))
		if err != 0 {
			return nil, err
		}
		if !pte.Valid {
			return nil, -defs.EFAULT
		}
		page := as.coremap.Bytes(pte.Frame)
		off := (uva + len(out)) & (defs.PageSize - 1)
		want := n - len(out)
		got := page[off:]
		if len(got) > want {
			got = got[:want]
		}
		out = append(out, got...)
	}
	return out, 0
}

// CopyOut copies data into this address space's user memory starting
// at uva. Corresponds to copyout.
func (as *AddrSpace) CopyOut(uva int, data []byte) defs.Err_t {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.writeLocked(uva, data)
}

// CopyInBytes reads exactly max bytes of user memory starting at uva,
// returning EFAULT if any of them is unmapped. Corresponds to copyin.
func (as *AddrSpace) CopyInBytes(uva, max int) ([]byte, defs.Err_t) {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.readLocked(uva, max)
}

// CopyInStr reads a NUL-terminated string from user memory starting at
// uva, up to max bytes including the terminator. Corresponds to
// copyinstr. Returns EFAULT if no NUL byte is found within the bound.
func (as *AddrSpace) CopyInStr(uva, max int) (string, defs.Err_t) {
	as.mu.Lock()
	defer as.mu.Unlock()

	var out []byte
	for len(out) < max {
		b, err := as.readLocked(uva+len(out), 1)
		if err != 0 {
			return "", err
		}
		if b[0] == 0 {
			return string(out), 0
		}
		out = append(out, b[0])
	}
	return "", -defs.EFAULT
}
