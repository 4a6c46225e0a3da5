package proc

import (
	"kernelcore/coremap"
	"kernelcore/defs"
	"kernelcore/extern"
	"kernelcore/vm"
)

// MaxPathLen bounds the program path exec copies into kernel memory,
// the same kind of guard applied to argv strings.
const MaxPathLen = 128

// Exec implements sys_exec: open progname, allocate a fresh address
// space and switch the caller onto it, load the program image into it,
// lay argv onto its stack, then destroy the old address space. Errors
// up to and including the switch leave the caller's original address
// space intact and return the error normally; any error reported after
// the switch means the caller no longer has a recoverable address space
// at all and must be terminated by its caller rather than resumed.
func (p *Proc) Exec(cm *coremap.Coremap, tlb *vm.TLB, fs extern.FileOpener, loader extern.ELFLoader, progname string, argv []string) (entry, stackptr, argvUVA int, err defs.Err_t) {
	if len(progname) >= MaxPathLen {
		return 0, 0, 0, -defs.EINVAL
	}

	vn, openErr := fs.Open(progname)
	if openErr != 0 {
		return 0, 0, 0, openErr
	}

	newAS := vm.NewAddrSpace(cm)

	// Switch point: the caller now runs on newAS. Everything past this
	// line that fails leaves the process with no usable address space.
	p.mu.Lock()
	oldAS := p.as
	p.as = newAS
	p.mu.Unlock()
	newAS.Activate(tlb)

	entry, err = loader.Load(vn, newAS)
	fs.Close(vn)
	if err != 0 {
		return 0, 0, 0, err
	}
	if err = newAS.PrepareLoad(); err != 0 {
		return 0, 0, 0, err
	}
	newAS.CompleteLoad()

	stackptr, argvUVA, err = newAS.DefineArgs(argv)
	if err != 0 {
		return 0, 0, 0, err
	}

	oldAS.Destroy()
	return entry, stackptr, argvUVA, 0
}
