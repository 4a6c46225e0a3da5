package extern

import "kernelcore/defs"

// GoScheduler is a Scheduler backed by plain goroutines. It plays the
// role of thread_fork/thread_exit for this simulation: "thread_fork"
// just starts a goroutine, and "thread_exit" is modeled implicitly by
// the goroutine returning (Exit is a no-op hook kept for symmetry with
// the named interface, since a goroutine cannot be unilaterally halted
// from outside).
type GoScheduler struct{}

func (GoScheduler) Fork(name string, entry func()) defs.Err_t {
	go entry()
	return 0
}

func (GoScheduler) Exit() {}

// Program is a synthetic "ELF" for the fake loader below: rather than
// parsing a real ELF image, it carries the region sizes and entry
// point the loader should install. Tests build one of these to stand
// in for a compiled user program.
type Program struct {
	path       string
	CodeBytes  int
	DataBytes  int
	EntryPoint int
}

func NewProgram(path string, codeBytes, dataBytes, entryPoint int) *Program {
	return &Program{path: path, CodeBytes: codeBytes, DataBytes: dataBytes, EntryPoint: entryPoint}
}

func (p *Program) Name() string { return p.path }

// FakeVFS resolves paths to previously-registered Programs, standing
// in for vfs_open/vfs_close over a real filesystem.
type FakeVFS struct {
	programs map[string]*Program
}

func NewFakeVFS() *FakeVFS {
	return &FakeVFS{programs: make(map[string]*Program)}
}

// Register makes a program openable under path.
func (f *FakeVFS) Register(path string, p *Program) {
	f.programs[path] = p
}

func (f *FakeVFS) Open(path string) (Vnode, defs.Err_t) {
	p, ok := f.programs[path]
	if !ok {
		return nil, -defs.EFAULT
	}
	return p, 0
}

func (f *FakeVFS) Close(Vnode) {}

// FakeELFLoader is an ELFLoader over Program vnodes: it defines the
// code region (region 1) and data region (region 2) and reports the
// program's entry point, the same three effects load_elf has on a
// real ELF image.
type FakeELFLoader struct {
	// CodeBase/DataBase are the virtual addresses user programs are
	// linked to start at, standing in for values an ELF program header
	// would carry.
	CodeBase int
	DataBase int
}

func NewFakeELFLoader(codeBase, dataBase int) *FakeELFLoader {
	return &FakeELFLoader{CodeBase: codeBase, DataBase: dataBase}
}

func (l *FakeELFLoader) Load(v Vnode, as RegionDefiner) (int, defs.Err_t) {
	p, ok := v.(*Program)
	if !ok {
		return 0, -defs.EFAULT
	}
	if err := as.DefineRegion(l.CodeBase, p.CodeBytes, true, false, true); err != 0 {
		return 0, err
	}
	if err := as.DefineRegion(l.DataBase, p.DataBytes, true, true, false); err != 0 {
		return 0, err
	}
	return p.EntryPoint, 0
}
