package proc

import (
	"sync"
	"testing"

	"kernelcore/coremap"
	"kernelcore/defs"
	"kernelcore/extern"
	"kernelcore/vm"
)

func newTestCoremap(t *testing.T, frames int) *coremap.Coremap {
	t.Helper()
	ram := extern.NewSliceRAM(frames * defs.PageSize)
	cm := coremap.New(ram)
	cm.Bootstrap()
	return cm
}

func bootProc(t *testing.T, tbl *Table, cm *coremap.Coremap) *Proc {
	t.Helper()
	as := vm.NewAddrSpace(cm)
	if err := as.DefineRegion(0x400000, defs.PageSize, true, false, true); err != 0 {
		t.Fatalf("define_region(code): %v", err)
	}
	if err := as.DefineRegion(0x500000, defs.PageSize, true, true, false); err != 0 {
		t.Fatalf("define_region(data): %v", err)
	}
	if err := as.PrepareLoad(); err != 0 {
		t.Fatalf("prepare_load: %v", err)
	}
	return tbl.NewProc(as)
}

// TestForkExitWait: a process forks, the child exits with code 42, and
// the parent's waitpid observes the child's pid and a status whose
// high byte is 42.
func TestForkExitWait(t *testing.T) {
	cm := newTestCoremap(t, 128)
	tbl := NewTable()
	sched := extern.GoScheduler{}
	parent := bootProc(t, tbl, cm)

	var wg sync.WaitGroup
	wg.Add(1)
	childPid, err := parent.Fork(tbl, sched, func(child *Proc) {
		defer wg.Done()
		child.Exit(tbl, sched, 42)
	})
	if err != 0 {
		t.Fatalf("fork: %v", err)
	}

	pid, status, err := parent.Waitpid(tbl, childPid, 0)
	if err != 0 {
		t.Fatalf("waitpid: %v", err)
	}
	wg.Wait()

	if pid != childPid {
		t.Fatalf("waitpid returned pid %d, want %d", pid, childPid)
	}
	if !defs.WifExited(status) {
		t.Fatalf("status %#x does not report a normal exit", status)
	}
	if got := defs.WexitStatus(status); got != 42 {
		t.Fatalf("exit code = %d, want 42", got)
	}
	if status != defs.MkwaitExit(42) {
		t.Fatalf("status = %#x, want %#x", status, defs.MkwaitExit(42))
	}
}

func TestWaitpidOnNonChildReturnsECHILD(t *testing.T) {
	cm := newTestCoremap(t, 64)
	tbl := NewTable()
	p := bootProc(t, tbl, cm)

	_, _, err := p.Waitpid(tbl, 999, 0)
	if err != -defs.ECHILD {
		t.Fatalf("waitpid on non-child: got %v, want ECHILD", err)
	}
}

func TestWaitpidRejectsNonZeroOptions(t *testing.T) {
	cm := newTestCoremap(t, 64)
	tbl := NewTable()
	p := bootProc(t, tbl, cm)

	_, _, err := p.Waitpid(tbl, p.Pid(), 1)
	if err != -defs.EINVAL {
		t.Fatalf("waitpid with options!=0: got %v, want EINVAL", err)
	}
}

// TestWaitpidBlocksUntilExit confirms waitpid suspends the caller until
// the child actually calls Exit, rather than returning early.
func TestWaitpidBlocksUntilExit(t *testing.T) {
	cm := newTestCoremap(t, 128)
	tbl := NewTable()
	sched := extern.GoScheduler{}
	parent := bootProc(t, tbl, cm)

	release := make(chan struct{})
	childPid, err := parent.Fork(tbl, sched, func(child *Proc) {
		<-release
		child.Exit(tbl, sched, 7)
	})
	if err != 0 {
		t.Fatalf("fork: %v", err)
	}

	done := make(chan struct{})
	go func() {
		parent.Waitpid(tbl, childPid, 0)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("waitpid returned before the child exited")
	default:
	}

	close(release)
	<-done
}

// TestOrphanSelfReclaims: when a parent exits before its still-live
// child, the child's parent link is detached, and the child's later
// exit self-reclaims rather than deadlocking on a signal no one will
// ever observe.
func TestOrphanSelfReclaims(t *testing.T) {
	cm := newTestCoremap(t, 128)
	tbl := NewTable()
	sched := extern.GoScheduler{}
	parent := bootProc(t, tbl, cm)

	childReady := make(chan struct{})
	childDone := make(chan struct{})
	var childPid defs.Pid_t
	childExited := make(chan struct{})
	pid, err := parent.Fork(tbl, sched, func(child *Proc) {
		childPid = child.Pid()
		close(childReady)
		<-childDone
		child.Exit(tbl, sched, 0)
		close(childExited)
	})
	if err != 0 {
		t.Fatalf("fork: %v", err)
	}
	<-childReady
	if pid != childPid {
		t.Fatalf("fork returned %d, child reports %d", pid, childPid)
	}

	parent.Exit(tbl, sched, 0)
	if len(parent.children) != 0 {
		t.Fatal("parent's children list not cleared on exit")
	}

	close(childDone)
	<-childExited

	tbl.mu.Lock()
	_, stillTracked := tbl.procs[childPid]
	tbl.mu.Unlock()
	if stillTracked {
		t.Fatal("orphaned child was not self-reclaimed after its own exit")
	}
}

func TestForkFailsAtProcessLimit(t *testing.T) {
	cm := newTestCoremap(t, 256)
	tbl := NewTableWithLimit(NewProcLimit(1))
	sched := extern.GoScheduler{}
	parent := bootProc(t, tbl, cm)

	_, err := parent.Fork(tbl, sched, func(*Proc) {})
	if err != -defs.ENPROC {
		t.Fatalf("fork at limit: got %v, want ENPROC", err)
	}
}

// TestExecReplacesAddrSpaceAndReportsEntry exercises sys_exec: the
// caller's old address space is destroyed only after the new one is
// fully built, argv lands on the new stack, and the reported entry
// point matches what the (fake) ELF loader supplied.
func TestExecReplacesAddrSpaceAndReportsEntry(t *testing.T) {
	cm := newTestCoremap(t, 128)
	tbl := NewTable()
	p := bootProc(t, tbl, cm)
	oldAS := p.AddrSpace()

	vfs := extern.NewFakeVFS()
	vfs.Register("/bin/hello", extern.NewProgram("/bin/hello", defs.PageSize, defs.PageSize, 0x400020))
	loader := extern.NewFakeELFLoader(0x400000, 0x500000)
	tlb := vm.NewTLB(extern.NewSimTLB())

	entry, sp, argvUVA, err := p.Exec(cm, tlb, vfs, loader, "/bin/hello", []string{"hello", "world"})
	if err != 0 {
		t.Fatalf("exec: %v", err)
	}
	if entry != 0x400020 {
		t.Fatalf("entry = %#x, want %#x", entry, 0x400020)
	}
	if sp == 0 || argvUVA == 0 {
		t.Fatal("exec did not report a stack pointer / argv address")
	}
	if p.AddrSpace() == oldAS {
		t.Fatal("exec did not replace the process's address space")
	}

	as := p.AddrSpace()
	ptrBytes, err := as.CopyInBytes(argvUVA, 4)
	if err != 0 {
		t.Fatalf("reading argv[0] pointer: %v", err)
	}
	strAddr := int(ptrBytes[0]) | int(ptrBytes[1])<<8 | int(ptrBytes[2])<<16 | int(ptrBytes[3])<<24
	got, err := as.CopyInStr(strAddr, vm.MaxArgLen)
	if err != 0 {
		t.Fatalf("reading argv[0] string: %v", err)
	}
	if got != "hello" {
		t.Fatalf("argv[0] = %q, want %q", got, "hello")
	}
}

func TestExecRejectsOverlongPath(t *testing.T) {
	cm := newTestCoremap(t, 64)
	tbl := NewTable()
	p := bootProc(t, tbl, cm)
	tlb := vm.NewTLB(extern.NewSimTLB())
	vfs := extern.NewFakeVFS()
	loader := extern.NewFakeELFLoader(0x400000, 0x500000)

	longPath := make([]byte, MaxPathLen)
	for i := range longPath {
		longPath[i] = 'a'
	}
	_, _, _, err := p.Exec(cm, tlb, vfs, loader, string(longPath), nil)
	if err != -defs.EINVAL {
		t.Fatalf("exec with overlong path: got %v, want EINVAL", err)
	}
}

func TestGetpidIsStableAcrossCalls(t *testing.T) {
	cm := newTestCoremap(t, 64)
	tbl := NewTable()
	p := bootProc(t, tbl, cm)
	if p.Getpid() != p.Pid() {
		t.Fatalf("Getpid()=%d != Pid()=%d", p.Getpid(), p.Pid())
	}
}
