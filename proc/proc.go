// Package proc implements the process record and the lifecycle
// syscalls fork/exec/exit/waitpid/getpid.
//
// The process record follows a thread-note style design: a per-entity
// mutex embedded directly in the record, a central table keyed by an
// id type, and weak back-references resolved through the table rather
// than raw pointers. One deliberate departure from that style: some
// kernels locate "the current thread" through a patched runtime that
// stashes a pointer in goroutine-local storage. That kind of patch is
// not something this module's go.mod can depend on, so the current
// process is threaded explicitly through every call instead of
// recovered from goroutine-local state — more verbose, but portable to
// an unmodified toolchain.
package proc

import (
	"sync"

	"kernelcore/defs"
	"kernelcore/vm"
)

// Proc is one process record. pid is immutable once assigned;
// everything else is guarded by mu.
type Proc struct {
	Pid_ defs.Pid_t

	mu       sync.Mutex
	parent   *Proc // weak: never freed by following this pointer
	children []*Proc

	exited     bool
	exitStatus int
	waitCond   *sync.Cond

	as *vm.AddrSpace
}

// Table is the central process table: every live Proc is reachable
// from here by pid, the same role Threadinfo_t.Notes plays for thread
// notes.
type Table struct {
	mu      sync.Mutex
	procs   map[defs.Pid_t]*Proc
	nextPid defs.Pid_t
	limit   *ProcLimit
}

// NewTable returns an empty process table enforcing the default
// process-count ceiling. Pid 1 is reserved for the first process a
// caller registers via NewProc.
func NewTable() *Table {
	return NewTableWithLimit(NewProcLimit(maxProcsDefault))
}

// NewTableWithLimit returns an empty process table enforcing limit.
func NewTableWithLimit(limit *ProcLimit) *Table {
	return &Table{procs: make(map[defs.Pid_t]*Proc), nextPid: 1, limit: limit}
}

// NewProc allocates a pid and registers a fresh, parentless process
// owning as. Used to create the initial (boot) process; forked
// children are created by Fork instead. Panics if the table is already
// at its process-count ceiling, since there is no caller to hand an
// error back to for the boot process.
func (t *Table) NewProc(as *vm.AddrSpace) *Proc {
	if !t.limit.tryReserve() {
		panic("proc: process limit exceeded")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p := &Proc{Pid_: t.nextPid, as: as}
	p.waitCond = sync.NewCond(&p.mu)
	t.procs[p.Pid_] = p
	t.nextPid++
	return p
}

// register admits p into the table, returning ENPROC-equivalent
// failure (signaled by the bool) if the process-count ceiling has been
// reached.
func (t *Table) register(p *Proc) bool {
	if !t.limit.tryReserve() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p.Pid_ = t.nextPid
	t.procs[p.Pid_] = p
	t.nextPid++
	return true
}

func (t *Table) remove(p *Proc) {
	t.mu.Lock()
	_, existed := t.procs[p.Pid_]
	delete(t.procs, p.Pid_)
	t.mu.Unlock()
	if existed {
		t.limit.release()
	}
}

// Pid returns the process's immutable pid.
func (p *Proc) Pid() defs.Pid_t { return p.Pid_ }

// AddrSpace returns the process's currently active address space.
func (p *Proc) AddrSpace() *vm.AddrSpace {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.as
}

// Getpid reads the caller's pid under its own lock. The lock is
// unnecessary for an immutable field but keeps to the habit of never
// touching a record's fields outside its mutex.
func (p *Proc) Getpid() defs.Pid_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Pid_
}
