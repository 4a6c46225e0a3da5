package proc

import (
	"sync"

	"kernelcore/defs"
	"kernelcore/extern"
)

// Fork clones p's address space deeply (vm.AddrSpace.Copy), registers a
// new child process record, links parent/child under the correct lock
// order, and launches the child on sched (sys_fork).
//
// entry stands in for enter_forked_process: on a real MIPS core this
// receives a copy of the trapframe, zeroes the return-value register,
// advances the PC past the syscall, activates the child's address
// space, and drops to user mode. Since this core has no trapframe or
// user-mode transition to model, entry is the caller-supplied function
// representing "the child's user-mode continuation"; it receives the
// child Proc so it can read its own pid and address space.
func (p *Proc) Fork(t *Table, sched extern.Scheduler, entry func(child *Proc)) (defs.Pid_t, defs.Err_t) {
	p.mu.Lock()
	as := p.as
	p.mu.Unlock()

	childAS, err := as.Copy()
	if err != 0 {
		return 0, err
	}

	child := &Proc{as: childAS}
	child.waitCond = sync.NewCond(&child.mu)
	if !t.register(child) {
		childAS.Destroy()
		return 0, -defs.ENPROC
	}

	// Under the child's lock: set parent and the wait signal. Under the
	// parent's lock: append the child. Lock order is parent-before-child,
	// so acquire p's lock first even though p's fields
	// touched here (children) are disjoint from child's.
	p.mu.Lock()
	child.mu.Lock()
	child.parent = p
	p.children = append(p.children, child)
	child.mu.Unlock()
	p.mu.Unlock()

	if errF := sched.Fork("forked-child", func() { entry(child) }); errF != 0 {
		t.remove(child)
		return 0, errF
	}
	return child.Pid_, 0
}
