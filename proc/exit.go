package proc

import (
	"kernelcore/defs"
	"kernelcore/extern"
)

// Exit implements sys_exit. Destroys the caller's address space before
// touching any lock, so a reaping parent (or self-reclaim below) never
// observes stale mappings. Reaps already-exited children, detaches
// still-live ones, and either wakes a waiting parent or self-reclaims
// if the parent has already exited.
//
// The "destroy address space first, lock second" ordering is a
// deliberate choice: the address space is torn down without p's lock
// held, and every field touched afterward is re-read under the lock
// rather than assumed stable across the destroy call.
func (p *Proc) Exit(t *Table, sched extern.Scheduler, code int) {
	as := p.AddrSpace()
	as.Destroy()

	p.mu.Lock()
	for _, c := range p.children {
		c.mu.Lock()
		reap := c.exited
		c.mu.Unlock()
		if reap {
			t.remove(c)
		} else {
			c.mu.Lock()
			c.parent = nil
			c.mu.Unlock()
		}
	}
	p.children = nil

	parent := p.parent
	selfReclaim := parent == nil
	if !selfReclaim {
		p.exited = true
		p.exitStatus = defs.MkwaitExit(code)
		p.waitCond.Signal()
	}
	p.mu.Unlock()

	if selfReclaim {
		t.remove(p)
	}
	sched.Exit()
}
